package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	flotilla "github.com/edgefleet/flotilla"
	"github.com/edgefleet/flotilla/relay"
)

type envConfig struct {
	ConfigPath  string `env:"FLOTILLA_CONFIG" envDefault:"config.toml"`
	BrokerURL   string `env:"FLOTILLA_BROKER_URL"`
	MetricsAddr string `env:"FLOTILLA_METRICS_ADDR" envDefault:":9090"`
	LogLevel    string `env:"FLOTILLA_LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := run(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	logger := configureLogger(ec.LogLevel)
	slog.SetDefault(logger)

	cfg, err := flotilla.LoadConfig(ec.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if ec.BrokerURL != "" {
		cfg.Broker.URL = ec.BrokerURL
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting relay service")

	pubsub, err := flotilla.NewPubSub(cfg.Broker, "flotilla-relay", logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect", slog.Any("error", err))
		}
	}()

	mbox, err := flotilla.NewMailbox(cfg.Mailbox)
	if err != nil {
		return fmt.Errorf("failed to open mailbox: %w", err)
	}

	service, err := relay.NewService(pubsub, mbox, logger)
	if err != nil {
		return fmt.Errorf("service initialization error: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: ec.MetricsAddr, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return service.Run(gctx)
	})
	g.Go(func() error {
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return server.Shutdown(context.Background())
	})

	return g.Wait()
}

func configureLogger(level string) *slog.Logger {
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}
