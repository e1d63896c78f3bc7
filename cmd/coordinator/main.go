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
	"time"

	"github.com/caarlos0/env/v11"
	"golang.org/x/sync/errgroup"

	flotilla "github.com/edgefleet/flotilla"
	"github.com/edgefleet/flotilla/bridge"
	"github.com/edgefleet/flotilla/coordinator"
	"github.com/edgefleet/flotilla/coordinator/api"
)

type envConfig struct {
	ConfigPath string `env:"FLOTILLA_CONFIG" envDefault:"config.toml"`
	BrokerURL  string `env:"FLOTILLA_BROKER_URL"`
	HTTPAddr   string `env:"FLOTILLA_HTTP_ADDR"`
	LogLevel   string `env:"FLOTILLA_LOG_LEVEL" envDefault:"info"`
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
	if ec.HTTPAddr != "" {
		cfg.Coordinator.HTTPAddr = ec.HTTPAddr
	}
	if cfg.Coordinator.HTTPAddr == "" {
		cfg.Coordinator.HTTPAddr = ":8080"
	}
	if len(cfg.Coordinator.Participants) == 0 {
		return errors.New("at least one participant is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting coordinator",
		slog.String("http_addr", cfg.Coordinator.HTTPAddr),
		slog.Int("participants", len(cfg.Coordinator.Participants)))

	pubsub, err := flotilla.NewPubSub(cfg.Broker, "flotilla-coordinator", logger)
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
	store, err := flotilla.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open payload store: %w", err)
	}

	var bridgeOpts []bridge.Option
	if cfg.Coordinator.PollInterval != "" {
		interval, err := time.ParseDuration(cfg.Coordinator.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid poll interval: %w", err)
		}
		bridgeOpts = append(bridgeOpts, bridge.WithPollInterval(interval))
	}
	if cfg.Coordinator.SummaryPath != "" {
		f, err := os.OpenFile(cfg.Coordinator.SummaryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open summary file: %w", err)
		}
		defer f.Close()
		bridgeOpts = append(bridgeOpts, bridge.WithSummarySink(bridge.NewStreamSink(f)))
	}

	c := coordinator.New(logger)
	bucket := cfg.Store.Bucket
	if bucket == "" {
		bucket = "models"
	}
	for _, participant := range cfg.Coordinator.Participants {
		b, err := bridge.New(participant, bucket, pubsub, mbox, store, logger, bridgeOpts...)
		if err != nil {
			return fmt.Errorf("failed to build bridge for %s: %w", participant, err)
		}
		c.Register(participant, b)
	}

	server := &http.Server{
		Addr:    cfg.Coordinator.HTTPAddr,
		Handler: api.MakeHandler(c),
	}

	g, gctx := errgroup.WithContext(ctx)
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
