package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	flotilla "github.com/edgefleet/flotilla"
	"github.com/edgefleet/flotilla/edge"
	"github.com/edgefleet/flotilla/edge/runtimes"
	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mqtt"
)

type envConfig struct {
	ConfigPath  string `env:"FLOTILLA_CONFIG" envDefault:"config.toml"`
	Participant string `env:"FLOTILLA_PARTICIPANT"`
	BrokerURL   string `env:"FLOTILLA_BROKER_URL"`
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
	if ec.Participant != "" {
		cfg.Edge.Participant = ec.Participant
	}
	if ec.BrokerURL != "" {
		cfg.Broker.URL = ec.BrokerURL
	}
	if cfg.Edge.Participant == "" {
		return errors.New("participant identity is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting edge service", slog.String("participant", cfg.Edge.Participant))

	pubsub, err := newPubSub(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to broker: %w", err)
	}
	defer func() {
		if err := pubsub.Disconnect(context.Background()); err != nil {
			logger.Warn("failed to disconnect", slog.Any("error", err))
		}
	}()

	store, err := flotilla.NewStore(cfg.Store)
	if err != nil {
		return fmt.Errorf("failed to open payload store: %w", err)
	}

	trainer, err := runtimes.NewLinear(
		[][]float64{{1}, {2}, {3}, {4}},
		[]float64{2, 4, 6, 8},
		0.02, 100,
	)
	if err != nil {
		return fmt.Errorf("failed to build trainer: %w", err)
	}

	var opts []edge.Option
	if cfg.Edge.HeartbeatInterval != "" {
		interval, err := time.ParseDuration(cfg.Edge.HeartbeatInterval)
		if err != nil {
			return fmt.Errorf("invalid heartbeat interval: %w", err)
		}
		opts = append(opts, edge.WithHeartbeatInterval(interval))
	}

	service, err := edge.NewService(cfg.Edge.Participant, pubsub, store, trainer, logger, opts...)
	if err != nil {
		return fmt.Errorf("service initialization error: %w", err)
	}

	return service.Run(ctx)
}

// newPubSub connects with a last-will message so the broker announces this
// participant as offline if the connection drops.
func newPubSub(cfg *flotilla.Config, logger *slog.Logger) (mqtt.PubSub, error) {
	broker := cfg.Broker
	timeout := 30 * time.Second
	if broker.Timeout != "" {
		parsed, err := time.ParseDuration(broker.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid broker timeout: %w", err)
		}
		timeout = parsed
	}

	opts := mqtt.Options{
		Username:    broker.Username,
		Password:    broker.Password,
		CAPath:      broker.CAPath,
		CertPath:    broker.CertPath,
		KeyPath:     broker.KeyPath,
		WillTopic:   fl.HeartbeatTopic(cfg.Edge.Participant),
		WillPayload: `{"status":"offline"}`,
	}

	return mqtt.NewPubSub(broker.URL, byte(broker.QoS), "flotilla-edge-"+cfg.Edge.Participant, timeout, opts, logger)
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
