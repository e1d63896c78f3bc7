// Package flotilla carries deployment configuration and the wiring that
// turns it into concrete backends.
package flotilla

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/edgefleet/flotilla/pkg/blob"
	"github.com/edgefleet/flotilla/pkg/blob/localfs"
	"github.com/edgefleet/flotilla/pkg/blob/ocireg"
	"github.com/edgefleet/flotilla/pkg/mailbox"
	"github.com/edgefleet/flotilla/pkg/mqtt"
)

const defaultBrokerTimeout = 30 * time.Second

// NewPubSub connects a messaging client according to the broker config.
func NewPubSub(cfg BrokerConfig, clientID string, logger *slog.Logger) (mqtt.PubSub, error) {
	timeout := defaultBrokerTimeout
	if cfg.Timeout != "" {
		parsed, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid broker timeout: %w", err)
		}
		timeout = parsed
	}

	opts := mqtt.Options{
		Username: cfg.Username,
		Password: cfg.Password,
		CAPath:   cfg.CAPath,
		CertPath: cfg.CertPath,
		KeyPath:  cfg.KeyPath,
	}

	return mqtt.NewPubSub(cfg.URL, byte(cfg.QoS), clientID, timeout, opts, logger)
}

// NewStore opens the payload store selected by the config.
func NewStore(cfg StoreConfig) (blob.Store, error) {
	switch cfg.Backend {
	case "", "local":
		return localfs.New(cfg.Root)
	case "oci":
		return ocireg.New(cfg.Registry, cfg.Username, cfg.Password, cfg.PlainHTTP)
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
}

// NewMailbox opens the result mailbox selected by the config.
func NewMailbox(cfg MailboxConfig) (mailbox.Mailbox, error) {
	switch cfg.Backend {
	case "", "memory":
		return mailbox.NewMemoryMailbox(), nil
	case "postgres":
		return mailbox.NewPostgresMailbox(cfg.DSN)
	}

	return nil, fmt.Errorf("unknown mailbox backend %q", cfg.Backend)
}
