package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	flotilla "github.com/edgefleet/flotilla"
	"github.com/edgefleet/flotilla/bridge"
	"github.com/edgefleet/flotilla/cli"
	"github.com/edgefleet/flotilla/pkg/mailbox"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "flotilla-cli",
		Short: "Command line client for the flotilla federated learning system",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.toml", "Path to the configuration file")

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	loadConfig := func() (*flotilla.Config, error) {
		return flotilla.LoadConfig(configPath)
	}

	bridgeFactory := func(participant string) (*bridge.Bridge, func(), error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, nil, err
		}
		pubsub, err := flotilla.NewPubSub(cfg.Broker, "flotilla-cli-"+participant, logger)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := pubsub.Disconnect(context.Background()); err != nil {
				logger.Warn("failed to disconnect", slog.Any("error", err))
			}
		}
		mbox, err := flotilla.NewMailbox(cfg.Mailbox)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		store, err := flotilla.NewStore(cfg.Store)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		bucket := cfg.Store.Bucket
		if bucket == "" {
			bucket = "models"
		}
		b, err := bridge.New(participant, bucket, pubsub, mbox, store, logger)
		if err != nil {
			cleanup()
			return nil, nil, err
		}

		return b, cleanup, nil
	}

	mailboxFactory := func() (mailbox.Mailbox, error) {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}

		return flotilla.NewMailbox(cfg.Mailbox)
	}

	root.AddCommand(cli.NewOpsCmd(bridgeFactory))
	root.AddCommand(cli.NewMailboxCmd(mailboxFactory))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
