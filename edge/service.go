// Package edge runs the participant-side responder: it executes federated
// learning commands against a local Trainer and publishes the results.
package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/0x6flab/namegenerator"

	"github.com/edgefleet/flotilla/pkg/blob"
	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mqtt"
	"github.com/edgefleet/flotilla/pkg/params"
)

const DefaultHeartbeatInterval = 10 * time.Second

var (
	ErrUnknownMethod = errors.New("unknown command method")

	namegen = namegenerator.NewGenerator()
)

// Service subscribes to the participant's command topic, executes each
// command against the Trainer and publishes a result message on the
// kind-specific result topic.
type Service struct {
	participant string
	displayName string
	pubsub      mqtt.PubSub
	store       blob.Store
	trainer     Trainer
	heartbeat   time.Duration
	logger      *slog.Logger
}

type Option func(*Service)

func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *Service) {
		s.heartbeat = d
	}
}

func NewService(participant string, pubsub mqtt.PubSub, store blob.Store, trainer Trainer, logger *slog.Logger, opts ...Option) (*Service, error) {
	if participant == "" {
		return nil, errors.New("participant identity is required")
	}
	if trainer == nil {
		return nil, errors.New("trainer is required")
	}

	s := &Service{
		participant: participant,
		displayName: namegen.Generate(),
		pubsub:      pubsub,
		store:       store,
		trainer:     trainer,
		heartbeat:   DefaultHeartbeatInterval,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Run subscribes for commands and sends heartbeats until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	topic := fl.CommandTopic(s.participant)
	if err := s.pubsub.Subscribe(ctx, topic, s.handle); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}
	s.logger.Info("edge service started",
		slog.String("participant", s.participant),
		slog.String("name", s.displayName),
		slog.String("topic", topic))

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if err := s.pubsub.Unsubscribe(context.Background(), topic); err != nil {
				s.logger.Warn("failed to unsubscribe", slog.Any("error", err))
			}
			return ctx.Err()
		case <-ticker.C:
			s.publishHeartbeat(ctx)
		}
	}
}

func (s *Service) publishHeartbeat(ctx context.Context) {
	topic := fl.HeartbeatTopic(s.participant)
	beat := map[string]any{
		"status": "alive",
		"name":   s.displayName,
	}
	if err := s.pubsub.Publish(ctx, topic, beat); err != nil {
		s.logger.Warn("failed to publish heartbeat", slog.Any("error", err))
	}
}

func (s *Service) handle(topic string, msg map[string]interface{}) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	var cmd fl.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("malformed command: %w", err)
	}

	kind, err := fl.OpFromMethod(cmd.Method)
	if err != nil {
		return errors.Join(ErrUnknownMethod, err)
	}
	if err := cmd.Validate(); err != nil {
		return fmt.Errorf("invalid %s command: %w", cmd.Method, err)
	}

	ctx := context.Background()
	start := time.Now()
	result, err := s.execute(ctx, kind, cmd)
	if err != nil {
		s.logger.Error("command failed",
			slog.String("method", cmd.Method),
			slog.Any("error", err))
		return err
	}
	s.logger.Info("command completed",
		slog.String("method", cmd.Method),
		slog.Duration("duration", time.Since(start)))

	return s.publishResult(ctx, kind, result)
}

func (s *Service) execute(ctx context.Context, kind fl.Op, cmd fl.Command) (fl.Result, error) {
	result := fl.Result{Client: s.participant}

	switch kind {
	case fl.OpGet:
		p, err := s.trainer.Parameters(ctx)
		if err != nil {
			return fl.Result{}, err
		}
		path, err := s.stageAt(ctx, cmd.Bucket, cmd.Prefix, p)
		if err != nil {
			return fl.Result{}, err
		}
		result.Path = path
	case fl.OpSet:
		p, err := s.destage(ctx, cmd.Bucket, cmd.Prefix)
		if err != nil {
			return fl.Result{}, err
		}
		if err := s.trainer.SetParameters(ctx, p); err != nil {
			return fl.Result{}, err
		}
	case fl.OpFit:
		p, err := s.destage(ctx, cmd.Bucket, cmd.Prefix)
		if err != nil {
			return fl.Result{}, err
		}
		trained, n, metrics, err := s.trainer.Fit(ctx, p, nil)
		if err != nil {
			return fl.Result{}, err
		}
		path, err := s.stageAt(ctx, cmd.OutBucket, cmd.OutPrefix, trained)
		if err != nil {
			return fl.Result{}, err
		}
		result.Path = path
		result.TrainLen = n
		result.Dict = metrics
	case fl.OpEvaluate:
		p, err := s.destage(ctx, cmd.Bucket, cmd.Prefix)
		if err != nil {
			return fl.Result{}, err
		}
		loss, n, metrics, err := s.trainer.Evaluate(ctx, p)
		if err != nil {
			return fl.Result{}, err
		}
		result.Loss = loss
		result.TrainLen = n
		result.Accuracy = metrics
	default:
		return fl.Result{}, ErrUnknownMethod
	}

	return result, nil
}

func (s *Service) publishResult(ctx context.Context, kind fl.Op, result fl.Result) error {
	topic := fl.ResultTopic(kind, s.participant)
	if err := s.pubsub.Publish(ctx, topic, result); err != nil {
		return fmt.Errorf("failed to publish %s result: %w", kind, err)
	}

	return nil
}

// stageAt uploads p at the location the command asked for and returns its
// locator.
func (s *Service) stageAt(ctx context.Context, bucket, key string, p params.Parameters) (string, error) {
	data, err := params.Encode(p)
	if err != nil {
		return "", err
	}
	if err := s.store.Upload(ctx, bucket, key, data); err != nil {
		return "", fmt.Errorf("failed to upload parameters: %w", err)
	}

	loc := fl.Locator{Scheme: s.store.Scheme(), Bucket: bucket, Key: key}

	return loc.String(), nil
}

func (s *Service) destage(ctx context.Context, bucket, key string) (params.Parameters, error) {
	data, err := s.store.Download(ctx, bucket, key)
	if err != nil {
		return nil, fmt.Errorf("failed to download parameters: %w", err)
	}

	return params.Decode(data)
}
