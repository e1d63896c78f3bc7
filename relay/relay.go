// Package relay moves result messages from the messaging channel into the
// result mailbox, where the coordinator-side bridge polls for them.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mailbox"
	"github.com/edgefleet/flotilla/pkg/metrics"
	"github.com/edgefleet/flotilla/pkg/mqtt"
)

var subscribedKinds = []fl.Op{fl.OpGet, fl.OpSet, fl.OpFit, fl.OpEvaluate}

// Service subscribes to the result topics of every operation kind and
// deposits one mailbox entry per message. A redelivered result replaces the
// previous entry for its (participant, kind) slot, so the mailbox never
// holds more than one row per slot.
type Service struct {
	pubsub  mqtt.PubSub
	mailbox mailbox.Mailbox
	logger  *slog.Logger
}

func NewService(pubsub mqtt.PubSub, mbox mailbox.Mailbox, logger *slog.Logger) (*Service, error) {
	if mbox == nil {
		return nil, errors.New("mailbox is required")
	}

	return &Service{pubsub: pubsub, mailbox: mbox, logger: logger}, nil
}

// Run subscribes to all result topics and blocks until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	for _, kind := range subscribedKinds {
		filter := fl.ResultTopicFilter(kind)
		if err := s.pubsub.Subscribe(ctx, filter, s.handle); err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
		}
		s.logger.Info("relay subscribed", slog.String("topic", filter))
	}

	<-ctx.Done()

	for _, kind := range subscribedKinds {
		if err := s.pubsub.Unsubscribe(context.Background(), fl.ResultTopicFilter(kind)); err != nil {
			s.logger.Warn("failed to unsubscribe", slog.Any("error", err))
		}
	}

	return ctx.Err()
}

func (s *Service) handle(topic string, msg map[string]interface{}) error {
	kind, participant, err := fl.OpFromResultTopic(topic)
	if err != nil {
		metrics.RelayDeposits.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	result, err := decodeResult(msg)
	if err != nil {
		metrics.RelayDeposits.WithLabelValues(string(kind), "rejected").Inc()
		return fmt.Errorf("malformed result on %s: %w", topic, err)
	}
	if result.Client == "" {
		result.Client = participant
	}
	if err := result.Validate(kind); err != nil {
		metrics.RelayDeposits.WithLabelValues(string(kind), "rejected").Inc()
		return fmt.Errorf("invalid %s result from %s: %w", kind, participant, err)
	}

	entry := entryFromResult(kind, result)
	ctx := context.Background()
	status := "deposited"
	if err := s.mailbox.Put(ctx, entry); err != nil {
		if !errors.Is(err, mailbox.ErrDuplicateEntry) {
			metrics.RelayDeposits.WithLabelValues(string(kind), "failed").Inc()
			return fmt.Errorf("failed to deposit %s result for %s: %w", kind, entry.Client, err)
		}
		// Last write wins: a resent result replaces the unclaimed entry.
		if _, err := s.mailbox.Delete(ctx, entry.Client, kind); err != nil {
			metrics.RelayDeposits.WithLabelValues(string(kind), "failed").Inc()
			return err
		}
		if err := s.mailbox.Put(ctx, entry); err != nil {
			metrics.RelayDeposits.WithLabelValues(string(kind), "failed").Inc()
			return err
		}
		status = "replaced"
	}

	metrics.RelayDeposits.WithLabelValues(string(kind), status).Inc()
	s.logger.Info("result deposited",
		slog.String("participant", entry.Client),
		slog.String("kind", string(kind)),
		slog.String("status", status))

	return nil
}

func decodeResult(msg map[string]interface{}) (fl.Result, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return fl.Result{}, err
	}
	var result fl.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return fl.Result{}, err
	}

	return result, nil
}

// entryFromResult flattens a wire result into the mailbox row shape, where
// numeric fields travel as strings.
func entryFromResult(kind fl.Op, result fl.Result) mailbox.Entry {
	entry := mailbox.Entry{
		Client: result.Client,
		Kind:   kind,
		Path:   result.Path,
	}

	switch kind {
	case fl.OpFit:
		entry.TrainLen = strconv.Itoa(result.TrainLen)
		entry.Dict = stringifyMetrics(result.Dict)
	case fl.OpEvaluate:
		entry.TrainLen = strconv.Itoa(result.TrainLen)
		entry.Loss = strconv.FormatFloat(result.Loss, 'g', -1, 64)
		entry.Accuracy = stringifyMetrics(result.Accuracy)
	}

	return entry
}

func stringifyMetrics(in map[string]float64) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = strconv.FormatFloat(v, 'g', -1, 64)
	}

	return out
}
