// Package bridge presents the four blocking training operations of one edge
// participant as ordinary function calls, implemented as publish-command,
// poll-mailbox, stage-blob underneath.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/edgefleet/flotilla/pkg/blob"
	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mailbox"
	"github.com/edgefleet/flotilla/pkg/metrics"
	"github.com/edgefleet/flotilla/pkg/mqtt"
)

// DefaultPollInterval is the delay between empty mailbox polls.
const DefaultPollInterval = 30 * time.Second

// Bridge drives one participant. Calls block until the participant answers or
// the context ends; at most one call per operation kind may be in flight.
type Bridge struct {
	participant  string
	bucket       string
	pubsub       mqtt.PubSub
	mailbox      mailbox.Mailbox
	store        blob.Store
	pollInterval time.Duration
	sink         SummarySink
	logger       *slog.Logger
	tracer       trace.Tracer

	leaseMu sync.Mutex
	leases  map[fl.Op]bool
}

type Option func(*Bridge)

func WithPollInterval(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.pollInterval = d
		}
	}
}

func WithSummarySink(s SummarySink) Option {
	return func(b *Bridge) {
		if s != nil {
			b.sink = s
		}
	}
}

func New(participant, bucket string, pubsub mqtt.PubSub, mbox mailbox.Mailbox, store blob.Store, logger *slog.Logger, opts ...Option) (*Bridge, error) {
	if participant == "" {
		return nil, errors.New("participant identifier is required")
	}
	if bucket == "" {
		return nil, errors.New("staging bucket is required")
	}

	b := &Bridge{
		participant:  participant,
		bucket:       bucket,
		pubsub:       pubsub,
		mailbox:      mbox,
		store:        store,
		pollInterval: DefaultPollInterval,
		sink:         NopSink{},
		logger:       logger,
		tracer:       otel.Tracer("flotilla/bridge"),
		leases:       make(map[fl.Op]bool),
	}
	for _, opt := range opts {
		opt(b)
	}

	return b, nil
}

func (b *Bridge) Participant() string {
	return b.participant
}

// call publishes one command and blocks until its result entry is claimed.
// This is the shared issue-command, await-entry primitive; the four public
// operations differ only in how they build the command and decode the entry.
func (b *Bridge) call(ctx context.Context, kind fl.Op, cmd fl.Command) (entry mailbox.Entry, err error) {
	if err := b.acquire(kind); err != nil {
		return mailbox.Entry{}, err
	}
	defer b.release(kind)

	ctx, span := b.tracer.Start(ctx, "bridge."+kind.Method(),
		trace.WithAttributes(attribute.String("participant", b.participant)))
	defer span.End()

	start := time.Now()
	metrics.OpInFlight.WithLabelValues(b.participant, string(kind)).Inc()
	defer func() {
		metrics.OpInFlight.WithLabelValues(b.participant, string(kind)).Dec()
		metrics.OpDuration.WithLabelValues(b.participant, string(kind)).Observe(time.Since(start).Seconds())
		outcome := "success"
		if err != nil {
			outcome = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		metrics.OpTotal.WithLabelValues(b.participant, string(kind), outcome).Inc()
	}()

	if err := cmd.Validate(); err != nil {
		return mailbox.Entry{}, err
	}

	topic := fl.CommandTopic(b.participant)
	if err := b.pubsub.Publish(ctx, topic, cmd); err != nil {
		return mailbox.Entry{}, fmt.Errorf("%w: %s", ErrPublishFailed, err)
	}

	b.logger.Info("Published command",
		slog.String("participant", b.participant),
		slog.String("method", cmd.Method),
		slog.String("topic", topic))

	return b.await(ctx, kind)
}

// await polls the mailbox under (participant, kind) until an entry is claimed
// or the context ends. Claiming is the atomic delete: whoever wins the delete
// owns the entry, and a lost race simply resumes polling. The context is the
// only way out of an unanswered call; cancellation never deletes an entry this
// call did not observe.
func (b *Bridge) await(ctx context.Context, kind fl.Op) (mailbox.Entry, error) {
	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		entry, found, err := b.mailbox.Get(ctx, b.participant, kind)
		if err != nil {
			return mailbox.Entry{}, fmt.Errorf("mailbox query failed: %w", err)
		}

		if found {
			deleted, err := b.mailbox.Delete(ctx, b.participant, kind)
			if err != nil {
				return mailbox.Entry{}, fmt.Errorf("failed to consume result entry: %w", err)
			}
			if deleted {
				return entry, nil
			}
			b.logger.Warn("Lost consume race for result entry, resuming poll",
				slog.String("participant", b.participant),
				slog.String("kind", string(kind)))
		} else {
			b.logger.Debug("Result entry not found yet",
				slog.String("participant", b.participant),
				slog.String("kind", string(kind)))
		}

		metrics.PollCycles.WithLabelValues(b.participant, string(kind)).Inc()

		select {
		case <-ctx.Done():
			return mailbox.Entry{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (b *Bridge) acquire(kind fl.Op) error {
	b.leaseMu.Lock()
	defer b.leaseMu.Unlock()

	if b.leases[kind] {
		return fmt.Errorf("%w: (%s, %s)", ErrOperationInFlight, b.participant, kind)
	}
	b.leases[kind] = true

	return nil
}

func (b *Bridge) release(kind fl.Op) {
	b.leaseMu.Lock()
	defer b.leaseMu.Unlock()

	delete(b.leases, kind)
}
