// Package coordinator drives federated learning rounds across a set of
// participants, each reached through a synchronous bridge.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/edgefleet/flotilla/bridge"
	"github.com/edgefleet/flotilla/pkg/metrics"
	"github.com/edgefleet/flotilla/pkg/params"
)

var ErrNoParticipants = errors.New("no participants registered")

// Participant is the synchronous view of one federated client. It is
// satisfied by *bridge.Bridge.
type Participant interface {
	FetchParameters(ctx context.Context) (params.Parameters, error)
	PushParameters(ctx context.Context, p params.Parameters) error
	Fit(ctx context.Context, p params.Parameters, config map[string]any) (bridge.FitResult, error)
	Evaluate(ctx context.Context, p params.Parameters) (bridge.EvalResult, error)
}

// RoundSummary reports the outcome of one completed round.
type RoundSummary struct {
	Round        int                `json:"round"`
	Participants int                `json:"participants"`
	TrainSamples int                `json:"train_samples"`
	Loss         float64            `json:"loss"`
	Metrics      map[string]float64 `json:"metrics,omitempty"`
	CompletedAt  time.Time          `json:"completed_at"`
}

// Coordinator runs rounds sequentially: fit every participant in parallel,
// aggregate, push the aggregate back and evaluate it.
type Coordinator struct {
	mu           sync.Mutex
	participants map[string]Participant
	global       params.Parameters
	round        int
	last         *RoundSummary
	logger       *slog.Logger
	tracer       trace.Tracer
}

func New(logger *slog.Logger) *Coordinator {
	return &Coordinator{
		participants: make(map[string]Participant),
		logger:       logger,
		tracer:       otel.Tracer("coordinator"),
	}
}

// Register adds a participant under its identity, replacing any previous
// registration for the same identity.
func (c *Coordinator) Register(id string, p Participant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.participants[id] = p
}

func (c *Coordinator) Deregister(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.participants, id)
}

// Participants returns the registered identities in stable order.
func (c *Coordinator) Participants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.participants))
	for id := range c.participants {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids
}

// LastRound returns the most recent round summary, if any round completed.
func (c *Coordinator) LastRound() (RoundSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last == nil {
		return RoundSummary{}, false
	}

	return *c.last, true
}

// RunRound executes one full round and returns its summary.
func (c *Coordinator) RunRound(ctx context.Context, config map[string]any) (RoundSummary, error) {
	ctx, span := c.tracer.Start(ctx, "round")
	defer span.End()

	start := time.Now()
	summary, err := c.runRound(ctx, config)
	if err != nil {
		metrics.RoundTotal.WithLabelValues("error").Inc()
		return RoundSummary{}, err
	}
	metrics.RoundTotal.WithLabelValues("ok").Inc()

	c.logger.Info("round completed",
		slog.Int("round", summary.Round),
		slog.Int("participants", summary.Participants),
		slog.Float64("loss", summary.Loss),
		slog.Duration("duration", time.Since(start)))

	return summary, nil
}

func (c *Coordinator) runRound(ctx context.Context, config map[string]any) (RoundSummary, error) {
	c.mu.Lock()
	members := make(map[string]Participant, len(c.participants))
	for id, p := range c.participants {
		members[id] = p
	}
	global := c.global
	c.mu.Unlock()

	if len(members) == 0 {
		return RoundSummary{}, ErrNoParticipants
	}

	if global == nil {
		var err error
		global, err = c.bootstrap(ctx, members)
		if err != nil {
			return RoundSummary{}, err
		}
	}

	updates, err := c.fitAll(ctx, members, global, config)
	if err != nil {
		return RoundSummary{}, err
	}

	aggregated, err := Aggregate(updates)
	if err != nil {
		return RoundSummary{}, fmt.Errorf("aggregation failed: %w", err)
	}

	if err := c.pushAll(ctx, members, aggregated); err != nil {
		return RoundSummary{}, err
	}

	loss, evalMetrics, err := c.evaluateAll(ctx, members, aggregated)
	if err != nil {
		return RoundSummary{}, err
	}

	var samples int
	for _, u := range updates {
		samples += u.NumSamples
	}

	c.mu.Lock()
	c.global = aggregated
	c.round++
	summary := RoundSummary{
		Round:        c.round,
		Participants: len(members),
		TrainSamples: samples,
		Loss:         loss,
		Metrics:      evalMetrics,
		CompletedAt:  time.Now().UTC(),
	}
	c.last = &summary
	c.mu.Unlock()

	return summary, nil
}

// bootstrap pulls the initial global parameters from any one participant.
func (c *Coordinator) bootstrap(ctx context.Context, members map[string]Participant) (params.Parameters, error) {
	timer := time.Now()
	defer func() {
		metrics.RoundDuration.WithLabelValues("bootstrap").Observe(time.Since(timer).Seconds())
	}()

	for id, p := range members {
		global, err := p.FetchParameters(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to bootstrap from %s: %w", id, err)
		}
		c.logger.Info("bootstrapped global parameters", slog.String("participant", id))

		return global, nil
	}

	return nil, ErrNoParticipants
}

func (c *Coordinator) fitAll(ctx context.Context, members map[string]Participant, global params.Parameters, config map[string]any) ([]Update, error) {
	timer := time.Now()
	defer func() {
		metrics.RoundDuration.WithLabelValues("fit").Observe(time.Since(timer).Seconds())
	}()

	var mu sync.Mutex
	updates := make([]Update, 0, len(members))

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range members {
		g.Go(func() error {
			res, err := p.Fit(gctx, global, config)
			if err != nil {
				return fmt.Errorf("fit failed for %s: %w", id, err)
			}

			mu.Lock()
			updates = append(updates, Update{Participant: id, Parameters: res.Parameters, NumSamples: res.NumSamples})
			mu.Unlock()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return updates, nil
}

func (c *Coordinator) pushAll(ctx context.Context, members map[string]Participant, aggregated params.Parameters) error {
	timer := time.Now()
	defer func() {
		metrics.RoundDuration.WithLabelValues("push").Observe(time.Since(timer).Seconds())
	}()

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range members {
		g.Go(func() error {
			if err := p.PushParameters(gctx, aggregated); err != nil {
				return fmt.Errorf("push failed for %s: %w", id, err)
			}

			return nil
		})
	}

	return g.Wait()
}

// evaluateAll scores the aggregate on every participant and returns the
// sample-weighted loss along with sample-weighted evaluation metrics.
func (c *Coordinator) evaluateAll(ctx context.Context, members map[string]Participant, aggregated params.Parameters) (float64, map[string]float64, error) {
	timer := time.Now()
	defer func() {
		metrics.RoundDuration.WithLabelValues("evaluate").Observe(time.Since(timer).Seconds())
	}()

	var mu sync.Mutex
	results := make(map[string]bridge.EvalResult, len(members))

	g, gctx := errgroup.WithContext(ctx)
	for id, p := range members {
		g.Go(func() error {
			res, err := p.Evaluate(gctx, aggregated)
			if err != nil {
				return fmt.Errorf("evaluate failed for %s: %w", id, err)
			}

			mu.Lock()
			results[id] = res
			mu.Unlock()

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, nil, err
	}

	var total, loss float64
	sums := make(map[string]float64)
	for _, res := range results {
		weight := float64(res.NumSamples)
		total += weight
		loss += weight * res.Loss
		for k, v := range res.Metrics {
			sums[k] += weight * v
		}
	}
	if total == 0 {
		return 0, nil, errors.New("no evaluation samples reported")
	}

	out := make(map[string]float64, len(sums))
	for k, v := range sums {
		out[k] = v / total
	}

	return loss / total, out, nil
}
