package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/edgefleet/flotilla/pkg/fl"
	"github.com/edgefleet/flotilla/pkg/mailbox"
	"github.com/edgefleet/flotilla/pkg/params"
)

// FitResult is the outcome of one local training pass on the participant.
type FitResult struct {
	Parameters params.Parameters
	NumSamples int
	// Metrics is returned as deposited by the participant, values uninterpreted.
	Metrics map[string]string
}

// EvalResult is the outcome of one local evaluation pass.
type EvalResult struct {
	Loss       float64
	NumSamples int
	Metrics    map[string]float64
}

// FetchParameters asks the participant for its current model parameters.
func (b *Bridge) FetchParameters(ctx context.Context) (params.Parameters, error) {
	cmd := fl.Command{
		Method: fl.OpGet.Method(),
		Bucket: b.bucket,
		Prefix: b.freshKey("get"),
	}

	entry, err := b.call(ctx, fl.OpGet, cmd)
	if err != nil {
		return nil, err
	}

	return b.destage(ctx, entry)
}

// PushParameters replaces the participant's model parameters. The
// acknowledgement is the presence of the result entry alone; the protocol
// carries no verification that the participant applied the values.
func (b *Bridge) PushParameters(ctx context.Context, p params.Parameters) error {
	prefix, err := b.stage(ctx, p)
	if err != nil {
		return err
	}

	cmd := fl.Command{
		Method: fl.OpSet.Method(),
		Bucket: b.bucket,
		Prefix: prefix,
	}

	_, err = b.call(ctx, fl.OpSet, cmd)

	return err
}

// Fit runs one local training pass on the participant, seeded with p, and
// returns the updated parameters with the participant's sample count and
// metrics. config is accepted for interface parity with the training server
// but is not part of the command wire format.
func (b *Bridge) Fit(ctx context.Context, p params.Parameters, config map[string]any) (FitResult, error) {
	_ = config

	prefix, err := b.stage(ctx, p)
	if err != nil {
		return FitResult{}, err
	}

	cmd := fl.Command{
		Method:    fl.OpFit.Method(),
		Bucket:    b.bucket,
		Prefix:    prefix,
		OutBucket: b.bucket,
		OutPrefix: b.freshKey("get"),
	}

	entry, err := b.call(ctx, fl.OpFit, cmd)
	if err != nil {
		return FitResult{}, err
	}

	newParams, err := b.destage(ctx, entry)
	if err != nil {
		return FitResult{}, err
	}

	numSamples, err := strconv.Atoi(entry.TrainLen)
	if err != nil {
		return FitResult{}, fmt.Errorf("%w: train_len %q", ErrMalformedEntry, entry.TrainLen)
	}

	dict := entry.Dict
	if dict == nil {
		dict = map[string]string{}
	}

	return FitResult{
		Parameters: newParams,
		NumSamples: numSamples,
		Metrics:    dict,
	}, nil
}

// Evaluate runs one local evaluation pass on the participant. Evaluation
// results are small enough to travel inline in the result entry, so no return
// blob is involved. A flattened summary record is also emitted to the
// configured sink for external monitoring.
func (b *Bridge) Evaluate(ctx context.Context, p params.Parameters) (EvalResult, error) {
	prefix, err := b.stage(ctx, p)
	if err != nil {
		return EvalResult{}, err
	}

	cmd := fl.Command{
		Method: fl.OpEvaluate.Method(),
		Bucket: b.bucket,
		Prefix: prefix,
	}

	entry, err := b.call(ctx, fl.OpEvaluate, cmd)
	if err != nil {
		return EvalResult{}, err
	}

	loss, err := strconv.ParseFloat(entry.Loss, 64)
	if err != nil {
		return EvalResult{}, fmt.Errorf("%w: loss %q", ErrMalformedEntry, entry.Loss)
	}

	numSamples, err := strconv.Atoi(entry.TrainLen)
	if err != nil {
		return EvalResult{}, fmt.Errorf("%w: train_len %q", ErrMalformedEntry, entry.TrainLen)
	}

	accuracy := make(map[string]float64, len(entry.Accuracy))
	for k, v := range entry.Accuracy {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return EvalResult{}, fmt.Errorf("%w: accuracy %q=%q", ErrMalformedEntry, k, v)
		}
		accuracy[k] = f
	}

	summary := EvalSummary{
		Client:   b.participant,
		Loss:     entry.Loss,
		Accuracy: accuracy["accuracy"],
	}
	if err := b.sink.Emit(summary); err != nil {
		b.logger.Warn("Failed to emit evaluation summary", slog.Any("error", err))
	}

	return EvalResult{
		Loss:       loss,
		NumSamples: numSamples,
		Metrics:    accuracy,
	}, nil
}

// stage serializes p and uploads it to a fresh outbound key, returning the key.
func (b *Bridge) stage(ctx context.Context, p params.Parameters) (string, error) {
	data, err := params.Encode(p)
	if err != nil {
		return "", err
	}

	key := b.freshKey("set")
	if err := b.store.Upload(ctx, b.bucket, key, data); err != nil {
		return "", fmt.Errorf("failed to stage payload: %w", err)
	}

	return key, nil
}

// destage resolves the blob locator carried in a result entry, downloads it
// and deserializes the parameters. Nothing is left behind on any exit path.
func (b *Bridge) destage(ctx context.Context, entry mailbox.Entry) (params.Parameters, error) {
	if entry.Path == "" {
		return nil, fmt.Errorf("%w: missing path", ErrMalformedEntry)
	}

	loc, err := fl.ParseLocator(entry.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedEntry, err)
	}

	data, err := b.store.Download(ctx, loc.Bucket, loc.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payload blob: %w", err)
	}

	p, err := params.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedEntry, err)
	}

	return p, nil
}

// freshKey generates a unique blob key per call so sequential calls never
// read each other's payloads.
func (b *Bridge) freshKey(direction string) string {
	return fmt.Sprintf("parameters/%s/%s/%s.bin", direction, b.participant, uuid.NewString())
}
