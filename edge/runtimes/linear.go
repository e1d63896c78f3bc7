// Package runtimes provides reference Trainer implementations.
package runtimes

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/edgefleet/flotilla/pkg/params"
)

var errShapeMismatch = errors.New("parameter shape mismatch")

// Linear is a least-squares linear model trained with full-batch gradient
// descent on an in-memory dataset. It exists to exercise the whole command
// loop without pulling in an ML framework.
type Linear struct {
	mu       sync.Mutex
	weights  []float64
	features [][]float64
	targets  []float64
	rate     float64
	epochs   int
}

// NewLinear creates a trainer over the given dataset. Every feature row
// must have the same width, which fixes the weight vector length.
func NewLinear(features [][]float64, targets []float64, rate float64, epochs int) (*Linear, error) {
	if len(features) == 0 || len(features) != len(targets) {
		return nil, fmt.Errorf("dataset must be non-empty with matching feature and target lengths")
	}
	width := len(features[0])
	for i, row := range features {
		if len(row) != width {
			return nil, fmt.Errorf("feature row %d has width %d, expected %d", i, len(row), width)
		}
	}

	return &Linear{
		weights:  make([]float64, width),
		features: features,
		targets:  targets,
		rate:     rate,
		epochs:   epochs,
	}, nil
}

func (l *Linear) Parameters(ctx context.Context) (params.Parameters, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]float64, len(l.weights))
	copy(out, l.weights)

	return params.Parameters{out}, nil
}

func (l *Linear) SetParameters(ctx context.Context, p params.Parameters) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(p) != 1 || len(p[0]) != len(l.weights) {
		return errShapeMismatch
	}
	copy(l.weights, p[0])

	return nil
}

func (l *Linear) Fit(ctx context.Context, p params.Parameters, config map[string]string) (params.Parameters, int, map[string]float64, error) {
	if err := l.SetParameters(ctx, p); err != nil {
		return nil, 0, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	n := float64(len(l.features))
	for epoch := 0; epoch < l.epochs; epoch++ {
		grad := make([]float64, len(l.weights))
		for i, row := range l.features {
			residual := l.predict(row) - l.targets[i]
			for j, x := range row {
				grad[j] += 2 * residual * x / n
			}
		}
		for j := range l.weights {
			l.weights[j] -= l.rate * grad[j]
		}
	}

	out := make([]float64, len(l.weights))
	copy(out, l.weights)
	metrics := map[string]float64{"loss": l.meanSquaredError()}

	return params.Parameters{out}, len(l.features), metrics, nil
}

func (l *Linear) Evaluate(ctx context.Context, p params.Parameters) (float64, int, map[string]float64, error) {
	if err := l.SetParameters(ctx, p); err != nil {
		return 0, 0, nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	loss := l.meanSquaredError()
	metrics := map[string]float64{"accuracy": 1 / (1 + loss)}

	return loss, len(l.features), metrics, nil
}

func (l *Linear) predict(row []float64) float64 {
	var sum float64
	for j, x := range row {
		sum += l.weights[j] * x
	}

	return sum
}

func (l *Linear) meanSquaredError() float64 {
	var sum float64
	for i, row := range l.features {
		residual := l.predict(row) - l.targets[i]
		sum += residual * residual
	}

	return sum / float64(len(l.features))
}
