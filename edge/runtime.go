package edge

import (
	"context"

	"github.com/edgefleet/flotilla/pkg/params"
)

// Trainer is the local learning runtime driven by the edge service. All
// methods are called from a single goroutine, one command at a time.
type Trainer interface {
	// Parameters returns the current local model parameters.
	Parameters(ctx context.Context) (params.Parameters, error)

	// SetParameters replaces the local model parameters.
	SetParameters(ctx context.Context, p params.Parameters) error

	// Fit trains on the local dataset starting from p and returns the
	// updated parameters, the number of samples trained on and any
	// training metrics.
	Fit(ctx context.Context, p params.Parameters, config map[string]string) (params.Parameters, int, map[string]float64, error)

	// Evaluate scores p against the local dataset and returns the loss,
	// the number of samples evaluated and any evaluation metrics.
	Evaluate(ctx context.Context, p params.Parameters) (float64, int, map[string]float64, error)
}
