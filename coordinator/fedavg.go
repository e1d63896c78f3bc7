package coordinator

import (
	"errors"
	"fmt"

	"github.com/edgefleet/flotilla/pkg/params"
)

var errNoUpdates = errors.New("no updates to aggregate")

// Update is one participant's training contribution to a round.
type Update struct {
	Participant string
	Parameters  params.Parameters
	NumSamples  int
}

// Aggregate computes the sample-weighted federated average of the updates.
// All updates must share the same parameter shape.
func Aggregate(updates []Update) (params.Parameters, error) {
	if len(updates) == 0 {
		return nil, errNoUpdates
	}

	var total float64
	for _, u := range updates {
		if u.NumSamples <= 0 {
			return nil, fmt.Errorf("update from %s has no samples", u.Participant)
		}
		total += float64(u.NumSamples)
	}

	out := params.Zeros(updates[0].Parameters)
	for _, u := range updates {
		if len(u.Parameters) != len(out) {
			return nil, fmt.Errorf("update from %s has %d layers, expected %d", u.Participant, len(u.Parameters), len(out))
		}
		weight := float64(u.NumSamples) / total
		for i, layer := range u.Parameters {
			if len(layer) != len(out[i]) {
				return nil, fmt.Errorf("update from %s has layer %d of size %d, expected %d", u.Participant, i, len(layer), len(out[i]))
			}
			for j, v := range layer {
				out[i][j] += weight * v
			}
		}
	}

	return out, nil
}
