// Package params holds the model parameter payload exchanged between the
// coordinator and edge participants, and its serialized form.
package params

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Parameters is an ordered list of flattened model layers.
type Parameters [][]float64

var errEmptyPayload = errors.New("empty parameter payload")

// Encode serializes the parameters to CBOR.
func Encode(p Parameters) ([]byte, error) {
	data, err := cbor.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	return data, nil
}

// Decode deserializes a CBOR parameter payload.
func Decode(data []byte) (Parameters, error) {
	if len(data) == 0 {
		return nil, errEmptyPayload
	}

	var p Parameters
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}

	return p, nil
}

// Zeros returns parameters with the same shape as p, all values zero.
func Zeros(p Parameters) Parameters {
	out := make(Parameters, len(p))
	for i, layer := range p {
		out[i] = make([]float64, len(layer))
	}

	return out
}

// Equal reports structural equality of two parameter sets.
func Equal(a, b Parameters) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}

	return true
}
