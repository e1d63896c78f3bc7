package fl

import "errors"

// Result is the completion message the edge responder publishes on a result
// topic after executing a command. The relay turns it into a mailbox entry.
type Result struct {
	Client   string             `json:"client"`
	Path     string             `json:"path,omitempty"`
	TrainLen int                `json:"train_len,omitempty"`
	Loss     float64            `json:"loss,omitempty"`
	Dict     map[string]float64 `json:"dict,omitempty"`
	Accuracy map[string]float64 `json:"accuracy,omitempty"`
}

func (r Result) Validate(kind Op) error {
	if r.Client == "" {
		return errors.New("result validation: client is required")
	}

	switch kind {
	case OpGet, OpFit:
		if r.Path == "" {
			return errors.New("result validation: path is required")
		}
	case OpSet, OpEvaluate:
	}

	return nil
}
