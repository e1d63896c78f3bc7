package bridge

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// EvalSummary is the flattened evaluation record emitted for external metric
// extraction. The field layout is a stable contract: downstream log filters
// parse it.
type EvalSummary struct {
	Client   string  `json:"client"`
	Loss     string  `json:"loss"`
	Accuracy float64 `json:"accuracy"`
}

// SummarySink receives one record per completed Evaluate call.
type SummarySink interface {
	Emit(summary EvalSummary) error
}

// NopSink discards summaries.
type NopSink struct{}

func (NopSink) Emit(EvalSummary) error { return nil }

// StreamSink writes summaries as newline-delimited JSON, one record per line.
type StreamSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStreamSink(w io.Writer) *StreamSink {
	return &StreamSink{w: w}
}

func (s *StreamSink) Emit(summary EvalSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode evaluation summary: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write evaluation summary: %w", err)
	}

	return nil
}
