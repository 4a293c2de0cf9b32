// Package report delivers the slow-cycle ranked reports produced by the
// coordinator. Sinks must tolerate failure without affecting the merge
// loop; the coordinator logs and continues.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"MirrorScope/internal/model"
)

// Sink consumes one report per slow cycle.
type Sink interface {
	Write(r *model.Report) error
}

// LineSink emits each report as a single JSON line, the format ingestion
// pipelines and `jq` both cope with.
type LineSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLineSink creates a sink writing to w.
func NewLineSink(w io.Writer) *LineSink {
	return &LineSink{w: w}
}

// Write implements Sink.
func (s *LineSink) Write(r *model.Report) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write report line: %w", err)
	}
	return nil
}
