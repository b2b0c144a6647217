package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"auditrelay/internal/rules"
)

// structuredStream renders values as machine-readable output.
//
//   - json: rule results are buffered and written as one array by finish;
//     lifecycle events are dropped.
//   - ndjson: every Event is written as one line as it arrives; rule results
//     are wrapped as rule.result events.
//
// Callers serialize access.
type structuredStream struct {
	w       io.Writer
	format  string
	results []rules.Result
}

func validStructuredFormat(format string) bool {
	return format == "json" || format == "ndjson"
}

func (s *structuredStream) write(v any) error {
	var ev Event
	switch t := v.(type) {
	case rules.Result:
		if s.format == "json" {
			s.results = append(s.results, t)
			return nil
		}
		ev = eventFromResult(t)
	case Event:
		if s.format == "json" {
			return nil
		}
		ev = t
	default:
		return nil
	}
	if err := json.NewEncoder(s.w).Encode(ev); err != nil {
		return err
	}
	return flushIfPossible(s.w)
}

func (s *structuredStream) finish() error {
	if s.format != "json" {
		return nil
	}
	results := s.results
	if results == nil {
		results = []rules.Result{}
	}
	encoder := json.NewEncoder(s.w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(results); err != nil {
		return err
	}
	return flushIfPossible(s.w)
}

// EmitSink writes an additional structured stream (json or ndjson).
type EmitSink struct {
	mu     sync.Mutex
	stream structuredStream
}

func NewEmitSink(w io.Writer, format string) (*EmitSink, error) {
	if w == nil {
		return nil, fmt.Errorf("emit sink writer must not be nil")
	}
	if !validStructuredFormat(format) {
		return nil, fmt.Errorf("unsupported emit format: %s", format)
	}
	return &EmitSink{stream: structuredStream{w: w, format: format}}, nil
}

func (s *EmitSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.write(v)
}

func (s *EmitSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.finish()
}
