package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"auditrelay/internal/rules"

	"github.com/fatih/color"
)

var statusColors = map[rules.Status]*color.Color{
	rules.StatusPass:    color.New(color.FgGreen),
	rules.StatusFail:    color.New(color.FgRed, color.Bold),
	rules.StatusError:   color.New(color.FgYellow),
	rules.StatusSkipped: color.New(color.FgHiBlack),
}

func colorStatus(s rules.Status) string {
	label := "[" + string(s) + "]"
	if c, ok := statusColors[s]; ok {
		return c.Sprint(label)
	}
	return label
}

// ConsoleSink renders results for humans (text) or machines (json, ndjson).
type ConsoleSink struct {
	writer          io.Writer
	format          string // "text", "json", "ndjson"
	mu              sync.Mutex
	stream          structuredStream
	allowedStatuses map[string]bool
}

func NewConsoleSink(w io.Writer, format string, filterStatuses []string) *ConsoleSink {
	if w == nil {
		w = os.Stdout
	}
	if format == "" {
		format = "text"
	}

	s := &ConsoleSink{
		writer: w,
		format: format,
		stream: structuredStream{w: w, format: format},
	}

	if len(filterStatuses) > 0 {
		s.allowedStatuses = make(map[string]bool)
		for _, st := range filterStatuses {
			s.allowedStatuses[strings.ToUpper(strings.TrimSpace(st))] = true
		}
	}

	return s
}

func (s *ConsoleSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, isResult := v.(rules.Result)
	if isResult && len(s.allowedStatuses) > 0 && !s.allowedStatuses[string(r.Status)] {
		return nil
	}

	switch s.format {
	case "json", "ndjson":
		return s.stream.write(v)
	case "text":
		if !isResult {
			return nil
		}
		line := fmt.Sprintf("%s %s: %s", colorStatus(r.Status), r.Target, r.RuleID)
		if r.Message != "" {
			line += " - " + r.Message
		}
		if _, err := fmt.Fprintln(s.writer, line); err != nil {
			return err
		}
		return flushIfPossible(s.writer)
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}

func (s *ConsoleSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.format {
	case "json", "ndjson":
		return s.stream.finish()
	case "text":
		return nil
	default:
		return fmt.Errorf("unsupported console format: %s", s.format)
	}
}
