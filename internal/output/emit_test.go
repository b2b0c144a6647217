package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"auditrelay/internal/rules"
)

func TestEmitSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewEmitSink(&buf, "json")
	if err != nil {
		t.Fatalf("NewEmitSink returned error: %v", err)
	}

	_ = s.Write(rules.Result{Target: "o/r", RuleID: "a", Status: rules.StatusPass})
	_ = s.Write(Event{Type: EventCheckpoint, Percent: 40})
	_ = s.Write(rules.Result{Target: "o/r", RuleID: "b", Status: rules.StatusFail})
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	var got []rules.Result
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal json output: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 results, got %d", len(got))
	}
}

func TestEmitSink_NDJSON(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewEmitSink(&buf, "ndjson")
	if err != nil {
		t.Fatalf("NewEmitSink returned error: %v", err)
	}

	_ = s.Write(Event{Type: EventRunStarted, RunID: "run-1"})
	_ = s.Write(rules.Result{Target: "o/r", RuleID: "a", Status: rules.StatusPass})
	_ = s.Write(rules.Result{Target: "o/r", RuleID: "b", Status: rules.StatusFail})
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 ndjson lines, got %d", len(lines))
	}

	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("invalid json line %q: %v", lines[0], err)
	}
	if first.Type != EventRunStarted || first.RunID != "run-1" {
		t.Fatalf("unexpected first event: %+v", first)
	}

	for _, line := range lines[1:] {
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("invalid json line %q: %v", line, err)
		}
		if e.Type != EventRuleResult {
			t.Fatalf("expected event type rule.result, got %q", e.Type)
		}
		if e.Result == nil || e.Target != "o/r" {
			t.Fatalf("expected embedded result for o/r, got %+v", e.Result)
		}
	}
}

func TestEmitSink_InvalidArgs(t *testing.T) {
	if _, err := NewEmitSink(&bytes.Buffer{}, "text"); err == nil {
		t.Fatal("expected error for text format")
	}
	if _, err := NewEmitSink(nil, "json"); err == nil {
		t.Fatal("expected error for nil writer")
	}
}

func TestEmitSink_JSON_EmptyIsArray(t *testing.T) {
	var buf bytes.Buffer
	s, err := NewEmitSink(&buf, "json")
	if err != nil {
		t.Fatalf("NewEmitSink returned error: %v", err)
	}
	_ = s.Write(Event{Type: EventRunFinished, State: "done"})
	if err := s.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("expected empty array, got %q", got)
	}
}
