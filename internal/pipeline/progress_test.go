package pipeline

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestStagePercents(t *testing.T) {
	stages := []Stage{StageLocated, StageValidated, StageAsserted, StageEvaluated, StageSending, StageSent}
	prev := 0
	for _, s := range stages {
		if s.Percent() <= prev {
			t.Fatalf("stage %s percent %d is not increasing", s, s.Percent())
		}
		prev = s.Percent()
	}
	if prev != 100 {
		t.Fatalf("last stage should be 100, got %d", prev)
	}
}

func TestReporters_FanOut(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	r := Reporters(a, nil, b)
	r.Report(Event{Type: EventDiagnostic, Diagnostic: &Diagnostic{Severity: SeverityWarning, Code: "x"}})
	if len(a.Events()) != 1 || len(b.Events()) != 1 {
		t.Fatalf("expected both reporters to receive the event")
	}
	// A nil-only set must still be safe to call.
	Reporters(nil).Report(Event{})
}

func TestLogReporter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r := LogReporter(logger)

	r.Report(Event{Type: EventCheckpoint, RunID: "r1", Checkpoint: &Checkpoint{Stage: StageLocated, Percent: 25}})
	r.Report(Event{Type: EventDiagnostic, RunID: "r1", Diagnostic: &Diagnostic{
		Severity: SeverityWarning, Code: CodeEmptyReport, Path: "/x/a.json", Message: "report file is empty",
	}})

	out := buf.String()
	for _, want := range []string{"percent=25", "level=WARN", "code=empty-report", "path=/x/a.json"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in log output:\n%s", want, out)
		}
	}
}

func TestDebugLogReporter_DemotesDiagnostics(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := DebugLogReporter(logger)

	r.Report(Event{Type: EventDiagnostic, RunID: "r1", Diagnostic: &Diagnostic{
		Severity: SeverityError, Code: CodeRunFailed, Message: "boom",
	}})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing above debug level, got:\n%s", buf.String())
	}

	buf.Reset()
	logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	DebugLogReporter(logger).Report(Event{Type: EventDiagnostic, RunID: "r1", Diagnostic: &Diagnostic{
		Severity: SeverityWarning, Code: CodeEmptyReport, Message: "report file is empty",
	}})
	if !strings.Contains(buf.String(), "level=DEBUG") || !strings.Contains(buf.String(), "code=empty-report") {
		t.Errorf("expected debug diagnostic, got:\n%s", buf.String())
	}
}

func TestRecorder_DiagnosticsFilter(t *testing.T) {
	rec := &Recorder{}
	rec.Report(Event{Diagnostic: &Diagnostic{Severity: SeverityWarning}})
	rec.Report(Event{Diagnostic: &Diagnostic{Severity: SeverityError}})
	rec.Report(Event{Checkpoint: &Checkpoint{Percent: 25}})
	if len(rec.Diagnostics()) != 2 || len(rec.Diagnostics(SeverityError)) != 1 {
		t.Fatal("unexpected diagnostic filtering")
	}
}
