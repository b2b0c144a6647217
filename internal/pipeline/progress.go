package pipeline

import (
	"context"
	"log/slog"
	"sync"
)

// Stage names a pipeline boundary that emits a checkpoint.
type Stage string

const (
	StageLocated   Stage = "located"
	StageValidated Stage = "validated"
	StageAsserted  Stage = "asserted"
	StageEvaluated Stage = "evaluated"
	StageSending   Stage = "sending"
	StageSent      Stage = "sent"
)

// Percent returns the fixed progress percentage of a stage.
func (s Stage) Percent() int {
	switch s {
	case StageLocated:
		return 25
	case StageValidated:
		return 40
	case StageAsserted:
		return 60
	case StageEvaluated:
		return 80
	case StageSending:
		return 90
	case StageSent:
		return 100
	default:
		return 0
	}
}

type Checkpoint struct {
	Stage   Stage
	Percent int
}

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes.
const (
	CodeNoInput           = "no-input"
	CodeUnreadablePath    = "unreadable-path"
	CodeEmptyReport       = "empty-report"
	CodeMalformedReport   = "malformed-report"
	CodeNoValidReports    = "no-valid-reports"
	CodeAssertionFailed   = "assertion-failed"
	CodeEvaluationPartial = "evaluation-partial"
	CodeNoResults         = "no-results"
	CodeRunFailed         = "run-failed"
)

// Diagnostic is a structured warning or error, tagged with a file path
// where one applies.
type Diagnostic struct {
	Severity Severity
	Code     string
	Path     string
	Message  string
}

type EventType string

const (
	EventCheckpoint EventType = "checkpoint"
	EventDiagnostic EventType = "diagnostic"
)

// Event carries either a Checkpoint or a Diagnostic.
type Event struct {
	Type       EventType
	RunID      string
	Checkpoint *Checkpoint
	Diagnostic *Diagnostic
}

// Reporter observes pipeline progress. It cannot influence the run.
type Reporter interface {
	Report(Event)
}

type ReporterFunc func(Event)

func (f ReporterFunc) Report(e Event) { f(e) }

type nopReporter struct{}

func (nopReporter) Report(Event) {}

type multiReporter []Reporter

func (m multiReporter) Report(e Event) {
	for _, r := range m {
		r.Report(e)
	}
}

// Reporters fans events out to every non-nil reporter.
func Reporters(rs ...Reporter) Reporter {
	var out multiReporter
	for _, r := range rs {
		if r != nil {
			out = append(out, r)
		}
	}
	switch len(out) {
	case 0:
		return nopReporter{}
	case 1:
		return out[0]
	default:
		return out
	}
}

// Recorder keeps every event it receives. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Percents returns the checkpoint percentages in emission order.
func (r *Recorder) Percents() []int {
	var out []int
	for _, e := range r.Events() {
		if e.Checkpoint != nil {
			out = append(out, e.Checkpoint.Percent)
		}
	}
	return out
}

// Diagnostics returns the recorded diagnostics, optionally filtered by severity.
func (r *Recorder) Diagnostics(sev ...Severity) []Diagnostic {
	var out []Diagnostic
	for _, e := range r.Events() {
		if e.Diagnostic == nil {
			continue
		}
		if len(sev) > 0 && !containsSeverity(sev, e.Diagnostic.Severity) {
			continue
		}
		out = append(out, *e.Diagnostic)
	}
	return out
}

func containsSeverity(list []Severity, s Severity) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// LogReporter writes events to a structured logger.
func LogReporter(logger *slog.Logger) Reporter {
	return logReporter(logger, false)
}

// DebugLogReporter is LogReporter with diagnostics demoted to debug level,
// for runs where another reporter already shows them to the user.
func DebugLogReporter(logger *slog.Logger) Reporter {
	return logReporter(logger, true)
}

func logReporter(logger *slog.Logger, debugOnly bool) Reporter {
	if logger == nil {
		return nopReporter{}
	}
	return ReporterFunc(func(e Event) {
		switch {
		case e.Checkpoint != nil:
			logger.Debug("checkpoint", "run_id", e.RunID, "stage", string(e.Checkpoint.Stage), "percent", e.Checkpoint.Percent)
		case e.Diagnostic != nil:
			d := e.Diagnostic
			attrs := []any{"run_id", e.RunID, "code", d.Code}
			if d.Path != "" {
				attrs = append(attrs, "path", d.Path)
			}
			level := severityLevel(d.Severity)
			if debugOnly {
				level = slog.LevelDebug
			}
			logger.Log(context.Background(), level, d.Message, attrs...)
		}
	})
}

func severityLevel(s Severity) slog.Level {
	switch s {
	case SeverityError:
		return slog.LevelError
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}
