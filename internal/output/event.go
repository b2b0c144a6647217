package output

import "auditrelay/internal/rules"

// Event types.
const (
	EventRunStarted     = "run.started"
	EventCheckpoint     = "checkpoint"
	EventDiagnostic     = "diagnostic"
	EventRuleResult     = "rule.result"
	EventReportExported = "report.exported"
	EventRunFinished    = "run.finished"
)

// Event is a lifecycle record for NDJSON streaming output.
//
// JSON mode remains an aggregate of rules.Result values; NDJSON streams every
// Event, with rule results wrapped as rule.result events.
type Event struct {
	Type  string `json:"type"`
	RunID string `json:"run_id,omitempty"`
	*rules.Result

	// Checkpoints.
	Stage   string `json:"stage,omitempty"`
	Percent int    `json:"percent,omitempty"`

	// Diagnostics.
	Severity string `json:"severity,omitempty"`
	Code     string `json:"code,omitempty"`
	Path     string `json:"path,omitempty"`
	Detail   string `json:"detail,omitempty"`

	// Run totals.
	Files    int    `json:"files,omitempty"`
	Results  int    `json:"results,omitempty"`
	State    string `json:"state,omitempty"`
	Degraded bool   `json:"degraded,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

func eventFromResult(r rules.Result) Event {
	return Event{Type: EventRuleResult, Result: &r}
}
