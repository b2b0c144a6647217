package rules

type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusSkipped Status = "SKIPPED"
	StatusError   Status = "ERROR"
)

// Result is one rule outcome for one target. Summary-format runs produce one
// Result per rule with TargetType "summary".
type Result struct {
	RuleID     string `json:"rule_id"`
	Module     string `json:"module,omitempty"`
	Target     string `json:"target"`
	TargetType string `json:"target_type,omitempty"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	// Source is the report file the target was read from.
	Source string `json:"source,omitempty"`
	Locale string `json:"locale,omitempty"`
	// Evidence contains simple key-value string pairs supporting the result.
	Evidence map[string]string `json:"evidence,omitempty"`
	// Metadata contains structured data supporting the result (e.g. lists, counts).
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Passed reports whether the result does not need attention.
func (r Result) Passed() bool {
	return r.Status == StatusPass || r.Status == StatusSkipped
}
