// Package telemetry forwards rule-evaluation records to a log-analytics
// workspace.
package telemetry

import (
	"context"
	"time"

	"auditrelay/internal/rules"
)

// DefaultLogType is the custom log table records are written to.
const DefaultLogType = "AuditRuleResults"

// Batch is the complete result set of one pipeline run.
type Batch struct {
	LogType     string
	RunID       string
	GeneratedAt time.Time
	Results     []rules.Result
}

func NewBatch(logType, runID string, results []rules.Result) Batch {
	if logType == "" {
		logType = DefaultLogType
	}
	return Batch{
		LogType:     logType,
		RunID:       runID,
		GeneratedAt: time.Now().UTC(),
		Results:     results,
	}
}

func (b Batch) Len() int { return len(b.Results) }

// Record is the row shape sent to the workspace. Field names become column
// names, so they follow the workspace's PascalCase convention.
type Record struct {
	TimeGenerated string            `json:"TimeGenerated"`
	RunId         string            `json:"RunId"`
	RuleName      string            `json:"RuleName"`
	ModuleName    string            `json:"ModuleName,omitempty"`
	TargetName    string            `json:"TargetName"`
	TargetType    string            `json:"TargetType,omitempty"`
	Outcome       string            `json:"Outcome"`
	Message       string            `json:"Message,omitempty"`
	Source        string            `json:"Source,omitempty"`
	Evidence      map[string]string `json:"Evidence,omitempty"`
}

// Records maps every result to one Record tagged with the run id.
func (b Batch) Records() []Record {
	ts := b.GeneratedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	stamp := ts.UTC().Format(time.RFC3339)

	out := make([]Record, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, Record{
			TimeGenerated: stamp,
			RunId:         b.RunID,
			RuleName:      r.RuleID,
			ModuleName:    r.Module,
			TargetName:    r.Target,
			TargetType:    r.TargetType,
			Outcome:       string(r.Status),
			Message:       r.Message,
			Source:        r.Source,
			Evidence:      r.Evidence,
		})
	}
	return out
}

// Sender delivers a batch to a backend.
type Sender interface {
	Send(ctx context.Context, batch Batch) error
}
