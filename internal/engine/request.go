package engine

import (
	"context"
	"fmt"
	"strings"

	"auditrelay/internal/rules"
)

// Format selects the shape of evaluation output.
type Format string

const (
	// FormatDetail yields one result per rule and target.
	FormatDetail Format = "detail"
	// FormatSummary yields one result per rule with pass counts.
	FormatSummary Format = "summary"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatDetail, nil
	case FormatDetail, FormatSummary:
		return f, nil
	default:
		return "", fmt.Errorf("invalid format %q (must be detail or summary)", s)
	}
}

// Request describes one evaluation pass.
type Request struct {
	Modules []string `json:"modules"`
	Globs   []string `json:"globs"`
	// Exclude lists files matched by Globs that must not be evaluated.
	Exclude []string `json:"exclude,omitempty"`
	Format  Format   `json:"format"`
	Locale  string   `json:"locale"`
	// Assert makes the evaluator return an error when any rule did not pass.
	Assert bool `json:"assert"`
}

// Evaluator runs rule modules over the report files matched by globs.
//
// On failure an Evaluator may return partial results together with a
// non-nil error; callers decide whether the partial set is usable.
type Evaluator interface {
	Evaluate(ctx context.Context, req Request) ([]rules.Result, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, req Request) ([]rules.Result, error)

func (f EvaluatorFunc) Evaluate(ctx context.Context, req Request) ([]rules.Result, error) {
	return f(ctx, req)
}

// AssertionError reports rules that did not pass in an assertion pass.
type AssertionError struct {
	Failed int
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %d rule(s) did not pass", e.Failed)
}

func assertResults(results []rules.Result) error {
	failed := 0
	for _, r := range results {
		if r.Status == rules.StatusFail || r.Status == rules.StatusError {
			failed++
		}
	}
	if failed > 0 {
		return &AssertionError{Failed: failed}
	}
	return nil
}
