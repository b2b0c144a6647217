package rules

import (
	"context"

	"auditrelay/internal/data"

	"github.com/google/go-github/v81/github"
)

// Rule evaluates one exported repository report.
type Rule interface {
	ID() string
	Title() string
	Description() string

	// Module names the rule module this rule belongs to (e.g. Audit.Repository).
	Module() string

	// Dependencies declares the report sections this rule reads.
	Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error)

	// Evaluate runs rule logic using only the DataContext.
	// Rules MUST NOT call platform APIs.
	Evaluate(ctx context.Context, repo *github.Repository, data data.DataContext) (Result, error)
}

type Option struct {
	Name        string
	Description string
	Default     string
}

type ConfigurableRule interface {
	Rule
	Options() []Option
	Configure(opts map[string]string) error
}
