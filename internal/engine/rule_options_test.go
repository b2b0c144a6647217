package engine

import (
	"context"
	"path/filepath"
	"testing"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type configurableToggleRule struct {
	id      string
	enabled bool
}

func (r *configurableToggleRule) ID() string          { return r.id }
func (r *configurableToggleRule) Title() string       { return "Test configurable toggle" }
func (r *configurableToggleRule) Description() string { return "Test-only configurable rule" }
func (r *configurableToggleRule) Module() string      { return rules.ModuleRepository }
func (r *configurableToggleRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return nil, nil
}
func (r *configurableToggleRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	if r.enabled {
		return rules.Result{Status: rules.StatusPass}, nil
	}
	return rules.Result{Status: rules.StatusFail}, nil
}
func (r *configurableToggleRule) Options() []rules.Option {
	return []rules.Option{{Name: "enabled", Default: "false"}}
}
func (r *configurableToggleRule) Configure(opts map[string]string) error {
	r.enabled = opts["enabled"] == "true"
	return nil
}

func TestLocalEngine_RuleOptions(t *testing.T) {
	inner := &configurableToggleRule{id: "engine-test-toggle"}
	rules.Register(inner)

	dir := t.TempDir()
	writeReport(t, dir, "r.json", &github.Repository{FullName: github.Ptr("acme/r")}, nil, nil)
	req := Request{
		Modules: []string{rules.ModuleRepository},
		Globs:   []string{filepath.Join(dir, "*.json")},
	}
	fromRegistry := func(modules []string) ([]rules.Rule, error) {
		return rules.Resolve("engine-test-toggle")
	}

	configured, err := NewLocalEngine(nil, false, RuleOptions{
		"engine-test-toggle": {"enabled": "true"},
	})
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	configured.ruleSource = fromRegistry
	plain, err := NewLocalEngine(nil, false, nil)
	if err != nil {
		t.Fatalf("NewLocalEngine: %v", err)
	}
	plain.ruleSource = fromRegistry

	got, err := configured.Evaluate(context.Background(), req)
	if err != nil || len(got) != 1 || got[0].Status != rules.StatusPass {
		t.Fatalf("configured engine: results %+v, err %v", got, err)
	}
	got, err = plain.Evaluate(context.Background(), req)
	if err != nil || len(got) != 1 || got[0].Status != rules.StatusFail {
		t.Fatalf("unconfigured engine saw another engine's options: %+v, err %v", got, err)
	}
	if inner.enabled {
		t.Error("registered rule must not be configured")
	}
}

func TestNewLocalEngine_InvalidRuleOptions(t *testing.T) {
	rules.Register(&configurableToggleRule{id: "engine-test-options"})

	tests := []struct {
		name string
		opts RuleOptions
	}{
		{"unknown rule", RuleOptions{"missing": {"x": "y"}}},
		{"unknown option", RuleOptions{"engine-test-options": {"bogus": "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLocalEngine(nil, false, tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}
