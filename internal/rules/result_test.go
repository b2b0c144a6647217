package rules

import (
	"encoding/json"
	"testing"

	"github.com/google/go-github/v81/github"
)

func TestResultSerialization(t *testing.T) {
	r := Result{
		RuleID:     "test-rule",
		Module:     ModuleRepository,
		Target:     "acme/repo",
		TargetType: TargetTypeRepository,
		Status:     StatusFail,
		Message:    "Something is wrong",
		Evidence: map[string]string{
			"key": "value",
		},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	expected := `{"rule_id":"test-rule","module":"Audit.Repository","target":"acme/repo","target_type":"repository","status":"FAIL","message":"Something is wrong","evidence":{"key":"value"}}`
	if string(data) != expected {
		t.Errorf("Expected %s, got %s", expected, string(data))
	}
}

func TestResultHelpers(t *testing.T) {
	repo := &github.Repository{FullName: github.Ptr("acme/repo")}

	res := FailResult(repo, "r", "bad")
	if res.Target != "acme/repo" || res.TargetType != TargetTypeRepository || res.Status != StatusFail {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Passed() {
		t.Error("FAIL should not count as passed")
	}
	if !SkippedResult(repo, "r", "n/a").Passed() {
		t.Error("SKIPPED should count as passed")
	}
	if got := RepoFullName(nil); got != "" {
		t.Errorf("expected empty name for nil repo, got %q", got)
	}
}
