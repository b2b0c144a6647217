package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"auditrelay/internal/rules"
)

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), "engine.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestExecEngine_JSONArray(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
echo '[{"rule_id":"r1","target":"acme/a","status":"PASS"},{"rule_id":"r2","target":"acme/a","status":"FAIL"}]'
`)
	results, err := NewExecEngine(script, nil, nil).Evaluate(context.Background(), Request{Modules: []string{"Audit.Repository"}})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 2 || results[1].Status != rules.StatusFail {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecEngine_ReceivesRequestOnStdin(t *testing.T) {
	script := writeScript(t, `req=$(cat)
case "$req" in
  *'"assert":true'*) echo '{"rule_id":"assert","target":"x","status":"PASS"}' ;;
  *) echo '{"rule_id":"plain","target":"x","status":"PASS"}' ;;
esac
`)
	results, err := NewExecEngine(script, nil, nil).Evaluate(context.Background(), Request{Assert: true})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 1 || results[0].RuleID != "assert" {
		t.Fatalf("expected request to reach the command, got %+v", results)
	}
}

func TestExecEngine_PassesExcludedFiles(t *testing.T) {
	script := writeScript(t, `req=$(cat)
case "$req" in
  *'"exclude":["/reports/empty.json"]'*) echo '{"rule_id":"excluded","target":"x","status":"PASS"}' ;;
  *) echo '{"rule_id":"missing","target":"x","status":"PASS"}' ;;
esac
`)
	results, err := NewExecEngine(script, nil, nil).Evaluate(context.Background(), Request{
		Globs:   []string{"/reports/*.json"},
		Exclude: []string{"/reports/empty.json"},
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 1 || results[0].RuleID != "excluded" {
		t.Fatalf("expected exclude list on stdin, got %+v", results)
	}
}

func TestExecEngine_NDJSONPartialOnFailure(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
echo '{"rule_id":"r1","target":"acme/a","status":"PASS"}'
echo '{"rule_id":"r2","target":"acme/b","status":"ERROR"}'
echo 'engine crashed' >&2
exit 3
`)
	results, err := NewExecEngine(script, nil, nil).Evaluate(context.Background(), Request{})
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "engine crashed") {
		t.Errorf("expected stderr in error, got %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected salvaged results, got %d", len(results))
	}
}

func TestExecEngine_AssertFailure(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
echo '{"rule_id":"r1","target":"acme/a","status":"FAIL"}'
`)
	_, err := NewExecEngine(script, nil, nil).Evaluate(context.Background(), Request{Assert: true})
	var aerr *AssertionError
	if !errors.As(err, &aerr) || aerr.Failed != 1 {
		t.Fatalf("expected assertion error, got %v", err)
	}
}

func TestExecEngine_Env(t *testing.T) {
	script := writeScript(t, `cat > /dev/null
echo "{\"rule_id\":\"$RULE\",\"target\":\"x\",\"status\":\"PASS\"}"
`)
	e := NewExecEngine(script, nil, nil)
	e.Env = []string{"RULE=from-env"}
	results, err := e.Evaluate(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if len(results) != 1 || results[0].RuleID != "from-env" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestExecEngine_NoCommand(t *testing.T) {
	if _, err := (&ExecEngine{}).Evaluate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error without command")
	}
}

func TestParseResults(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    int
		wantErr bool
	}{
		{"empty", "  \n", 0, false},
		{"array", `[{"rule_id":"a","status":"PASS"}]`, 1, false},
		{"ndjson with blank lines", "{\"rule_id\":\"a\"}\n\n{\"rule_id\":\"b\"}\n", 2, false},
		{"ndjson broken tail", "{\"rule_id\":\"a\"}\nnot json\n", 1, true},
		{"broken array", `[{"rule_id":`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResults([]byte(tt.in))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if len(got) != tt.want {
				t.Fatalf("expected %d results, got %d", tt.want, len(got))
			}
		})
	}
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{max: 4}
	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if b.String() != "abcd" {
		t.Fatalf("expected truncated buffer, got %q", b.String())
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat(""); err != nil || f != FormatDetail {
		t.Errorf("empty format: %v, %v", f, err)
	}
	if f, err := ParseFormat("Summary"); err != nil || f != FormatSummary {
		t.Errorf("summary format: %v, %v", f, err)
	}
	if _, err := ParseFormat("table"); err == nil {
		t.Error("expected error")
	}
}
