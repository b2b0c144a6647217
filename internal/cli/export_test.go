package cli

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"auditrelay/internal/config"
	"auditrelay/internal/flags"
	gh "auditrelay/internal/github"
	"auditrelay/internal/pipeline"

	"github.com/spf13/cobra"
)

func newExportTestClient(t *testing.T, mux *http.ServeMux) *gh.Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client, err := gh.NewClient(context.Background(), "dummy")
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	client.Client.BaseURL = base
	client.Client.UploadURL = base
	return client
}

func TestExportRepos_WritesReports(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/api", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":1,"name":"api","full_name":"acme/api","owner":{"login":"acme"},"default_branch":"main"}`)
	})
	mux.HandleFunc("/repos/acme/api/branches/main/protection", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Branch not protected"}`)
	})
	mux.HandleFunc("/repos/acme/api/contents/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	c := config.New()
	c.Export.Repos = []string{"acme/api"}
	c.Export.OutDir = t.TempDir()
	c.Output.Emit = []string{"ndjson"}
	c.Runtime.Timeout = time.Minute
	if err := c.ValidateExport(); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := exportRepos(context.Background(), c, newExportTestClient(t, mux), slog.New(slog.DiscardHandler), &stdout, &stderr)
	if code != pipeline.ExitOK {
		t.Fatalf("exit code = %d, want 0\nstderr: %s", code, stderr.String())
	}

	path := filepath.Join(c.Export.OutDir, "acme", "api.json")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected report at %s: %v", path, err)
	}
	if !strings.Contains(string(b), `"repo.default_branch_protection": null`) {
		t.Errorf("expected null protection section, got:\n%s", b)
	}
	if !strings.Contains(stdout.String(), `"type":"report.exported"`) {
		t.Errorf("expected report.exported event, got:\n%s", stdout.String())
	}
}

func TestExportRepos_ResolveFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Not Found"}`)
	})

	c := config.New()
	c.Export.Repos = []string{"acme/missing"}
	c.Export.OutDir = t.TempDir()
	c.Output.NoConsole = true
	c.Runtime.Timeout = time.Minute

	var stdout, stderr bytes.Buffer
	code := exportRepos(context.Background(), c, newExportTestClient(t, mux), slog.New(slog.DiscardHandler), &stdout, &stderr)
	if code != pipeline.ExitFailed {
		t.Fatalf("exit code = %d, want %d", code, pipeline.ExitFailed)
	}
	if !strings.Contains(stderr.String(), "Error resolving repositories") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunExportCommand_ValidationError(t *testing.T) {
	c := config.New()
	var stdout, stderr bytes.Buffer
	if code := runExportCommand(context.Background(), c, &stdout, &stderr); code != pipeline.ExitSetup {
		t.Fatalf("exit code = %d, want %d", code, pipeline.ExitSetup)
	}
	if !strings.Contains(stderr.String(), "at least one of --org, --user, or --repos") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestRunExportCommand_MissingToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GH_TOKEN", "")
	t.Setenv("PATH", t.TempDir())

	c := config.New()
	c.Export.Org = "acme"
	var stdout, stderr bytes.Buffer
	if code := runExportCommand(context.Background(), c, &stdout, &stderr); code != pipeline.ExitSetup {
		t.Fatalf("exit code = %d, want %d", code, pipeline.ExitSetup)
	}
	if !strings.Contains(stderr.String(), "GitHub auth token is required") {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}

func TestApplyImplicitDefaults_UserExport_DefaultsToIncludeForks(t *testing.T) {
	c := config.New()
	c.Export.User = "octocat"

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(flags.FlagForks, "exclude", "")

	applyImplicitDefaults(cmd, c)
	if c.Export.Forks != "include" {
		t.Fatalf("expected forks policy include, got %q", c.Export.Forks)
	}
}

func TestApplyImplicitDefaults_UserExport_DoesNotOverrideExplicitForksFlag(t *testing.T) {
	c := config.New()
	c.Export.User = "octocat"

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String(flags.FlagForks, "exclude", "")
	if err := cmd.Flags().Set(flags.FlagForks, "exclude"); err != nil {
		t.Fatalf("set flag: %v", err)
	}

	applyImplicitDefaults(cmd, c)
	if c.Export.Forks != "exclude" {
		t.Fatalf("expected forks policy exclude, got %q", c.Export.Forks)
	}
}
