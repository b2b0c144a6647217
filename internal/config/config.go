package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"auditrelay/internal/rules"
	"auditrelay/internal/telemetry"

	"golang.org/x/text/language"
)

// Environment variables that supply telemetry secrets when the matching
// field is empty.
const (
	EnvWorkspaceID  = "AUDITRELAY_WORKSPACE_ID"
	EnvSharedKey    = "AUDITRELAY_SHARED_KEY"
	EnvClientSecret = "AUDITRELAY_CLIENT_SECRET"
)

// Telemetry modes.
const (
	TelemetryDataCollector = "data-collector"
	TelemetryIngestion     = "ingestion"
)

// Engine kinds.
const (
	EngineLocal = "local"
	EngineExec  = "exec"
)

type Config struct {
	// MAINTAINER NOTE: keep the yaml keys, CLI flags in internal/cli and the
	// validation below in sync.
	Input     Input     `yaml:"input"`
	Rules     Rules     `yaml:"rules"`
	Engine    Engine    `yaml:"engine"`
	Telemetry Telemetry `yaml:"telemetry"`
	Export    Export    `yaml:"export"`
	Output    Output    `yaml:"output"`
	Runtime   Runtime   `yaml:"runtime"`
}

type Input struct {
	// Path is the root directory searched for report files (see --input).
	Path string `yaml:"path"`

	// Pattern is the file-name glob of report files (see --pattern).
	Pattern string `yaml:"pattern"`

	// Lenient accepts JSON with comments and trailing commas (see --lenient).
	Lenient bool `yaml:"lenient"`
}

type Rules struct {
	// AssertModule is evaluated first in assertion mode; empty disables the pass
	// (see --assert-module).
	AssertModule string `yaml:"assert_module"`

	// Modules selects the rule modules of the main evaluation pass (see --modules).
	// Empty means every built-in module.
	Modules []string `yaml:"modules"`

	// Set provides per-rule option overrides (ruleID.option=value; see --set).
	Set []string `yaml:"set"`

	// Format is detail or summary (see --format).
	Format string `yaml:"format"`

	// Locale is the BCP 47 tag for result messages (see --locale).
	Locale string `yaml:"locale"`
}

type Engine struct {
	// Kind is local (built-in rules) or exec (external command; see --engine).
	Kind string `yaml:"kind"`

	// Command and Args start the external engine (see --engine-command, --engine-arg).
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

type Telemetry struct {
	// Mode is data-collector or ingestion (see --telemetry-mode).
	Mode string `yaml:"mode"`

	// Data Collector API.
	WorkspaceID string `yaml:"workspace_id"`
	SharedKey   string `yaml:"shared_key"`
	LogType     string `yaml:"log_type"`

	// Endpoint overrides the Data Collector URL, or is the data collection
	// endpoint in ingestion mode (see --endpoint).
	Endpoint string `yaml:"endpoint"`

	// Logs Ingestion API.
	TenantID       string `yaml:"tenant_id"`
	ClientID       string `yaml:"client_id"`
	ClientSecret   string `yaml:"client_secret"`
	DCRImmutableID string `yaml:"dcr_immutable_id"`
	Stream         string `yaml:"stream"`

	// DryRun evaluates everything and discards the records (see --dry-run).
	DryRun bool `yaml:"dry_run"`
}

type Export struct {
	// Org, User and Repos select the repositories to export (see --org, --user, --repos).
	Org   string   `yaml:"org"`
	User  string   `yaml:"user"`
	Repos []string `yaml:"repos"`

	// Include and Exclude filter by name using path.Match; a pattern
	// containing '/' matches OWNER/REPO, otherwise the repo name.
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`

	// Topic requires at least one matching topic (see --topic).
	Topic []string `yaml:"topic"`

	// Visibility is public, private, internal or all (see --visibility).
	Visibility string `yaml:"visibility"`

	// Archived and Forks are include, exclude or only.
	// If --user is set and forks is omitted, forks default to include.
	Archived string `yaml:"archived"`
	Forks    string `yaml:"forks"`

	// MaxRepos limits how many repositories are exported. 0 means unlimited.
	MaxRepos int `yaml:"max_repos"`

	// OutDir receives <owner>/<repo>.json report files (see --out-dir).
	OutDir string `yaml:"out_dir"`

	// GitHubURL is a GitHub Enterprise Server URL (see --github-url).
	GitHubURL string `yaml:"github_url"`
}

type Output struct {
	// ConsoleFormat is text, json or ndjson (see --console-format).
	ConsoleFormat string `yaml:"console_format"`

	// ConsoleFilterStatus limits console results to these statuses.
	ConsoleFilterStatus []string `yaml:"console_filter_status"`

	// Report writes a Markdown run report to this path (see --report).
	Report string `yaml:"report"`

	// Out writes structured output to this path (see --out).
	Out string `yaml:"out"`

	// OutFormat is json or ndjson; inferred from the --out extension if empty.
	OutFormat string `yaml:"out_format"`

	// Emit writes additional structured streams to stdout (see --emit).
	Emit []string `yaml:"emit"`

	// NoConsole suppresses the console sink (see --no-console).
	NoConsole bool `yaml:"no_console"`
}

type Runtime struct {
	// Concurrency bounds parallel report validation and export (see --concurrency).
	Concurrency int `yaml:"concurrency"`

	// Timeout bounds the whole run (see --timeout).
	Timeout time.Duration `yaml:"timeout"`

	// ErrorMode is continue or stop; stop makes per-file warnings fatal.
	ErrorMode string `yaml:"error_mode"`

	// StrictDegraded exits 2 when partial results were sent.
	StrictDegraded bool `yaml:"strict_degraded"`

	Verbose   bool   `yaml:"verbose"`
	LogFormat string `yaml:"log_format"`
}

func New() *Config {
	return &Config{
		Input: Input{
			Pattern: "*.json",
		},
		Rules: Rules{
			AssertModule: rules.ModuleRepository,
			Format:       "detail",
			Locale:       "en-US",
		},
		Engine: Engine{
			Kind: EngineLocal,
		},
		Telemetry: Telemetry{
			Mode:    TelemetryDataCollector,
			LogType: telemetry.DefaultLogType,
		},
		Export: Export{
			Visibility: "all",
			Archived:   "exclude",
			Forks:      "exclude",
			OutDir:     "reports",
		},
		Output: Output{
			ConsoleFormat: "text",
		},
		Runtime: Runtime{
			Concurrency: 4,
			Timeout:     30 * time.Minute,
			ErrorMode:   "continue",
			LogFormat:   "text",
		},
	}
}

// ApplyEnv fills empty telemetry secrets from the environment.
func (c *Config) ApplyEnv() {
	fill := func(dst *string, env string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
	fill(&c.Telemetry.WorkspaceID, EnvWorkspaceID)
	fill(&c.Telemetry.SharedKey, EnvSharedKey)
	fill(&c.Telemetry.ClientSecret, EnvClientSecret)
}

// ValidateRun normalizes and checks everything the run command needs.
func (c *Config) ValidateRun() error {
	if strings.TrimSpace(c.Input.Path) == "" {
		return errors.New("--input is required")
	}
	if strings.TrimSpace(c.Input.Pattern) == "" {
		c.Input.Pattern = "*.json"
	}
	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("invalid --pattern %q: %w", c.Input.Pattern, err)
	}

	c.Rules.Modules = splitCommaList(c.Rules.Modules)
	c.Rules.Set = splitCommaList(c.Rules.Set)
	c.Rules.AssertModule = strings.TrimSpace(c.Rules.AssertModule)

	c.Rules.Format = normalizeEnumValue(c.Rules.Format)
	if c.Rules.Format == "" {
		c.Rules.Format = "detail"
	}
	if c.Rules.Format != "detail" && c.Rules.Format != "summary" {
		return fmt.Errorf("unsupported --format: %s (must be one of: detail, summary)", c.Rules.Format)
	}
	if c.Rules.Locale == "" {
		c.Rules.Locale = "en-US"
	}
	if _, err := language.Parse(c.Rules.Locale); err != nil {
		return fmt.Errorf("invalid --locale %q: %w", c.Rules.Locale, err)
	}
	if len(c.Rules.Set) > 0 {
		if _, err := ParseRuleOptionAssignments(c.Rules.Set); err != nil {
			return err
		}
	}

	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateTelemetry(); err != nil {
		return err
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	if err := c.validateRuntime(); err != nil {
		return err
	}

	c.Runtime.ErrorMode = normalizeEnumValue(c.Runtime.ErrorMode)
	if c.Runtime.ErrorMode == "" {
		c.Runtime.ErrorMode = "continue"
	}
	if c.Runtime.ErrorMode != "continue" && c.Runtime.ErrorMode != "stop" {
		return fmt.Errorf("unsupported --error-mode: %s (must be one of: continue, stop)", c.Runtime.ErrorMode)
	}
	return nil
}

func (c *Config) validateEngine() error {
	c.Engine.Kind = normalizeEnumValue(c.Engine.Kind)
	switch c.Engine.Kind {
	case "", EngineLocal:
		c.Engine.Kind = EngineLocal
	case EngineExec:
		if strings.TrimSpace(c.Engine.Command) == "" {
			return errors.New("--engine-command is required with --engine exec")
		}
	default:
		return fmt.Errorf("unsupported --engine: %s (must be one of: local, exec)", c.Engine.Kind)
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	t := &c.Telemetry
	t.Mode = normalizeEnumValue(t.Mode)
	if t.Mode == "" {
		t.Mode = TelemetryDataCollector
	}
	if t.LogType == "" {
		t.LogType = telemetry.DefaultLogType
	}
	if t.Endpoint != "" {
		if _, err := url.ParseRequestURI(t.Endpoint); err != nil {
			return fmt.Errorf("invalid --endpoint %q: %w", t.Endpoint, err)
		}
	}

	switch t.Mode {
	case TelemetryDataCollector:
		if t.DryRun {
			return nil
		}
		if t.WorkspaceID == "" {
			return fmt.Errorf("--workspace-id (or %s) is required", EnvWorkspaceID)
		}
		if t.SharedKey == "" {
			return fmt.Errorf("--shared-key (or %s) is required", EnvSharedKey)
		}
	case TelemetryIngestion:
		if t.DryRun {
			return nil
		}
		var missing []string
		for _, f := range []struct {
			name, val string
		}{
			{"--endpoint", t.Endpoint},
			{"--tenant-id", t.TenantID},
			{"--client-id", t.ClientID},
			{"--client-secret", t.ClientSecret},
			{"--dcr-id", t.DCRImmutableID},
			{"--stream", t.Stream},
		} {
			if strings.TrimSpace(f.val) == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return fmt.Errorf("ingestion mode requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported --telemetry-mode: %s (must be one of: data-collector, ingestion)", t.Mode)
	}
	return nil
}

func (c *Config) validateOutput() error {
	c.Output.ConsoleFormat = normalizeEnumValue(c.Output.ConsoleFormat)
	if c.Output.ConsoleFormat == "" {
		c.Output.ConsoleFormat = "text"
	}
	if c.Output.ConsoleFormat != "text" && c.Output.ConsoleFormat != "json" && c.Output.ConsoleFormat != "ndjson" {
		return fmt.Errorf("unsupported --console-format: %s (must be one of: text, json, ndjson)", c.Output.ConsoleFormat)
	}

	c.Output.ConsoleFilterStatus = splitCommaList(c.Output.ConsoleFilterStatus)
	for i, st := range c.Output.ConsoleFilterStatus {
		v := strings.ToUpper(st)
		switch rules.Status(v) {
		case rules.StatusPass, rules.StatusFail, rules.StatusError, rules.StatusSkipped:
		default:
			return fmt.Errorf("unsupported --console-filter-status: %s (must be one of: PASS, FAIL, ERROR, SKIPPED)", st)
		}
		c.Output.ConsoleFilterStatus[i] = v
	}

	c.Output.Emit = splitCommaList(c.Output.Emit)
	for i, emit := range c.Output.Emit {
		v := normalizeEnumValue(emit)
		if v != "json" && v != "ndjson" {
			return fmt.Errorf("unsupported --emit value: %s (must be one of: json, ndjson)", v)
		}
		c.Output.Emit[i] = v
	}

	if c.Output.Out != "" {
		c.Output.OutFormat = normalizeEnumValue(c.Output.OutFormat)
		if c.Output.OutFormat == "" {
			switch ext := strings.ToLower(filepath.Ext(c.Output.Out)); ext {
			case ".json":
				c.Output.OutFormat = "json"
			case ".ndjson", ".jsonl":
				c.Output.OutFormat = "ndjson"
			case "":
				return errors.New("cannot infer output format from file extension (missing extension); use --out-format")
			default:
				return fmt.Errorf("cannot infer output format from file extension %q; use --out-format", ext)
			}
		} else if c.Output.OutFormat != "json" && c.Output.OutFormat != "ndjson" {
			return fmt.Errorf("unsupported output format: %s", c.Output.OutFormat)
		}
	}
	return nil
}

func (c *Config) validateRuntime() error {
	if c.Runtime.Concurrency <= 0 {
		return errors.New("--concurrency must be >= 1")
	}
	if c.Runtime.Timeout <= 0 {
		return errors.New("--timeout must be > 0")
	}
	c.Runtime.LogFormat = normalizeEnumValue(c.Runtime.LogFormat)
	if c.Runtime.LogFormat == "" {
		c.Runtime.LogFormat = "text"
	}
	if c.Runtime.LogFormat != "text" && c.Runtime.LogFormat != "json" {
		return fmt.Errorf("unsupported --log-format: %s (must be one of: text, json)", c.Runtime.LogFormat)
	}
	return nil
}

// ValidateExport normalizes and checks everything the export command needs.
func (c *Config) ValidateExport() error {
	e := &c.Export
	e.Repos = splitCommaList(e.Repos)
	e.Topic = splitCommaList(e.Topic)
	e.Include = splitCommaList(e.Include)
	e.Exclude = splitCommaList(e.Exclude)

	if e.Org != "" {
		org, err := normalizeAccountSelector(e.Org)
		if err != nil {
			return fmt.Errorf("invalid --org value: %w", err)
		}
		e.Org = org
	}
	if e.User != "" {
		user, err := normalizeAccountSelector(e.User)
		if err != nil {
			return fmt.Errorf("invalid --user value: %w", err)
		}
		e.User = user
	}

	if e.Org == "" && e.User == "" && len(e.Repos) == 0 {
		return errors.New("at least one of --org, --user, or --repos must be provided")
	}
	if e.Org != "" && e.User != "" {
		return errors.New("--org and --user are mutually exclusive")
	}
	if strings.TrimSpace(e.OutDir) == "" {
		return errors.New("--out-dir is required")
	}
	if e.GitHubURL != "" {
		u, err := url.Parse(e.GitHubURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid --github-url %q", e.GitHubURL)
		}
	}

	e.Visibility = normalizeEnumValue(e.Visibility)
	if e.Visibility == "" {
		e.Visibility = "all"
	}
	if e.Visibility != "public" && e.Visibility != "private" && e.Visibility != "internal" && e.Visibility != "all" {
		return fmt.Errorf("unsupported --visibility: %s (must be one of: public, private, internal, all)", e.Visibility)
	}

	for _, p := range []struct {
		flag string
		val  *string
	}{
		{"--archived", &e.Archived},
		{"--forks", &e.Forks},
	} {
		*p.val = normalizeEnumValue(*p.val)
		if *p.val == "" {
			*p.val = "exclude"
		}
		if *p.val != "include" && *p.val != "exclude" && *p.val != "only" {
			return fmt.Errorf("unsupported %s: %s (must be one of: include, exclude, only)", p.flag, *p.val)
		}
	}

	if e.MaxRepos < 0 {
		return errors.New("--max-repos must be >= 0")
	}
	if err := c.validateOutput(); err != nil {
		return err
	}
	return c.validateRuntime()
}

func normalizeEnumValue(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func normalizeAccountSelector(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	// Accept a raw account name, or a GitHub URL like:
	//   https://github.com/<name>
	//   https://github.com/orgs/<name>
	//   https://github.com/users/<name>
	//   github.com/<name>
	if strings.HasPrefix(raw, "github.com/") || strings.HasPrefix(raw, "www.github.com/") {
		raw = "https://" + raw
	}
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%q", raw)
		}
		host := strings.ToLower(u.Hostname())
		if host == "www.github.com" {
			host = "github.com"
		}
		if host != "github.com" {
			return "", fmt.Errorf("%q", raw)
		}
		parts := strings.FieldsFunc(strings.Trim(u.Path, "/"), func(r rune) bool { return r == '/' })
		if len(parts) == 0 {
			return "", fmt.Errorf("%q", raw)
		}
		if parts[0] == "orgs" || parts[0] == "users" {
			if len(parts) < 2 {
				return "", fmt.Errorf("%q", raw)
			}
			return parts[1], nil
		}
		return parts[0], nil
	}

	if strings.Contains(raw, "/") {
		return "", fmt.Errorf("%q", raw)
	}
	return raw, nil
}

// ParseRuleOptionAssignments parses values of the form "ruleID.option=value".
//
// Notes:
// - Entries may be provided via repeated flags and/or comma-delimited lists.
// - This validates syntax only (no validation of rule IDs or option names).
// - Empty values are allowed ("rule.option=").
func ParseRuleOptionAssignments(values []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string)
	for _, raw := range splitCommaList(values) {
		left, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
		}
		ruleID, opt, ok := strings.Cut(strings.TrimSpace(left), ".")
		if !ok {
			return nil, fmt.Errorf("invalid --set entry %q: expected rule.option=value", raw)
		}
		ruleID = strings.TrimSpace(ruleID)
		opt = strings.TrimSpace(opt)
		if ruleID == "" || opt == "" {
			return nil, fmt.Errorf("invalid --set entry %q: expected non-empty rule and option", raw)
		}
		if _, ok := out[ruleID]; !ok {
			out[ruleID] = make(map[string]string)
		}
		out[ruleID][opt] = strings.TrimSpace(value)
	}
	return out, nil
}

func splitCommaList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			p := strings.TrimSpace(part)
			if p == "" {
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
