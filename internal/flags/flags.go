package flags

// Package flags defines canonical CLI flag names shared across the CLI and
// config file handling. Keeping these as constants avoids drift between Cobra
// flag wiring and code paths that refer to flags by name (config file
// precedence, error messages).
// IMPORTANT: These are flag *names* without leading dashes.
const (
	// Global
	FlagConfig    = "config"
	FlagVerbose   = "verbose"
	FlagLogFormat = "log-format"

	// Input
	FlagInput   = "input"
	FlagPattern = "pattern"
	FlagLenient = "lenient"

	// Rules
	FlagAssertModule = "assert-module"
	FlagModules      = "modules"
	FlagSet          = "set"
	FlagFormat       = "format"
	FlagLocale       = "locale"

	// Engine
	FlagEngine        = "engine"
	FlagEngineCommand = "engine-command"
	FlagEngineArgs    = "engine-arg"

	// Telemetry
	FlagTelemetryMode  = "telemetry-mode"
	FlagWorkspaceID    = "workspace-id"
	FlagSharedKey      = "shared-key"
	FlagLogType        = "log-type"
	FlagEndpoint       = "endpoint"
	FlagTenantID       = "tenant-id"
	FlagClientID       = "client-id"
	FlagClientSecret   = "client-secret"
	FlagDCRImmutableID = "dcr-id"
	FlagStreamName     = "stream"
	FlagDryRun         = "dry-run"

	// Export
	FlagOrg        = "org"
	FlagUser       = "user"
	FlagRepos      = "repos"
	FlagInclude    = "include"
	FlagExclude    = "exclude"
	FlagTopic      = "topic"
	FlagVisibility = "visibility"
	FlagArchived   = "archived"
	FlagForks      = "forks"
	FlagMaxRepos   = "max-repos"
	FlagOutDir     = "out-dir"
	FlagGitHubURL  = "github-url"

	// Output
	FlagConsoleFormat       = "console-format"
	FlagConsoleFilterStatus = "console-filter-status"
	FlagOut                 = "out"
	FlagOutFormat           = "out-format"
	FlagEmit                = "emit"
	FlagNoConsole           = "no-console"
	FlagReport              = "report"

	// Runtime
	FlagConcurrency    = "concurrency"
	FlagTimeout        = "timeout"
	FlagErrorMode      = "error-mode"
	FlagStrictDegraded = "strict-degraded"
)
