package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"auditrelay/internal/config"
	"auditrelay/internal/engine"
	"auditrelay/internal/flags"
	"auditrelay/internal/logging"
	"auditrelay/internal/output"
	"auditrelay/internal/pipeline"
	"auditrelay/internal/telemetry"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate exported reports and send the results to log analytics",
	Long: `Evaluate exported audit reports and send the rule results to a
log-analytics workspace.

The run locates report files under --input, drops empty and malformed
files, evaluates the remaining reports and sends every result in one batch.

Telemetry:
	--telemetry-mode data-collector (default) posts to the HTTP Data Collector
	API with --workspace-id and --shared-key.
	--telemetry-mode ingestion posts to the Logs Ingestion API with --endpoint,
	--dcr-id, --stream and client credentials (--tenant-id, --client-id,
	--client-secret).
	Secrets may come from AUDITRELAY_WORKSPACE_ID, AUDITRELAY_SHARED_KEY and
	AUDITRELAY_CLIENT_SECRET. --dry-run evaluates everything and sends nothing.

Output:
	Console output is controlled by --console-format (default: text).
	Structured outputs can be written via:
	- --out / --out-format: write an aggregate JSON array or NDJSON stream to a file
	- --emit: write an additional structured stream to stdout (json or ndjson)
	- --report: write a Markdown run report
	- --no-console: suppress the console sink (use with --emit/--out for machine output)

	NDJSON mode emits one JSON object per line with a "type" field
	(run.started, checkpoint, diagnostic, rule.result, run.finished).

Exit codes:
	0 = run finished (results sent, or nothing to send)
	1 = run failed (input missing, evaluation produced nothing, send failed)
	2 = partial results were sent (only with --strict-degraded)
	3 = fatal setup error (run did not start)

Examples:
	export AUDITRELAY_WORKSPACE_ID="<workspace id>"
	export AUDITRELAY_SHARED_KEY="<primary key>"
	auditrelay run --input ./reports

	# Evaluate only, print NDJSON events
	auditrelay run --input ./reports --dry-run --no-console --emit ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 && configPath == "" {
			_ = cmd.Help()
			return
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		code := runPipeline(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		stop()
		os.Exit(code)
	},
}

// runPipeline executes one run and returns the process exit code.
func runPipeline(ctx context.Context, c *config.Config, stdout, stderr io.Writer) int {
	c.ApplyEnv()
	if err := c.ValidateRun(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitSetup
	}

	logger, err := logging.New(stderr, c.Runtime.LogFormat, c.Runtime.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitSetup
	}

	evaluator, err := newEvaluator(c, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error configuring rules: %v\n", err)
		return pipeline.ExitSetup
	}

	sender, err := newTelemetrySink(c, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error configuring telemetry: %v\n", err)
		return pipeline.ExitSetup
	}

	outMgr, err := newOutputManager(c, stdout, true)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating output sinks: %v\n", err)
		return pipeline.ExitSetup
	}

	reporters := []pipeline.Reporter{output.PipelineReporter(outMgr, logger)}
	if !c.Output.NoConsole && c.Output.ConsoleFormat == "text" {
		// pterm already prints diagnostics on stderr.
		reporters = append(reporters, pipeline.DebugLogReporter(logger), output.NewConsoleProgress(stderr))
	} else {
		reporters = append(reporters, pipeline.LogReporter(logger))
	}

	runID := uuid.NewString()
	p, err := pipeline.New(pipeline.Options{
		InputPath:    c.Input.Path,
		Pattern:      c.Input.Pattern,
		Lenient:      c.Input.Lenient,
		Concurrency:  c.Runtime.Concurrency,
		AssertModule: c.Rules.AssertModule,
		Modules:      c.Rules.Modules,
		Format:       engine.Format(c.Rules.Format),
		Locale:       c.Rules.Locale,
		LogType:      c.Telemetry.LogType,
		ErrorMode:    pipeline.ErrorMode(c.Runtime.ErrorMode),
		RunID:        runID,
	}, evaluator, output.TeeSink(outMgr, sender, logger), pipeline.Reporters(reporters...), logger)
	if err != nil {
		outMgr.Close()
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitSetup
	}

	ctx, cancel := context.WithTimeout(ctx, c.Runtime.Timeout)
	defer cancel()

	if err := output.RunStarted(outMgr, runID, c.Input.Path); err != nil {
		logger.Warn("output write failed", "type", output.EventRunStarted, "error", err)
	}

	res := p.Run(ctx)
	code := pipeline.ExitCode(res, c.Runtime.StrictDegraded)

	if err := output.RunFinished(outMgr, res, code); err != nil {
		logger.Warn("output write failed", "type", output.EventRunFinished, "error", err)
	}
	if err := outMgr.Close(); err != nil {
		logger.Error("closing output sinks failed", "error", err)
	}

	logger.Info("run finished",
		"run_id", res.RunID,
		"state", res.State.String(),
		"files", res.Counts.Files,
		"valid", res.Counts.Valid,
		"results", res.Counts.Results,
		"degraded", res.Degraded,
		"exit_code", code,
	)
	return code
}

func newEvaluator(c *config.Config, logger *slog.Logger) (engine.Evaluator, error) {
	switch c.Engine.Kind {
	case config.EngineExec:
		if len(c.Rules.Set) > 0 {
			return nil, fmt.Errorf("--%s is only supported by the local engine", flags.FlagSet)
		}
		return engine.NewExecEngine(c.Engine.Command, c.Engine.Args, logger), nil
	default:
		assignments, err := config.ParseRuleOptionAssignments(c.Rules.Set)
		if err != nil {
			return nil, err
		}
		e, err := engine.NewLocalEngine(logger, c.Runtime.Verbose, assignments)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
}

func newTelemetrySink(c *config.Config, logger *slog.Logger) (pipeline.Sink, error) {
	t := c.Telemetry
	if t.DryRun {
		return &telemetry.DiscardSender{Logger: logger}, nil
	}
	switch t.Mode {
	case config.TelemetryIngestion:
		s, err := telemetry.NewIngestionSender(telemetry.IngestionConfig{
			Endpoint:     t.Endpoint,
			DCRImmutable: t.DCRImmutableID,
			Stream:       t.Stream,
			TenantID:     t.TenantID,
			ClientID:     t.ClientID,
			ClientSecret: t.ClientSecret,
		}, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		s, err := telemetry.NewDataCollectorSender(t.WorkspaceID, t.SharedKey, logger)
		if err != nil {
			return nil, err
		}
		s.Endpoint = t.Endpoint
		return s, nil
	}
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Input
	runCmd.Flags().StringVar(&cfg.Input.Path, flags.FlagInput, "", "Root directory searched recursively for report files")
	runCmd.Flags().StringVar(&cfg.Input.Pattern, flags.FlagPattern, cfg.Input.Pattern, "Report file name pattern (default: *.json)")
	runCmd.Flags().BoolVar(&cfg.Input.Lenient, flags.FlagLenient, false, "Accept JSON with comments and trailing commas")

	// Rules
	runCmd.Flags().StringVar(&cfg.Rules.AssertModule, flags.FlagAssertModule, cfg.Rules.AssertModule, "Module evaluated first in assertion mode (empty disables the pass)")
	runCmd.Flags().StringSliceVar(&cfg.Rules.Modules, flags.FlagModules, nil, "Rule modules to evaluate (repeatable; comma-separated accepted; default: all)")
	runCmd.Flags().StringSliceVar(&cfg.Rules.Set, flags.FlagSet, nil, "Per-rule options as ruleID.option=value (repeatable; comma-separated accepted)")
	runCmd.Flags().StringVar(&cfg.Rules.Format, flags.FlagFormat, cfg.Rules.Format, "Result format: detail|summary (default: detail)")
	runCmd.Flags().StringVar(&cfg.Rules.Locale, flags.FlagLocale, cfg.Rules.Locale, "BCP 47 locale of result messages (default: en-US)")

	// Engine
	runCmd.Flags().StringVar(&cfg.Engine.Kind, flags.FlagEngine, cfg.Engine.Kind, "Rule engine: local|exec (default: local)")
	runCmd.Flags().StringVar(&cfg.Engine.Command, flags.FlagEngineCommand, "", "External engine command (with --engine exec)")
	runCmd.Flags().StringArrayVar(&cfg.Engine.Args, flags.FlagEngineArgs, nil, "External engine argument (repeatable)")

	// Telemetry
	runCmd.Flags().StringVar(&cfg.Telemetry.Mode, flags.FlagTelemetryMode, cfg.Telemetry.Mode, "Telemetry backend: data-collector|ingestion (default: data-collector)")
	runCmd.Flags().StringVar(&cfg.Telemetry.WorkspaceID, flags.FlagWorkspaceID, "", "Log Analytics workspace ID (or "+config.EnvWorkspaceID+")")
	runCmd.Flags().StringVar(&cfg.Telemetry.SharedKey, flags.FlagSharedKey, "", "Log Analytics shared key (or "+config.EnvSharedKey+")")
	runCmd.Flags().StringVar(&cfg.Telemetry.LogType, flags.FlagLogType, cfg.Telemetry.LogType, "Custom log type (default: "+telemetry.DefaultLogType+")")
	runCmd.Flags().StringVar(&cfg.Telemetry.Endpoint, flags.FlagEndpoint, "", "Data collection endpoint (ingestion) or Data Collector URL override")
	runCmd.Flags().StringVar(&cfg.Telemetry.TenantID, flags.FlagTenantID, "", "Entra tenant ID (ingestion)")
	runCmd.Flags().StringVar(&cfg.Telemetry.ClientID, flags.FlagClientID, "", "Application client ID (ingestion)")
	runCmd.Flags().StringVar(&cfg.Telemetry.ClientSecret, flags.FlagClientSecret, "", "Application client secret (ingestion; or "+config.EnvClientSecret+")")
	runCmd.Flags().StringVar(&cfg.Telemetry.DCRImmutableID, flags.FlagDCRImmutableID, "", "Data collection rule immutable ID (ingestion)")
	runCmd.Flags().StringVar(&cfg.Telemetry.Stream, flags.FlagStreamName, "", "Data collection rule stream name (ingestion)")
	runCmd.Flags().BoolVar(&cfg.Telemetry.DryRun, flags.FlagDryRun, false, "Evaluate reports without sending results")

	// Output
	runCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson (default: text)")
	runCmd.Flags().StringSliceVar(&cfg.Output.ConsoleFilterStatus, flags.FlagConsoleFilterStatus, nil, "Filter console output by status (PASS, FAIL, ERROR, SKIPPED). Comma-separated.")
	runCmd.Flags().StringVar(&cfg.Output.Report, flags.FlagReport, "", "Write a Markdown report to this path")
	runCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured output to this path")
	runCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	runCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	runCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output (use with --emit/--out/--report)")

	// Runtime
	runCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent report validation workers (default: 4)")
	runCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 30m)")
	runCmd.Flags().StringVar(&cfg.Runtime.ErrorMode, flags.FlagErrorMode, cfg.Runtime.ErrorMode, "Invalid report handling: continue|stop (default: continue)")
	runCmd.Flags().BoolVar(&cfg.Runtime.StrictDegraded, flags.FlagStrictDegraded, false, "Exit 2 when only partial results were sent")
}
