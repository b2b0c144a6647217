package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"auditrelay/internal/config"
	"auditrelay/internal/export"
	"auditrelay/internal/flags"
	gh "auditrelay/internal/github"
	"auditrelay/internal/logging"
	"auditrelay/internal/output"
	"auditrelay/internal/pipeline"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export repository audit reports from GitHub",
	Long: `Export one audit report per GitHub repository.

Reports are written to <out-dir>/<owner>/<repo>.json and are the input of
"auditrelay run". Sections that cannot be fetched (missing permissions,
unprotected branches) are recorded inside the report instead of failing the
export.

Authentication:
	auditrelay uses a GitHub access token. Sources (in order):
	1) GITHUB_TOKEN environment variable
	2) GH_TOKEN environment variable
	3) GitHub CLI (gh) authentication via gh auth token (if gh is installed and logged in)

	Token guidance (brief):
	- PAT (classic): typically needs repo (to read private repos) and read:org
	  (to enumerate org repositories).
	- Fine-grained PAT: grant access to the target repositories with
	  Metadata: Read, Contents: Read and Administration: Read.

Exit codes:
	0 = every report was written
	1 = one or more reports could not be written
	3 = fatal error (export did not run)

Examples:
	export GITHUB_TOKEN="<your_token>"
	auditrelay export --org my-org --out-dir reports

	auditrelay export --user https://github.com/octocat --include 'dot*'
	auditrelay export --repos my-org/api,my-org/web --emit ndjson
`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 && cmd.Flags().NFlag() == 0 && configPath == "" {
			_ = cmd.Help()
			return
		}
		applyImplicitDefaults(cmd, cfg)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		code := runExportCommand(ctx, cfg, cmd.OutOrStdout(), cmd.ErrOrStderr())
		stop()
		os.Exit(code)
	},
}

func applyImplicitDefaults(cmd *cobra.Command, c *config.Config) {
	// When exporting a user account, include forks by default. Many GitHub
	// users have a significant portion of their repos as forks, and excluding
	// them by default is surprising.
	if c.Export.User != "" && cmd != nil {
		if !cmd.Flags().Changed(flags.FlagForks) {
			c.Export.Forks = "include"
		}
	}
}

func runExportCommand(ctx context.Context, c *config.Config, stdout, stderr io.Writer) int {
	if err := c.ValidateExport(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitSetup
	}
	logger, err := logging.New(stderr, c.Runtime.LogFormat, c.Runtime.Verbose)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitSetup
	}

	token, source, err := gh.ResolveAuthToken(ctx, "")
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to resolve GitHub auth token: %v\n", err)
		return pipeline.ExitSetup
	}
	if strings.TrimSpace(token) == "" {
		fmt.Fprintln(stderr, "Error: GitHub auth token is required (set GITHUB_TOKEN or run 'gh auth login')")
		return pipeline.ExitSetup
	}
	logger.Debug("resolved GitHub token", "source", string(source))

	opts := []gh.Option{gh.WithLogger(logger)}
	if c.Export.GitHubURL != "" {
		opts = append(opts, gh.WithBaseURL(c.Export.GitHubURL))
	}
	client, err := gh.NewClient(ctx, token, opts...)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to create GitHub client: %v\n", err)
		return pipeline.ExitSetup
	}
	return exportRepos(ctx, c, client, logger, stdout, stderr)
}

func exportRepos(ctx context.Context, c *config.Config, client *gh.Client, logger *slog.Logger, stdout, stderr io.Writer) int {
	ctx, cancel := context.WithTimeout(ctx, c.Runtime.Timeout)
	defer cancel()

	outMgr, err := newOutputManager(c, stdout, false)
	if err != nil {
		fmt.Fprintf(stderr, "Error creating output sinks: %v\n", err)
		return pipeline.ExitSetup
	}
	defer outMgr.Close()

	console := !c.Output.NoConsole && c.Output.ConsoleFormat == "text"
	explicitReposOnly := c.Export.Org == "" && c.Export.User == "" && len(c.Export.Repos) > 0
	if console {
		if explicitReposOnly {
			pterm.Info.WithWriter(stderr).Println("Resolving repositories...")
		} else {
			pterm.Info.WithWriter(stderr).Println("Discovering repositories...")
		}
	}

	refs, err := export.ResolveRepos(ctx, client, c.Export)
	if err != nil {
		fmt.Fprintf(stderr, "Error resolving repositories: %v\n", err)
		return pipeline.ExitFailed
	}
	// Explicitly targeted repos are exported as given.
	if !explicitReposOnly {
		refs = export.FilterRepos(refs, c.Export)
	}
	if console {
		pterm.Info.WithWriter(stderr).Printfln("Found %d repositories.", len(refs))
	}

	exporter := &export.Exporter{
		Fetcher:     export.NewFetcher(client, export.NewRequestBudget()),
		OutDir:      c.Export.OutDir,
		Concurrency: c.Runtime.Concurrency,
		Logger:      logger,
		OnExported: func(ref export.RepositoryRef, path string) {
			if err := output.ReportExported(outMgr, ref.FullName(), path); err != nil {
				logger.Warn("output write failed", "type", output.EventReportExported, "error", err)
			}
			if console {
				pterm.Success.WithWriter(stderr).Printfln("%s -> %s", ref.FullName(), path)
			}
		},
	}
	summary, err := exporter.Export(ctx, refs)
	logger.Info("export finished",
		"repos", summary.Repos,
		"written", summary.Written,
		"section_errors", summary.SectionErrors,
		"failed", summary.Failed,
	)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return pipeline.ExitFailed
	}
	if console && summary.SectionErrors > 0 {
		pterm.Warning.WithWriter(stderr).Printfln("%d report sections could not be fetched (recorded in the reports)", summary.SectionErrors)
	}
	return pipeline.ExitOK
}

func init() {
	rootCmd.AddCommand(exportCmd)

	// Targeting
	exportCmd.Flags().StringVar(&cfg.Export.Org, flags.FlagOrg, "", "GitHub organization account to export (name or URL)")
	exportCmd.Flags().StringVar(&cfg.Export.User, flags.FlagUser, "", "GitHub user account to export (name or URL)")
	exportCmd.Flags().StringSliceVar(&cfg.Export.Repos, flags.FlagRepos, nil, "Repositories to export as OWNER/REPO (repeatable; comma-separated accepted)")
	exportCmd.Flags().StringSliceVar(&cfg.Export.Include, flags.FlagInclude, nil, "Include pattern(s) (repeatable; comma-separated accepted). Go path.Match style; if pattern contains '/', matches OWNER/REPO, else matches repo name")
	exportCmd.Flags().StringSliceVar(&cfg.Export.Exclude, flags.FlagExclude, nil, "Exclude pattern(s) (repeatable; comma-separated accepted). Same matching rules as --include")
	exportCmd.Flags().StringSliceVar(&cfg.Export.Topic, flags.FlagTopic, nil, "Require at least one topic match (repeatable; comma-separated accepted; exact match)")
	exportCmd.Flags().StringVar(&cfg.Export.Visibility, flags.FlagVisibility, cfg.Export.Visibility, "Visibility filter: public|private|internal|all (default: all)")
	exportCmd.Flags().StringVar(&cfg.Export.Archived, flags.FlagArchived, cfg.Export.Archived, "Archived repos policy: include|exclude|only (default: exclude)")
	exportCmd.Flags().StringVar(&cfg.Export.Forks, flags.FlagForks, cfg.Export.Forks, "Forks policy: include|exclude|only (default: exclude). If --user is set and this flag is omitted, forks default to include")
	exportCmd.Flags().IntVar(&cfg.Export.MaxRepos, flags.FlagMaxRepos, 0, "Maximum number of repositories to export (0 = unlimited)")
	exportCmd.Flags().StringVar(&cfg.Export.OutDir, flags.FlagOutDir, cfg.Export.OutDir, "Directory receiving <owner>/<repo>.json reports (default: reports)")
	exportCmd.Flags().StringVar(&cfg.Export.GitHubURL, flags.FlagGitHubURL, "", "GitHub Enterprise Server URL (default: github.com)")

	// Output
	exportCmd.Flags().StringVar(&cfg.Output.ConsoleFormat, flags.FlagConsoleFormat, cfg.Output.ConsoleFormat, "Console output format: text|json|ndjson (default: text)")
	exportCmd.Flags().StringVar(&cfg.Output.Out, flags.FlagOut, "", "Write structured export events to this path")
	exportCmd.Flags().StringVar(&cfg.Output.OutFormat, flags.FlagOutFormat, "", "Structured output format for --out: json|ndjson (default: inferred from file extension)")
	exportCmd.Flags().StringSliceVar(&cfg.Output.Emit, flags.FlagEmit, nil, "Emit additional structured stream to stdout: json|ndjson (repeatable; comma-separated accepted)")
	exportCmd.Flags().BoolVar(&cfg.Output.NoConsole, flags.FlagNoConsole, false, "Suppress console output")

	// Runtime
	exportCmd.Flags().IntVar(&cfg.Runtime.Concurrency, flags.FlagConcurrency, cfg.Runtime.Concurrency, "Concurrent repository exports (default: 4)")
	exportCmd.Flags().DurationVar(&cfg.Runtime.Timeout, flags.FlagTimeout, cfg.Runtime.Timeout, "Global timeout (default: 30m)")
}
