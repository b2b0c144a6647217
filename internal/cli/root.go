package cli

import (
	"fmt"
	"os"

	"auditrelay/internal/config"
	"auditrelay/internal/flags"

	"github.com/spf13/cobra"
)

var (
	buildVersion = "dev"
	buildCommit  = "unknown"
	buildDate    = "unknown"
)

var (
	cfg        = config.New()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "auditrelay",
	Short: "Evaluate exported audit reports and forward the results to log analytics",
	Long: `auditrelay evaluates exported repository audit reports against a rule set
and forwards the rule-evaluation records to a log-analytics workspace.

auditrelay is read-only: it reads reports (or, with "export", repository
settings via the GitHub API) and never mutates state.

Examples:
	# Show available commands and global flags
	auditrelay --help

	# Export reports for an organization
	auditrelay export --org my-org --out-dir reports

	# Evaluate the reports and send the results
	auditrelay run --input reports --workspace-id <id> --shared-key <key>

	# List rules
	auditrelay rules list

	# Print build info
	auditrelay version

Configuration:
	Every flag can also be set in a YAML file passed with --config. Flags set
	on the command line override values from the file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfigFile(cmd, configPath, cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, flags.FlagConfig, "", "YAML config file (flags override file values)")
	rootCmd.PersistentFlags().BoolVar(&cfg.Runtime.Verbose, flags.FlagVerbose, false, "Enable verbose logging (debug records, every GitHub API call, full error details)")
	rootCmd.PersistentFlags().StringVar(&cfg.Runtime.LogFormat, flags.FlagLogFormat, cfg.Runtime.LogFormat, "Log format on stderr: text|json (default: text)")
}

func SetBuildInfo(version, commit, date string) {
	if version != "" {
		buildVersion = version
	}
	if commit != "" {
		buildCommit = commit
	}
	if date != "" {
		buildDate = date
	}

	rootCmd.Version = fmt.Sprintf("%s (%s) %s", buildVersion, buildCommit, buildDate)
	rootCmd.SetVersionTemplate("{{.Version}}\n")
}

func BuildInfo() (version, commit, date string) {
	return buildVersion, buildCommit, buildDate
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
