package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

// SecretScanningDisabledRule flags repositories where secret scanning is
// reported as available but disabled.
type SecretScanningDisabledRule struct{}

func init() {
	rules.Register(&SecretScanningDisabledRule{})
}

func (r *SecretScanningDisabledRule) ID() string {
	return "secret-scanning-disabled"
}

func (r *SecretScanningDisabledRule) Title() string {
	return "Secret Scanning Available But Disabled"
}

func (r *SecretScanningDisabledRule) Description() string {
	return "Verifies that GitHub Secret Scanning is enabled when it is available for the repository.\n\n" +
		"Location: Settings > Security > Advanced Security.\n" +
		"Only fails when the exported metadata reports the feature as disabled; " +
		"repositories without security and analysis settings are skipped."
}

func (r *SecretScanningDisabledRule) Module() string {
	return rules.ModuleRepository
}

func (r *SecretScanningDisabledRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return []data.DependencyKey{data.DepRepoMetadata}, nil
}

func (r *SecretScanningDisabledRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	target := metadataOrRepo(repo, dc)
	if target == nil {
		return rules.ErrorResult(repo, r.ID(), "Repository metadata not available"), nil
	}

	sa := target.GetSecurityAndAnalysis()
	if sa == nil {
		return rules.SkippedResult(repo, r.ID(), "Security and analysis settings not available"), nil
	}
	if sa.SecretScanning == nil {
		return rules.SkippedResult(repo, r.ID(), "Secret scanning settings not available"), nil
	}

	switch status := sa.SecretScanning.GetStatus(); status {
	case "enabled":
		return rules.PassResultWithMessage(repo, r.ID(), "Secret scanning is enabled"), nil
	case "disabled":
		res := rules.FailResult(repo, r.ID(), "Secret scanning is available but disabled")
		res.Evidence = map[string]string{
			"availability": "true",
			"status":       "disabled",
		}
		return res, nil
	default:
		return rules.SkippedResult(repo, r.ID(), "Unknown secret scanning status: "+status), nil
	}
}
