package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type DefaultBranchNoForcePushRule struct{}

func (r *DefaultBranchNoForcePushRule) ID() string {
	return "default-branch-no-force-push"
}

func (r *DefaultBranchNoForcePushRule) Title() string {
	return "Default Branch Blocks Force Pushes"
}

func (r *DefaultBranchNoForcePushRule) Description() string {
	return "Verifies that the repository's default branch blocks force pushes.\n\n" +
		"Force pushes can overwrite commit history. Classic branch protection blocks force pushes " +
		"unless AllowForcePushes is explicitly enabled, so this rule passes when protection exists " +
		"and force pushes are not allowed."
}

func (r *DefaultBranchNoForcePushRule) Module() string {
	return rules.ModuleBranchProtection
}

func (r *DefaultBranchNoForcePushRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return branchProtectionDeps(), nil
}

func (r *DefaultBranchNoForcePushRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	branch, errMsg := defaultBranchName(repo, dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	protection, errMsg := classicProtection(dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	var res rules.Result
	switch {
	case protection == nil:
		res = rules.FailResult(repo, r.ID(), "Default branch does not block force pushes")
	case protection.AllowForcePushes != nil && protection.AllowForcePushes.Enabled:
		res = rules.FailResult(repo, r.ID(), "Default branch protection allows force pushes")
	default:
		res = rules.PassResult(repo, r.ID())
	}
	res.Evidence = branchEvidence(branch)
	return res, nil
}

func init() {
	rules.Register(&DefaultBranchNoForcePushRule{})
}
