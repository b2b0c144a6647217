package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type DefaultBranchProtectedRule struct{}

func (r *DefaultBranchProtectedRule) ID() string {
	return "default-branch-protected"
}

func (r *DefaultBranchProtectedRule) Title() string {
	return "Default Branch Is Protected"
}

func (r *DefaultBranchProtectedRule) Description() string {
	return "Verifies that the repository's default branch has classic branch protection configured.\n\n" +
		"The rule fails when the exported protection section is null. When the exporter could not read " +
		"protection settings (for example a 403 on a plan without protection support) the rule is skipped."
}

func (r *DefaultBranchProtectedRule) Module() string {
	return rules.ModuleBranchProtection
}

func (r *DefaultBranchProtectedRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return branchProtectionDeps(), nil
}

func (r *DefaultBranchProtectedRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	branch, errMsg := defaultBranchName(repo, dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	protection, errMsg := classicProtection(dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	var res rules.Result
	if protection == nil {
		res = rules.FailResult(repo, r.ID(), "Default branch is not protected")
	} else {
		res = rules.PassResult(repo, r.ID())
	}
	res.Evidence = branchEvidence(branch)
	return res, nil
}

func init() {
	rules.Register(&DefaultBranchProtectedRule{})
}
