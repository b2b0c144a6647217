package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type DefaultBranchPRRequiredRule struct{}

func (r *DefaultBranchPRRequiredRule) ID() string {
	return "default-branch-pr-required"
}

func (r *DefaultBranchPRRequiredRule) Title() string {
	return "Default Branch Requires Pull Requests"
}

func (r *DefaultBranchPRRequiredRule) Description() string {
	return "Verifies that the repository's default branch requires changes to be merged via pull request.\n\n" +
		"Passes when classic branch protection has required pull request reviews configured. " +
		"Bypass actors may still exist; this rule only checks whether a PR requirement is present."
}

func (r *DefaultBranchPRRequiredRule) Module() string {
	return rules.ModuleBranchProtection
}

func (r *DefaultBranchPRRequiredRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return branchProtectionDeps(), nil
}

func (r *DefaultBranchPRRequiredRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	branch, errMsg := defaultBranchName(repo, dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	protection, errMsg := classicProtection(dc)
	if errMsg != "" {
		return rules.ErrorResult(repo, r.ID(), errMsg), nil
	}

	var res rules.Result
	if protection != nil && protection.RequiredPullRequestReviews != nil {
		res = rules.PassResult(repo, r.ID())
		res.Metadata = map[string]any{
			"required_approving_review_count": protection.RequiredPullRequestReviews.RequiredApprovingReviewCount,
		}
	} else {
		res = rules.FailResult(repo, r.ID(), "Default branch does not require pull requests to merge")
	}
	res.Evidence = branchEvidence(branch)
	return res, nil
}

func init() {
	rules.Register(&DefaultBranchPRRequiredRule{})
}
