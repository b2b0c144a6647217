package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type DefaultBranchEnforceAdminsRule struct{}

func (r *DefaultBranchEnforceAdminsRule) ID() string {
	return "default-branch-enforce-admins"
}

func (r *DefaultBranchEnforceAdminsRule) Title() string {
	return "Enforce Admins on Default Branch"
}

func (r *DefaultBranchEnforceAdminsRule) Description() string {
	return "Verifies that 'Enforce admins' is enabled on the default branch protection, so protection " +
		"settings also apply to repository administrators. Fails when the branch has no protection."
}

func (r *DefaultBranchEnforceAdminsRule) Module() string {
	return rules.ModuleBranchProtection
}

func (r *DefaultBranchEnforceAdminsRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return branchProtectionDeps(), nil
}

func (r *DefaultBranchEnforceAdminsRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
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
		res = rules.FailResult(repo, r.ID(), "Default branch is not protected, so admins are not restricted")
	case protection.EnforceAdmins == nil || !protection.EnforceAdmins.Enabled:
		res = rules.FailResult(repo, r.ID(), "Enforce admins is disabled on the default branch")
	default:
		res = rules.PassResultWithMessage(repo, r.ID(), "Enforce admins is enabled on the default branch")
	}
	res.Evidence = branchEvidence(branch)
	return res, nil
}

func init() {
	rules.Register(&DefaultBranchEnforceAdminsRule{})
}
