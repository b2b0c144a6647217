package checks

import (
	"context"

	"auditrelay/internal/data"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

// RepoVisibilityPublicRule flags public repositories that are not allow-listed.
type RepoVisibilityPublicRule struct{}

func init() {
	rules.Register(&RepoVisibilityPublicRule{})
}

func (r *RepoVisibilityPublicRule) ID() string {
	return "repo-visibility-public"
}

func (r *RepoVisibilityPublicRule) Title() string {
	return "Unexpected Public Repository"
}

func (r *RepoVisibilityPublicRule) Description() string {
	return "Verifies that repositories are not publicly visible unless explicitly allow-listed by policy."
}

func (r *RepoVisibilityPublicRule) Module() string {
	return rules.ModuleRepository
}

func (r *RepoVisibilityPublicRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return []data.DependencyKey{data.DepRepoMetadata}, nil
}

func (r *RepoVisibilityPublicRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	target := metadataOrRepo(repo, dc)
	if target == nil {
		return rules.ErrorResult(repo, r.ID(), "Repository metadata not available"), nil
	}

	visibility := target.GetVisibility()
	if visibility == "" && target.Private != nil {
		visibility = "private"
		if !target.GetPrivate() {
			visibility = "public"
		}
	}

	if visibility != "public" {
		res := rules.PassResultWithMessage(repo, r.ID(), "Repository is not public")
		if visibility != "" {
			res.Evidence = map[string]string{"visibility": visibility}
		}
		return res, nil
	}

	res := rules.FailResult(repo, r.ID(), "Repository is public")
	res.Evidence = map[string]string{"visibility": visibility}
	return res, nil
}
