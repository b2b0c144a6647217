package checks

import (
	"auditrelay/internal/data"

	"github.com/google/go-github/v81/github"
)

// metadataOrRepo returns the metadata section when present, else repo.
func metadataOrRepo(repo *github.Repository, dc data.DataContext) *github.Repository {
	if val, ok := dc.Get(data.DepRepoMetadata); ok && val != nil {
		if meta, ok := val.(*github.Repository); ok {
			return meta
		}
	}
	return repo
}

// defaultBranchName resolves the default branch from repo, falling back to
// the metadata section. The returned string is an error message when non-empty.
func defaultBranchName(repo *github.Repository, dc data.DataContext) (string, string) {
	if b := repo.GetDefaultBranch(); b != "" {
		return b, ""
	}
	val, ok := dc.Get(data.DepRepoMetadata)
	if !ok {
		return "", "Dependency missing"
	}
	meta, ok := val.(*github.Repository)
	if !ok {
		return "", "Invalid dependency type"
	}
	if meta.GetDefaultBranch() == "" {
		return "", "Default branch is unknown"
	}
	return meta.GetDefaultBranch(), ""
}

// classicProtection returns the default branch protection, nil when the
// branch is unprotected. The returned string is an error message when non-empty.
func classicProtection(dc data.DataContext) (*github.Protection, string) {
	val, ok := dc.Get(data.DepRepoDefaultBranchClassicProtection)
	if !ok {
		return nil, "Dependency missing"
	}
	if val == nil {
		return nil, ""
	}
	protection, ok := val.(*github.Protection)
	if !ok {
		return nil, "Invalid dependency type"
	}
	return protection, ""
}

func branchEvidence(branch string) map[string]string {
	return map[string]string{"default_branch": branch}
}

func branchProtectionDeps() []data.DependencyKey {
	return []data.DependencyKey{
		data.DepRepoMetadata,
		data.DepRepoDefaultBranchClassicProtection,
	}
}
