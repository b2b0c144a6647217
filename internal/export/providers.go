package export

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"auditrelay/internal/data"
	"auditrelay/internal/data/models"

	"github.com/google/go-github/v81/github"
)

// DefaultProviders returns a provider for every known report section.
func DefaultProviders() []Provider {
	return []Provider{
		metadataProvider{},
		classicProtectionProvider{},
		codeownersProvider{},
	}
}

type metadataProvider struct{}

func (metadataProvider) Key() data.DependencyKey { return data.DepRepoMetadata }

func (metadataProvider) Fetch(ctx context.Context, f *Fetcher, repo *github.Repository) (any, error) {
	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	result, resp, err := f.Client().Client.Repositories.Get(ctx, repo.GetOwner().GetLogin(), repo.GetName())
	f.Budget().Observe(resp)
	if err != nil {
		return nil, err
	}
	return result, nil
}

type classicProtectionProvider struct{}

func (classicProtectionProvider) Key() data.DependencyKey {
	return data.DepRepoDefaultBranchClassicProtection
}

// Fetch returns nil for an unprotected branch.
func (classicProtectionProvider) Fetch(ctx context.Context, f *Fetcher, repo *github.Repository) (any, error) {
	branch, err := defaultBranch(ctx, f, repo)
	if err != nil {
		return nil, err
	}
	if err := f.Budget().Acquire(ctx, 1); err != nil {
		return nil, err
	}

	result, resp, err := f.Client().Client.Repositories.GetBranchProtection(ctx, repo.GetOwner().GetLogin(), repo.GetName(), branch)
	f.Budget().Observe(resp)
	if err != nil {
		if errors.Is(err, github.ErrBranchNotProtected) || isNotFound(resp) {
			return nil, nil
		}
		return nil, err
	}
	return result, nil
}

type codeownersProvider struct{}

func (codeownersProvider) Key() data.DependencyKey { return data.DepRepoDefaultBranchCodeowners }

func (codeownersProvider) Fetch(ctx context.Context, f *Fetcher, repo *github.Repository) (any, error) {
	branch, err := defaultBranch(ctx, f, repo)
	if err != nil {
		return nil, err
	}

	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	exists := func(path string) (bool, error) {
		if err := f.Budget().Acquire(ctx, 1); err != nil {
			return false, err
		}
		_, _, resp, err := f.Client().Client.Repositories.GetContents(ctx, owner, name, path, &github.RepositoryContentGetOptions{Ref: branch})
		f.Budget().Observe(resp)
		if err != nil {
			if isNotFound(resp) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	}

	presence := &models.CodeownersPresence{}
	if presence.Root, err = exists("CODEOWNERS"); err != nil {
		return nil, err
	}
	if presence.GitHub, err = exists(".github/CODEOWNERS"); err != nil {
		return nil, err
	}
	return presence, nil
}

// defaultBranch prefers the branch on the discovered repo object and falls
// back to the (cached) metadata section.
func defaultBranch(ctx context.Context, f *Fetcher, repo *github.Repository) (string, error) {
	if branch := repo.GetDefaultBranch(); branch != "" {
		return branch, nil
	}
	val, err := f.Fetch(ctx, repo, data.DepRepoMetadata)
	if err != nil {
		return "", fmt.Errorf("failed to resolve default branch: %w", err)
	}
	r, ok := val.(*github.Repository)
	if !ok {
		return "", fmt.Errorf("failed to resolve default branch: unexpected type %T for %s", val, data.DepRepoMetadata)
	}
	if r.GetDefaultBranch() == "" {
		return "", fmt.Errorf("failed to resolve default branch: empty default branch")
	}
	return r.GetDefaultBranch(), nil
}

func isNotFound(resp *github.Response) bool {
	return resp != nil && resp.StatusCode == http.StatusNotFound
}
