// Package export writes one report document per GitHub repository for the
// local rule engine to evaluate.
package export

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"auditrelay/internal/config"
	gh "auditrelay/internal/github"

	"github.com/google/go-github/v81/github"
)

const defaultDiscoveryRepoLimit = 1000

type RepositoryRef struct {
	Owner string
	Name  string
	ID    int64
	Repo  *github.Repository
}

// FullName returns OWNER/REPO.
func (r RepositoryRef) FullName() string {
	if r.Repo != nil && r.Repo.GetFullName() != "" {
		return r.Repo.GetFullName()
	}
	return r.Owner + "/" + r.Name
}

func refFromRepo(repo *github.Repository) RepositoryRef {
	return RepositoryRef{
		Owner: repo.GetOwner().GetLogin(),
		Name:  repo.GetName(),
		ID:    repo.GetID(),
		Repo:  repo,
	}
}

// ResolveRepos discovers candidate repositories for cfg. Org and user scope
// list accounts and use --repos as an include filter; otherwise every
// --repos entry is fetched directly.
func ResolveRepos(ctx context.Context, client *gh.Client, cfg config.Export) ([]RepositoryRef, error) {
	limit := computeRepoLimit(cfg)

	switch {
	case cfg.Org != "":
		refs, err := listRepoRefs(ctx, limit, func(page int) ([]*github.Repository, *github.Response, error) {
			return client.Client.Repositories.ListByOrg(ctx, cfg.Org, &github.RepositoryListByOrgOptions{
				ListOptions: github.ListOptions{PerPage: 100, Page: page},
			})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list org repos: %w", err)
		}
		refs, err = filterRefsByRepoSelectors(refs, cfg.Repos)
		if err != nil {
			return nil, err
		}
		return dedupeRefs(refs), nil

	case cfg.User != "":
		refs, err := listUserRepoRefs(ctx, client, cfg.User, limit)
		if err != nil {
			return nil, err
		}
		refs, err = filterRefsByRepoSelectors(refs, cfg.Repos)
		if err != nil {
			return nil, err
		}
		return dedupeRefs(refs), nil

	case len(cfg.Repos) > 0:
		refs, err := resolveExplicitRepoRefs(ctx, client, cfg.Repos)
		if err != nil {
			return nil, err
		}
		return dedupeRefs(refs), nil
	}
	return nil, nil
}

func computeRepoLimit(cfg config.Export) int {
	if cfg.MaxRepos > 0 {
		return cfg.MaxRepos
	}
	return defaultDiscoveryRepoLimit
}

type listPage func(page int) ([]*github.Repository, *github.Response, error)

func listRepoRefs(ctx context.Context, limit int, list listPage) ([]RepositoryRef, error) {
	refs := make([]RepositoryRef, 0, min(limit, 100))
	page := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		repos, resp, err := list(page)
		if err != nil {
			return nil, err
		}
		for _, repo := range repos {
			if len(refs) >= limit {
				return refs, nil
			}
			refs = append(refs, refFromRepo(repo))
		}
		if len(refs) >= limit || resp == nil || resp.NextPage == 0 {
			return refs, nil
		}
		page = resp.NextPage
	}
}

func listUserRepoRefs(ctx context.Context, client *gh.Client, user string, limit int) ([]RepositoryRef, error) {
	// The authenticated endpoint includes private repos of the token owner.
	if me, _, err := client.Client.Users.Get(ctx, ""); err == nil && strings.EqualFold(me.GetLogin(), user) {
		refs, err := listRepoRefs(ctx, limit, func(page int) ([]*github.Repository, *github.Response, error) {
			return client.Client.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{
				ListOptions: github.ListOptions{PerPage: 100, Page: page},
				Visibility:  "all",
				Affiliation: "owner",
			})
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list authenticated user repos: %w", err)
		}
		return refs, nil
	}

	refs, err := listRepoRefs(ctx, limit, func(page int) ([]*github.Repository, *github.Response, error) {
		return client.Client.Repositories.ListByUser(ctx, user, &github.RepositoryListByUserOptions{
			ListOptions: github.ListOptions{PerPage: 100, Page: page},
			Type:        "all",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list user repos: %w", err)
	}
	return refs, nil
}

func filterRefsByRepoSelectors(refs []RepositoryRef, selectors []string) ([]RepositoryRef, error) {
	var patterns []string
	for _, sel := range selectors {
		sel = strings.TrimSpace(sel)
		if sel == "" {
			continue
		}
		if !hasGlobChars(sel) {
			norm, err := normalizeRepoSelector(sel)
			if err != nil {
				return nil, err
			}
			sel = norm
		}
		patterns = append(patterns, sel)
	}
	if len(patterns) == 0 {
		return refs, nil
	}

	filtered := make([]RepositoryRef, 0, len(refs))
	for _, r := range refs {
		if matchesAnyPattern(patterns, r.FullName(), r.Name) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func resolveExplicitRepoRefs(ctx context.Context, client *gh.Client, selectors []string) ([]RepositoryRef, error) {
	refs := make([]RepositoryRef, 0, len(selectors))
	for _, raw := range selectors {
		sel, err := normalizeRepoSelector(raw)
		if err != nil {
			return nil, err
		}
		if sel == "" {
			continue
		}
		if hasGlobChars(sel) {
			return nil, fmt.Errorf("repo selector %q contains glob characters; use --org or --user to enumerate candidates", sel)
		}
		owner, name, err := splitOwnerRepo(sel)
		if err != nil {
			return nil, err
		}
		repo, _, err := client.Client.Repositories.Get(ctx, owner, name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve repo %s: %w", sel, err)
		}
		refs = append(refs, refFromRepo(repo))
	}
	return refs, nil
}

func splitOwnerRepo(sel string) (owner string, name string, err error) {
	parts := strings.Split(sel, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo selector %q; expected owner/name", sel)
	}
	return parts[0], parts[1], nil
}

func hasGlobChars(s string) bool {
	return strings.ContainsAny(s, "*?[")
}

// normalizeRepoSelector accepts OWNER/REPO or a GitHub URL:
//   - https://github.com/owner/repo(.git)(/tree/main)
//   - github.com/owner/repo
//   - git@github.com:owner/repo.git
func normalizeRepoSelector(sel string) (string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		return sel, nil
	}
	invalid := fmt.Errorf("invalid repo selector %q; expected owner/name", sel)

	if strings.HasPrefix(sel, "github.com/") || strings.HasPrefix(sel, "www.github.com/") {
		sel = "https://" + sel
	}

	var path string
	switch {
	case strings.HasPrefix(sel, "git@github.com:"):
		path = strings.TrimPrefix(sel, "git@github.com:")
	case strings.HasPrefix(sel, "http://"), strings.HasPrefix(sel, "https://"), strings.HasPrefix(sel, "git://"):
		u, err := url.Parse(sel)
		if err != nil {
			return "", invalid
		}
		host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		if host != "github.com" {
			return "", invalid
		}
		path = u.Path
	default:
		return sel, nil
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 {
		return "", invalid
	}
	owner := parts[0]
	repo := strings.TrimSuffix(parts[1], ".git")
	if owner == "" || repo == "" {
		return "", invalid
	}
	return owner + "/" + repo, nil
}

func dedupeRefs(in []RepositoryRef) []RepositoryRef {
	if len(in) <= 1 {
		return in
	}

	seen := make(map[string]struct{}, len(in))
	out := make([]RepositoryRef, 0, len(in))
	for _, r := range in {
		key := ""
		switch {
		case r.ID != 0:
			key = "id:" + strconv.FormatInt(r.ID, 10)
		case r.Repo != nil || (r.Owner != "" && r.Name != ""):
			key = "full:" + strings.ToLower(r.FullName())
		}
		if key == "" {
			out = append(out, r)
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
