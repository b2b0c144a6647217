package export

import (
	"path"
	"strings"

	"auditrelay/internal/config"
)

// FilterRepos applies the visibility, archived, forks, topic and name
// filters of cfg, then truncates to MaxRepos.
func FilterRepos(repos []RepositoryRef, cfg config.Export) []RepositoryRef {
	visibility := orDefault(cfg.Visibility, "all")
	archivedPolicy := orDefault(cfg.Archived, "exclude")
	forksPolicy := orDefault(cfg.Forks, "exclude")

	var filtered []RepositoryRef
	for _, r := range repos {
		if r.Repo == nil {
			continue
		}
		if visibility != "all" && repoVisibility(r) != visibility {
			continue
		}
		if !policyAllows(archivedPolicy, r.Repo.GetArchived()) {
			continue
		}
		if !policyAllows(forksPolicy, r.Repo.GetFork()) {
			continue
		}
		if len(cfg.Topic) > 0 && !matchesAnyTopic(cfg.Topic, r.Repo.Topics) {
			continue
		}

		fullName, repoName := r.FullName(), r.Repo.GetName()
		if len(cfg.Include) > 0 && !matchesAnyPattern(cfg.Include, fullName, repoName) {
			continue
		}
		if len(cfg.Exclude) > 0 && matchesAnyPattern(cfg.Exclude, fullName, repoName) {
			continue
		}

		filtered = append(filtered, r)
	}

	if cfg.MaxRepos > 0 && len(filtered) > cfg.MaxRepos {
		filtered = filtered[:cfg.MaxRepos]
	}
	return filtered
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v == "" {
		return def
	}
	return v
}

// policyAllows evaluates an include|exclude|only policy against a flag.
func policyAllows(policy string, flag bool) bool {
	switch policy {
	case "exclude":
		return !flag
	case "only":
		return flag
	default:
		return true
	}
}

func repoVisibility(r RepositoryRef) string {
	if v := strings.TrimSpace(r.Repo.GetVisibility()); v != "" {
		return v
	}
	if r.Repo.GetPrivate() {
		return "private"
	}
	return "public"
}

func matchesAnyTopic(requiredTopics, repoTopics []string) bool {
	for _, required := range requiredTopics {
		required = strings.TrimSpace(required)
		if required == "" {
			continue
		}
		for _, rt := range repoTopics {
			if required == rt {
				return true
			}
		}
	}
	return false
}

func matchesAnyPattern(patterns []string, fullName, repoName string) bool {
	for _, p := range patterns {
		if matchPattern(p, fullName, repoName) {
			return true
		}
	}
	return false
}

// matchPattern matches OWNER/REPO when the pattern contains '/', otherwise
// the repo name alone so "*-service" works in org scope.
func matchPattern(pattern, fullName, repoName string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return false
	}
	target := repoName
	if strings.Contains(pattern, "/") {
		target = fullName
	}
	matched, _ := path.Match(pattern, target)
	return matched
}
