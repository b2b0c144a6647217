package rules

import (
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/google/go-github/v81/github"
)

// Allowlist option names shared by every rule.
const (
	OptionAllowRepos    = "allow.repos"
	OptionAllowPatterns = "allow.patterns"
	OptionAllowTopics   = "allow.topics"
)

// AllowList accepts known failures for specific targets. Targets match by
// OWNER/REPO, by path.Match pattern, or by repository topic. Matching is
// case-insensitive.
type AllowList struct {
	Repos    map[string]bool
	Patterns []string
	Topics   []string
}

func (a *AllowList) Options() []Option {
	return []Option{
		{
			Name:        OptionAllowRepos,
			Description: "Comma-separated list of accepted targets (OWNER/REPO).",
		},
		{
			Name:        OptionAllowPatterns,
			Description: "Comma-separated list of wildcard patterns for accepted targets (e.g. acme/public-*).",
		},
		{
			Name:        OptionAllowTopics,
			Description: "Comma-separated list of topics. A repository with any of these topics is accepted.",
		},
	}
}

// Configure replaces the allowlist with the allow.* entries of opts.
func (a *AllowList) Configure(opts map[string]string) {
	a.Repos = make(map[string]bool)
	for _, name := range lowerList(opts[OptionAllowRepos]) {
		a.Repos[name] = true
	}
	a.Patterns = lowerList(opts[OptionAllowPatterns])
	a.Topics = lowerList(opts[OptionAllowTopics])
}

func lowerList(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// IsAllowed reports whether target (OWNER/REPO) is accepted and by which
// option. repo may be nil; topics are then not considered.
func (a *AllowList) IsAllowed(target string, repo *github.Repository) (bool, string) {
	target = strings.ToLower(target)
	if target == "" && repo != nil {
		target = strings.ToLower(repo.GetFullName())
	}

	if target != "" && a.Repos[target] {
		return true, OptionAllowRepos
	}
	if target != "" && slices.ContainsFunc(a.Patterns, func(p string) bool {
		ok, _ := path.Match(p, target)
		return ok
	}) {
		return true, OptionAllowPatterns
	}
	if repo != nil && slices.ContainsFunc(repo.Topics, func(t string) bool {
		return slices.Contains(a.Topics, strings.ToLower(t))
	}) {
		return true, OptionAllowTopics
	}
	return false, ""
}

// CheckResult turns an accepted failure into a pass. Evidence and metadata
// of the original failure are kept.
func (a *AllowList) CheckResult(repo *github.Repository, result Result) Result {
	if result.Status != StatusFail {
		return result
	}
	allowed, reason := a.IsAllowed(result.Target, repo)
	if !allowed {
		return result
	}
	result.Status = StatusPass
	result.Message = fmt.Sprintf("Allowed failure: %s (allowed by %s)", result.Message, reason)
	if result.Evidence == nil {
		result.Evidence = make(map[string]string)
	}
	result.Evidence["allowed_by"] = reason
	return result
}
