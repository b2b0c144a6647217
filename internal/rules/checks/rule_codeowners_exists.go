package checks

import (
	"context"
	"fmt"
	"strings"

	"auditrelay/internal/data"
	"auditrelay/internal/data/models"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
)

type CodeownersExistsRule struct {
	location string
}

func (r *CodeownersExistsRule) ID() string {
	return "codeowners-exists"
}

func (r *CodeownersExistsRule) Title() string {
	return "CODEOWNERS File Exists"
}

func (r *CodeownersExistsRule) Description() string {
	return "Verifies that a CODEOWNERS file exists on the repository's default branch.\n\n" +
		"Accepted locations:\n" +
		"- CODEOWNERS\n" +
		"- .github/CODEOWNERS\n\n" +
		"Options:\n" +
		"- location: where CODEOWNERS must exist (either|root|github)\n\n" +
		"Examples:\n" +
		"  # Require CODEOWNERS at the repo root\n" +
		"  auditrelay run --input ./reports --set codeowners-exists.location=root\n\n" +
		"  # Require CODEOWNERS in the .github directory\n" +
		"  auditrelay run --input ./reports --set codeowners-exists.location=github"
}

func (r *CodeownersExistsRule) Module() string {
	return rules.ModuleRepository
}

func (r *CodeownersExistsRule) Options() []rules.Option {
	return []rules.Option{
		{
			Name:        "location",
			Description: "Where CODEOWNERS must exist on the default branch: either (default), root (CODEOWNERS), or github (.github/CODEOWNERS).",
			Default:     "either",
		},
	}
}

func (r *CodeownersExistsRule) Configure(opts map[string]string) error {
	r.location = "either"

	if v, ok := opts["location"]; ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v != "" {
			r.location = v
		}
	}

	switch r.location {
	case "either", "root", "github":
		return nil
	case ".github":
		r.location = "github"
		return nil
	default:
		return fmt.Errorf("invalid value for location: %q (must be either|root|github)", r.location)
	}
}

func (r *CodeownersExistsRule) Dependencies(ctx context.Context, repo *github.Repository) ([]data.DependencyKey, error) {
	return []data.DependencyKey{data.DepRepoDefaultBranchCodeowners}, nil
}

func (r *CodeownersExistsRule) Evaluate(ctx context.Context, repo *github.Repository, dc data.DataContext) (rules.Result, error) {
	val, ok := dc.Get(data.DepRepoDefaultBranchCodeowners)
	if !ok {
		return rules.ErrorResult(repo, r.ID(), "Dependency missing"), nil
	}
	if val == nil {
		return rules.ErrorResult(repo, r.ID(), "Dependency is nil"), nil
	}

	presence, ok := val.(*models.CodeownersPresence)
	if !ok {
		return rules.ErrorResult(repo, r.ID(), "Invalid dependency type"), nil
	}

	var result rules.Result
	location := r.location
	if location == "" {
		location = "either"
	}
	switch location {
	case "root":
		if presence.Root {
			result = rules.PassResultWithMessage(repo, r.ID(), "CODEOWNERS present at repository root")
		} else {
			result = rules.FailResult(repo, r.ID(), "CODEOWNERS not found at repository root")
		}
	case "github":
		if presence.GitHub {
			result = rules.PassResultWithMessage(repo, r.ID(), "CODEOWNERS present in .github directory")
		} else {
			result = rules.FailResult(repo, r.ID(), "CODEOWNERS not found in .github directory")
		}
	case "either":
		if presence.Root || presence.GitHub {
			loc := "repository root"
			if presence.GitHub {
				loc = ".github directory"
			}
			if presence.Root && presence.GitHub {
				loc = "repository root and .github directory"
			}
			result = rules.PassResultWithMessage(repo, r.ID(), "CODEOWNERS present in "+loc)
		} else {
			result = rules.FailResult(repo, r.ID(), "CODEOWNERS not found at CODEOWNERS or .github/CODEOWNERS")
		}
	default:
		return rules.ErrorResult(repo, r.ID(), "Invalid configuration"), nil
	}

	result.Evidence = map[string]string{
		"location": location,
		"root":     fmt.Sprintf("%t", presence.Root),
		"github":   fmt.Sprintf("%t", presence.GitHub),
	}
	return result, nil
}

func init() {
	rules.Register(&CodeownersExistsRule{})
}
