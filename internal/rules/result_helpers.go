package rules

import "github.com/google/go-github/v81/github"

// TargetTypeRepository is the TargetType stamped on repository results.
const TargetTypeRepository = "repository"

func RepoFullName(repo *github.Repository) string {
	if repo == nil {
		return ""
	}
	return repo.GetFullName()
}

func NewResult(repo *github.Repository, ruleID string, status Status, message string) Result {
	res := Result{
		Status:     status,
		Target:     RepoFullName(repo),
		TargetType: TargetTypeRepository,
		RuleID:     ruleID,
	}
	if message != "" {
		res.Message = message
	}
	return res
}

func PassResult(repo *github.Repository, ruleID string) Result {
	return NewResult(repo, ruleID, StatusPass, "")
}

func PassResultWithMessage(repo *github.Repository, ruleID string, message string) Result {
	return NewResult(repo, ruleID, StatusPass, message)
}

func FailResult(repo *github.Repository, ruleID string, message string) Result {
	return NewResult(repo, ruleID, StatusFail, message)
}

func ErrorResult(repo *github.Repository, ruleID string, message string) Result {
	return NewResult(repo, ruleID, StatusError, message)
}

func SkippedResult(repo *github.Repository, ruleID string, message string) Result {
	return NewResult(repo, ruleID, StatusSkipped, message)
}
