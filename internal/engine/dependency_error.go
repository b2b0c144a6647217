package engine

import (
	"fmt"
	"net/http"
	"strings"

	"auditrelay/internal/data"
	"auditrelay/internal/data/models"
	"auditrelay/internal/rules"
)

type depErrorDisposition int

const (
	depErrDispositionError depErrorDisposition = iota
	depErrDispositionSkip
)

type depErrorPresentation struct {
	disposition depErrorDisposition
	message     string
}

// isSkippableForbidden lists sections whose 403 means "feature not available
// on this plan" rather than a broken export.
func isSkippableForbidden(key data.DependencyKey) bool {
	switch key {
	case data.DepRepoDefaultBranchClassicProtection:
		return true
	default:
		return false
	}
}

func presentDependencyError(key data.DependencyKey, err error, verbose bool) depErrorPresentation {
	if err == nil {
		return depErrorPresentation{disposition: depErrDispositionError, message: "unknown error"}
	}

	fe := models.NewFetchError(err)
	msg := strings.TrimSpace(fe.Message)

	if fe.StatusCode > 0 {
		if fe.StatusCode == http.StatusForbidden && isSkippableForbidden(key) {
			if msg == "" {
				msg = "GitHub API request forbidden"
			}
			return depErrorPresentation{disposition: depErrDispositionSkip, message: msg}
		}
		if msg == "" {
			msg = "GitHub API request failed"
		}
		status := fmt.Sprintf("%d %s", fe.StatusCode, http.StatusText(fe.StatusCode))
		return depErrorPresentation{disposition: depErrDispositionError, message: fmt.Sprintf("GitHub API request failed (%s): %s", status, msg)}
	}

	if verbose {
		return depErrorPresentation{disposition: depErrDispositionError, message: msg}
	}
	if scrubbed := scrubGitHubRequestFromErrorString(msg); scrubbed != "" {
		return depErrorPresentation{disposition: depErrDispositionError, message: scrubbed}
	}
	if msg == "" {
		msg = "export failed"
	}
	return depErrorPresentation{disposition: depErrDispositionError, message: msg}
}

// scrubGitHubRequestFromErrorString drops the "GET https://...: " prefix of
// go-github error strings so reports do not carry request URLs.
func scrubGitHubRequestFromErrorString(s string) string {
	methods := []string{"GET ", "POST ", "PUT ", "PATCH ", "DELETE "}
	for _, m := range methods {
		if !strings.HasPrefix(s, m) {
			continue
		}
		if i := strings.Index(s, "https://"); i >= 0 {
			if j := strings.Index(s[i:], ": "); j >= 0 {
				return strings.TrimSpace(s[i+j+2:])
			}
		}
		if j := strings.Index(s, ": "); j >= 0 {
			return strings.TrimSpace(s[j+2:])
		}
		break
	}
	return ""
}

// resultIfDependenciesMissingOrFailed returns a synthetic status and message
// when a rule's declared sections are absent from the report or failed to
// export.
func resultIfDependenciesMissingOrFailed(dc data.DataContext, deps []data.DependencyKey, depErrs map[data.DependencyKey]error, verbose bool) (rules.Status, string, bool) {
	var missing []string
	var failed []string
	hasSkippable := false
	hasHard := false

	for _, d := range deps {
		if depErrs != nil {
			if depErr := depErrs[d]; depErr != nil {
				pres := presentDependencyError(d, depErr, verbose)
				failed = append(failed, fmt.Sprintf("%s: %s", d, pres.message))
				if pres.disposition == depErrDispositionSkip {
					hasSkippable = true
				} else {
					hasHard = true
				}
				continue
			}
		}
		if _, ok := dc.Get(d); ok {
			continue
		}
		missing = append(missing, string(d))
	}

	if len(failed) > 0 {
		status := rules.StatusError
		if hasSkippable && !hasHard {
			status = rules.StatusSkipped
		}
		msg := strings.Join(failed, "; ")
		if len(failed) == 1 {
			if _, after, ok := strings.Cut(failed[0], ": "); ok {
				msg = after
			}
		}
		return status, msg, true
	}

	if len(missing) > 0 {
		return rules.StatusError, fmt.Sprintf("Missing dependencies: %v", missing), true
	}
	return "", "", false
}
