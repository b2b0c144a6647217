package output

import (
	"fmt"
	"sort"
	"strings"

	"auditrelay/internal/rules"
)

// normalizeErrorReason collapses whitespace, strips prefixes, and maps known patterns.
func normalizeErrorReason(errText string) string {
	s := strings.Join(strings.Fields(errText), " ")

	// Strip rule-id or key prefixes such as "repo.metadata: ...".
	if idx := strings.Index(s, ": "); idx != -1 {
		prefix := s[:idx]
		if !strings.Contains(prefix, " ") && (strings.Contains(prefix, ".") || strings.Contains(prefix, "_")) {
			s = s[idx+2:]
		}
	}

	if strings.Contains(s, "403 Forbidden") && (strings.Contains(s, "Upgrade to GitHub Pro") || strings.Contains(s, "feature requires GitHub Pro")) {
		return "403 Forbidden: feature requires GitHub Pro/Team"
	}

	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

type statusCounts struct {
	Name    string
	Pass    int
	Fail    int
	Skipped int
	Error   int
}

func (c *statusCounts) add(s rules.Status) {
	switch s {
	case rules.StatusPass:
		c.Pass++
	case rules.StatusFail:
		c.Fail++
	case rules.StatusSkipped:
		c.Skipped++
	case rules.StatusError:
		c.Error++
	}
}

type moduleStats struct {
	statusCounts
	targets map[string]struct{}
}

func computeModuleStats(results []rules.Result) []*moduleStats {
	byName := make(map[string]*moduleStats)
	for _, r := range results {
		name := r.Module
		if name == "" {
			name = "(none)"
		}
		ms, ok := byName[name]
		if !ok {
			ms = &moduleStats{statusCounts: statusCounts{Name: name}, targets: make(map[string]struct{})}
			byName[name] = ms
		}
		ms.add(r.Status)
		if r.Target != "" {
			ms.targets[r.Target] = struct{}{}
		}
	}

	out := make([]*moduleStats, 0, len(byName))
	for _, ms := range byName {
		out = append(out, ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// computeTargetStats orders targets by failures, then errors, then name.
func computeTargetStats(results []rules.Result) []*statusCounts {
	byTarget := make(map[string]*statusCounts)
	for _, r := range results {
		if r.Target == "" {
			continue
		}
		ts, ok := byTarget[r.Target]
		if !ok {
			ts = &statusCounts{Name: r.Target}
			byTarget[r.Target] = ts
		}
		ts.add(r.Status)
	}

	out := make([]*statusCounts, 0, len(byTarget))
	for _, ts := range byTarget {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fail != out[j].Fail {
			return out[i].Fail > out[j].Fail
		}
		if out[i].Error != out[j].Error {
			return out[i].Error > out[j].Error
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type group struct {
	Key     string
	Targets []string
}

func groupBy(results []rules.Result, keep func(rules.Result) (string, bool)) []group {
	seen := make(map[string]map[string]struct{})
	for _, r := range results {
		key, ok := keep(r)
		if !ok {
			continue
		}
		if seen[key] == nil {
			seen[key] = make(map[string]struct{})
		}
		seen[key][r.Target] = struct{}{}
	}

	out := make([]group, 0, len(seen))
	for key, set := range seen {
		g := group{Key: key}
		for t := range set {
			g.Targets = append(g.Targets, t)
		}
		sort.Strings(g.Targets)
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].Targets) != len(out[j].Targets) {
			return len(out[i].Targets) > len(out[j].Targets)
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func groupByRule(results []rules.Result, status rules.Status) []group {
	return groupBy(results, func(r rules.Result) (string, bool) {
		return r.RuleID, r.Status == status
	})
}

func groupErrors(results []rules.Result) []group {
	return groupBy(results, func(r rules.Result) (string, bool) {
		if r.Status != rules.StatusError {
			return "", false
		}
		reason := normalizeErrorReason(r.Message)
		if reason == "" {
			reason = "unknown error"
		}
		return reason, true
	})
}

func uniqueRuleIDs(results []rules.Result) []string {
	set := make(map[string]struct{})
	for _, r := range results {
		if r.RuleID != "" {
			set[r.RuleID] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func formatTargetList(targets []string, max int) string {
	if len(targets) == 0 {
		return ""
	}
	if len(targets) <= max {
		return strings.Join(targets, ", ")
	}
	return fmt.Sprintf("%s, +%d more", strings.Join(targets[:max], ", "), len(targets)-max)
}
