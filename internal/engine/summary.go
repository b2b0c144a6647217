package engine

import (
	"sort"
	"strconv"

	"auditrelay/internal/rules"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// TargetTypeSummary marks results produced by the summary format.
const TargetTypeSummary = "summary"

type ruleTally struct {
	passed, failed, skipped, errored int
	failing                          []string
}

// summarize folds detail results into one result per selected rule, in rule
// order. Rules without any results are reported as SKIPPED.
func summarize(selected []rules.Rule, detail []rules.Result, tag language.Tag) []rules.Result {
	tallies := make(map[string]*ruleTally, len(selected))
	for _, r := range detail {
		t := tallies[r.RuleID]
		if t == nil {
			t = &ruleTally{}
			tallies[r.RuleID] = t
		}
		switch r.Status {
		case rules.StatusPass:
			t.passed++
		case rules.StatusFail:
			t.failed++
			t.failing = append(t.failing, r.Target)
		case rules.StatusError:
			t.errored++
			t.failing = append(t.failing, r.Target)
		default:
			t.skipped++
		}
	}

	p := message.NewPrinter(tag)
	out := make([]rules.Result, 0, len(selected))
	for _, rule := range selected {
		t := tallies[rule.ID()]
		if t == nil {
			t = &ruleTally{}
		}
		total := t.passed + t.failed + t.skipped + t.errored

		status := rules.StatusSkipped
		switch {
		case t.failed > 0:
			status = rules.StatusFail
		case t.errored > 0:
			status = rules.StatusError
		case t.passed > 0:
			status = rules.StatusPass
		}

		res := rules.Result{
			RuleID:     rule.ID(),
			Module:     rule.Module(),
			Target:     rule.Module(),
			TargetType: TargetTypeSummary,
			Status:     status,
			Message:    p.Sprintf("%d of %d targets passed", t.passed, total),
			Locale:     tag.String(),
			Evidence: map[string]string{
				"passed":  strconv.Itoa(t.passed),
				"failed":  strconv.Itoa(t.failed),
				"skipped": strconv.Itoa(t.skipped),
				"errored": strconv.Itoa(t.errored),
			},
		}
		if len(t.failing) > 0 {
			sort.Strings(t.failing)
			res.Metadata = map[string]any{"failing_targets": t.failing}
		}
		out = append(out, res)
	}
	return out
}
