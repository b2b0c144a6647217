package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"auditrelay/internal/rules"
)

// ReportSink writes a Markdown summary of a run when closed.
type ReportSink struct {
	path        string
	file        *os.File
	mu          sync.Mutex
	results     []rules.Result
	diagnostics []Event
	finished    *Event
}

func NewReportSink(path string) (*ReportSink, error) {
	if path == "" {
		return nil, fmt.Errorf("report path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create report file: %w", err)
	}
	return &ReportSink{path: path, file: f}, nil
}

func (s *ReportSink) Write(v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch t := v.(type) {
	case rules.Result:
		s.results = append(s.results, t)
	case Event:
		switch t.Type {
		case EventDiagnostic:
			if t.Severity != "info" {
				s.diagnostics = append(s.diagnostics, t)
			}
		case EventRunFinished:
			ev := t
			s.finished = &ev
		}
	}
	return nil
}

func (s *ReportSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	content := renderReport(s.results, s.diagnostics, s.finished)
	if _, err := s.file.WriteString(content); err != nil {
		_ = s.file.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	return s.file.Close()
}

func renderReport(results []rules.Result, diagnostics []Event, finished *Event) string {
	var targetResults, summaries []rules.Result
	for _, r := range results {
		if r.TargetType == "summary" {
			summaries = append(summaries, r)
			continue
		}
		targetResults = append(targetResults, r)
	}

	var b strings.Builder
	b.WriteString("# Audit Run Report\n\n")

	if finished != nil {
		b.WriteString("| Run | State | Exit | Files | Results | Degraded |\n")
		b.WriteString("| --- | --- | ---: | ---: | ---: | --- |\n")
		fmt.Fprintf(&b, "| %s | %s | %d | %d | %d | %t |\n\n",
			finished.RunID, finished.State, finished.ExitCode, finished.Files, finished.Results, finished.Degraded)
		if finished.Detail != "" {
			fmt.Fprintf(&b, "Run error: %s\n\n", normalizeErrorReason(finished.Detail))
		}
	}

	if len(diagnostics) > 0 {
		b.WriteString("## Diagnostics\n\n")
		for _, d := range diagnostics {
			line := fmt.Sprintf("- **%s** `%s`", strings.ToUpper(d.Severity), d.Code)
			if d.Path != "" {
				line += fmt.Sprintf(" %s", d.Path)
			}
			if d.Detail != "" {
				line += ": " + d.Detail
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	modules := computeModuleStats(targetResults)
	b.WriteString("## Modules\n\n")
	if len(modules) == 0 {
		b.WriteString("No rule results.\n\n")
	} else {
		b.WriteString("| Module | Targets | PASS | FAIL | SKIPPED | ERROR |\n")
		b.WriteString("| --- | ---: | ---: | ---: | ---: | ---: |\n")
		for _, ms := range modules {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d | %d |\n",
				ms.Name, len(ms.targets), ms.Pass, ms.Fail, ms.Skipped, ms.Error)
		}
		b.WriteString("\n")
	}

	if len(summaries) > 0 {
		b.WriteString("## Summary\n\n")
		for _, r := range summaries {
			fmt.Fprintf(&b, "- **%s** [%s] %s\n", r.RuleID, r.Status, r.Message)
		}
		b.WriteString("\n")
	}

	targets := computeTargetStats(targetResults)
	if len(targets) > 0 {
		b.WriteString("## Targets\n\n")
		b.WriteString("| Target | PASS | FAIL | SKIPPED | ERROR |\n")
		b.WriteString("| --- | ---: | ---: | ---: | ---: |\n")
		for _, ts := range targets {
			fmt.Fprintf(&b, "| %s | %d | %d | %d | %d |\n", ts.Name, ts.Pass, ts.Fail, ts.Skipped, ts.Error)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Failing Findings\n\n")
	fails := groupByRule(targetResults, rules.StatusFail)
	if len(fails) == 0 {
		b.WriteString("No findings.\n\n")
	} else {
		b.WriteString("| Rule | Targets | Examples |\n")
		b.WriteString("| --- | ---: | --- |\n")
		for _, g := range fails {
			fmt.Fprintf(&b, "| %s | %d | %s |\n", g.Key, len(g.Targets), formatTargetList(g.Targets, 3))
		}
		b.WriteString("\n")
	}

	if skips := groupByRule(targetResults, rules.StatusSkipped); len(skips) > 0 {
		b.WriteString("## Skipped\n\n")
		for _, g := range skips {
			fmt.Fprintf(&b, "- **%s**: %s\n", g.Key, formatTargetList(g.Targets, 5))
		}
		b.WriteString("\n")
	}

	if errs := groupErrors(targetResults); len(errs) > 0 {
		b.WriteString("## Errors\n\n")
		for _, g := range errs {
			fmt.Fprintf(&b, "- **%s**: %s\n", g.Key, formatTargetList(g.Targets, 5))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Rules Evaluated\n\n")
	ruleIDs := uniqueRuleIDs(results)
	if len(ruleIDs) == 0 {
		b.WriteString("None.\n")
	} else {
		for _, id := range ruleIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	}

	return b.String()
}
