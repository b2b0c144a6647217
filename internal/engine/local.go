package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"auditrelay/internal/data"
	"auditrelay/internal/data/models"
	"auditrelay/internal/rules"

	"github.com/google/go-github/v81/github"
	"github.com/tidwall/jsonc"
	"golang.org/x/text/language"
)

// DefaultLocale is used when a request carries no locale.
const DefaultLocale = "en-US"

// LocalEngine evaluates the built-in rule registry against exported report
// documents on disk.
type LocalEngine struct {
	Logger *slog.Logger

	// Verbose keeps full error strings in dependency failure messages.
	Verbose bool

	options RuleOptions

	// ruleSource resolves rule modules; nil uses the global registry.
	ruleSource func(modules []string) ([]rules.Rule, error)
}

// NewLocalEngine returns an engine that applies options to its own copies
// of the registered rules. Unknown rules, options or values are errors.
func NewLocalEngine(logger *slog.Logger, verbose bool, options RuleOptions) (*LocalEngine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := options.validate(rules.List()); err != nil {
		return nil, err
	}
	return &LocalEngine{Logger: logger, Verbose: verbose, options: options}, nil
}

func (e *LocalEngine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func (e *LocalEngine) resolveRules(modules []string) ([]rules.Rule, error) {
	resolve := rules.ForModules
	if e.ruleSource != nil {
		resolve = e.ruleSource
	}
	rs, err := resolve(modules)
	if err != nil {
		return nil, err
	}
	return e.options.apply(rs)
}

// Evaluate loads every report matched by req.Globs and runs the rules of
// req.Modules over it. Unreadable reports are collected into the returned
// error while evaluation continues over the rest.
func (e *LocalEngine) Evaluate(ctx context.Context, req Request) ([]rules.Result, error) {
	format, err := ParseFormat(string(req.Format))
	if err != nil {
		return nil, err
	}
	locale := req.Locale
	if strings.TrimSpace(locale) == "" {
		locale = DefaultLocale
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid locale %q: %w", locale, err)
	}

	selected, err := e.resolveRules(req.Modules)
	if err != nil {
		return nil, err
	}

	files, err := expandGlobs(req.Globs, req.Exclude)
	if err != nil {
		return nil, err
	}
	e.logger().Debug("evaluating reports", "files", len(files), "rules", len(selected), "modules", req.Modules)

	var results []rules.Result
	var errs []error
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report, err := loadReport(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if report.Kind != models.KindRepository {
			e.logger().Debug("skipping report without repository kind", "path", path, "kind", report.Kind)
			continue
		}
		results = append(results, e.evaluateReport(ctx, selected, report, path, tag.String())...)
	}

	if format == FormatSummary {
		results = summarize(selected, results, tag)
	}

	evalErr := errors.Join(errs...)
	if req.Assert {
		if aerr := assertResults(results); aerr != nil {
			evalErr = errors.Join(aerr, evalErr)
		}
	}
	return results, evalErr
}

// expandGlobs returns the sorted, de-duplicated files matched by globs,
// minus the excluded paths.
func expandGlobs(globs, exclude []string) ([]string, error) {
	seen := make(map[string]struct{}, len(exclude))
	for _, x := range exclude {
		seen[filepath.Clean(x)] = struct{}{}
	}
	var files []string
	for _, g := range globs {
		matches, err := filepath.Glob(g)
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", g, err)
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

func loadReport(path string) (*models.Report, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report %s: %w", path, err)
	}
	var report models.Report
	if err := json.Unmarshal(jsonc.ToJSON(raw), &report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", path, err)
	}
	return &report, nil
}

// reportContext rebuilds the DataContext and per-section errors of a report.
func reportContext(report *models.Report) (*github.Repository, data.DataContext, map[data.DependencyKey]error) {
	sections := make(map[data.DependencyKey]any, len(report.Data))
	depErrs := make(map[data.DependencyKey]error)

	for key, raw := range report.Data {
		v, err := models.DecodeSection(key, raw)
		if err != nil {
			depErrs[key] = err
			continue
		}
		sections[key] = v
	}
	for key, fe := range report.Errors {
		if fe != nil {
			depErrs[key] = fe
		}
	}

	var repo *github.Repository
	if meta, ok := sections[data.DepRepoMetadata].(*github.Repository); ok && meta != nil {
		repo = meta
	} else {
		repo = &github.Repository{}
	}
	if repo.GetFullName() == "" {
		repo.FullName = github.Ptr(report.Target)
	}
	return repo, data.NewMapDataContext(sections), depErrs
}

func (e *LocalEngine) evaluateReport(ctx context.Context, selected []rules.Rule, report *models.Report, source, locale string) []rules.Result {
	repo, dc, depErrs := reportContext(report)
	target := repo.GetFullName()

	out := make([]rules.Result, 0, len(selected))
	emit := func(rule rules.Rule, res rules.Result) {
		if res.Target == "" {
			res.Target = target
		}
		if res.TargetType == "" {
			res.TargetType = rules.TargetTypeRepository
		}
		if res.RuleID == "" {
			res.RuleID = rule.ID()
		}
		res.Module = rule.Module()
		res.Source = source
		res.Locale = locale
		out = append(out, res)
	}

	for _, rule := range selected {
		deps, err := rule.Dependencies(ctx, repo)
		if err != nil {
			emit(rule, rules.Result{Status: rules.StatusError, Message: fmt.Sprintf("Failed to determine dependencies: %v", err)})
			continue
		}

		if status, msg, ok := resultIfDependenciesMissingOrFailed(dc, deps, depErrs, e.Verbose); ok {
			emit(rule, rules.Result{Status: status, Message: msg})
			continue
		}

		// A rule must not read sections it did not declare.
		tracked := data.NewTrackingDataContext(dc)
		res, err := rule.Evaluate(ctx, repo, tracked)
		if undeclared := tracked.Undeclared(deps); len(undeclared) > 0 {
			msg := fmt.Sprintf("Rule accessed undeclared dependencies: %s. Declare them in Dependencies().", strings.Join(undeclared, ", "))
			if err != nil {
				msg = fmt.Sprintf("%s (evaluation error: %v)", msg, err)
			}
			emit(rule, rules.Result{Status: rules.StatusError, Message: msg})
			continue
		}
		if err != nil {
			emit(rule, rules.Result{Status: rules.StatusError, Message: fmt.Sprintf("Evaluation failed: %v", err)})
			continue
		}
		emit(rule, res)
	}
	return out
}
