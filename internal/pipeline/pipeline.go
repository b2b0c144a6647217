// Package pipeline runs the report validation, rule evaluation and telemetry
// export pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"auditrelay/internal/engine"
	"auditrelay/internal/rules"
	"auditrelay/internal/telemetry"

	"github.com/google/uuid"
	"golang.org/x/text/language"
)

// ErrorMode controls how per-file validation problems are treated.
type ErrorMode string

const (
	// ErrorModeContinue reports invalid files as warnings and carries on.
	ErrorModeContinue ErrorMode = "continue"
	// ErrorModeStop fails the run on the first invalid file.
	ErrorModeStop ErrorMode = "stop"
)

// Options configures a Pipeline. Zero values take the defaults applied by New.
type Options struct {
	InputPath   string
	Pattern     string
	Lenient     bool
	Concurrency int

	// AssertModule is evaluated first in assertion mode; empty skips the pass.
	AssertModule string
	Modules      []string
	Format       engine.Format
	Locale       string

	LogType   string
	ErrorMode ErrorMode

	// RunID is used for every run of the Pipeline; empty generates a new
	// UUID per run.
	RunID string
}

const DefaultConcurrency = 4

func (o *Options) normalize() error {
	if strings.TrimSpace(o.InputPath) == "" {
		return errors.New("input path is required")
	}
	if o.Pattern == "" {
		o.Pattern = DefaultPattern
	}
	if _, err := filepath.Match(o.Pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", o.Pattern, err)
	}
	if o.Concurrency < 1 {
		o.Concurrency = DefaultConcurrency
	}
	if len(o.Modules) == 0 {
		o.Modules = rules.DefaultModules()
	}
	f, err := engine.ParseFormat(string(o.Format))
	if err != nil {
		return err
	}
	o.Format = f
	if o.Locale == "" {
		o.Locale = engine.DefaultLocale
	}
	if _, err := language.Parse(o.Locale); err != nil {
		return fmt.Errorf("invalid locale %q: %w", o.Locale, err)
	}
	if o.LogType == "" {
		o.LogType = telemetry.DefaultLogType
	}
	switch o.ErrorMode {
	case "":
		o.ErrorMode = ErrorModeContinue
	case ErrorModeContinue, ErrorModeStop:
	default:
		return fmt.Errorf("invalid error mode %q (must be continue or stop)", o.ErrorMode)
	}
	return nil
}

// Pipeline wires the locator, validator, evaluator and sink. A Pipeline
// holds no per-run state and may be run repeatedly.
type Pipeline struct {
	opts      Options
	evaluator engine.Evaluator
	sink      Sink
	reporter  Reporter
	logger    *slog.Logger

	newRunID func() string
}

func New(opts Options, evaluator engine.Evaluator, sink Sink, reporter Reporter, logger *slog.Logger) (*Pipeline, error) {
	if evaluator == nil {
		return nil, errors.New("evaluator is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	if err := opts.normalize(); err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		opts:      opts,
		evaluator: evaluator,
		sink:      sink,
		reporter:  reporter,
		logger:    logger,
		newRunID:  uuid.NewString,
	}, nil
}

// Options returns the normalized options.
func (p *Pipeline) Options() Options { return p.opts }

// run holds the state of one invocation.
type run struct {
	p      *Pipeline
	result Result
}

func (r *run) transition(s State) {
	r.result.State = s
	r.result.Path = append(r.result.Path, s)
	r.p.logger.Debug("pipeline state", "run_id", r.result.RunID, "state", s.String())
}

func (r *run) checkpoint(s Stage) {
	r.p.reporter.Report(Event{
		Type:       EventCheckpoint,
		RunID:      r.result.RunID,
		Checkpoint: &Checkpoint{Stage: s, Percent: s.Percent()},
	})
}

func (r *run) diagnose(sev Severity, code, path, msg string) {
	r.p.reporter.Report(Event{
		Type:       EventDiagnostic,
		RunID:      r.result.RunID,
		Diagnostic: &Diagnostic{Severity: sev, Code: code, Path: path, Message: msg},
	})
}

func (r *run) earlyExit(code, msg string) Result {
	r.diagnose(SeverityWarning, code, "", msg)
	r.transition(StateEarlyExit)
	return r.result
}

func (r *run) fail(err error) Result {
	r.result.Err = err
	r.diagnose(SeverityError, CodeRunFailed, "", err.Error())
	r.transition(StateFailed)
	return r.result
}

// Run executes one pipeline invocation.
func (p *Pipeline) Run(ctx context.Context) Result {
	runID := p.opts.RunID
	if runID == "" {
		runID = p.newRunID()
	}
	r := &run{p: p, result: Result{RunID: runID}}
	r.result.Path = []State{StateStart}

	files, skipped, err := locate(p.opts.InputPath, p.opts.Pattern)
	if err != nil {
		return r.fail(err)
	}
	for _, u := range skipped {
		r.diagnose(SeverityWarning, CodeUnreadablePath, u.Path, "skipped unreadable path: "+u.Err.Error())
	}
	r.result.Counts.Files = len(files)
	r.transition(StateLocated)
	r.checkpoint(StageLocated)
	if len(files) == 0 {
		return r.earlyExit(CodeNoInput, fmt.Sprintf("no files matching %s under %s", p.opts.Pattern, p.opts.InputPath))
	}

	summary := Validator{Pattern: p.opts.Pattern, Lenient: p.opts.Lenient, Concurrency: p.opts.Concurrency}.Validate(ctx, files)
	r.result.Counts.Valid = summary.Valid
	r.result.Counts.Empty = summary.Empty
	r.result.Counts.Malformed = summary.Malformed
	r.result.Counts.Globs = len(summary.Globs)
	for _, c := range summary.Classifications {
		switch c.Outcome {
		case OutcomeEmpty:
			r.diagnose(SeverityWarning, CodeEmptyReport, c.File.Path, "report file is empty")
		case OutcomeMalformed:
			r.diagnose(SeverityWarning, CodeMalformedReport, c.File.Path, "report file is not valid JSON: "+c.Reason)
		}
	}
	if err := ctx.Err(); err != nil {
		return r.fail(err)
	}
	if p.opts.ErrorMode == ErrorModeStop && summary.Warnings() > 0 {
		return r.fail(fmt.Errorf("%w: %d of %d report files are empty or malformed", ErrInvalidReport, summary.Warnings(), len(files)))
	}
	r.transition(StateValidated)
	r.checkpoint(StageValidated)
	if len(summary.Globs) == 0 {
		return r.earlyExit(CodeNoValidReports, "no valid report files to evaluate")
	}
	// Globs cover whole directories; files rejected above stay out of evaluation.
	rejected := summary.Rejected()

	if p.opts.AssertModule != "" {
		_, err := p.evaluator.Evaluate(ctx, engine.Request{
			Modules: []string{p.opts.AssertModule},
			Globs:   summary.Globs,
			Exclude: rejected,
			Format:  p.opts.Format,
			Locale:  p.opts.Locale,
			Assert:  true,
		})
		if err != nil {
			r.diagnose(SeverityWarning, CodeAssertionFailed, "", err.Error())
		}
	}
	r.checkpoint(StageAsserted)

	results, err := p.evaluator.Evaluate(ctx, engine.Request{
		Modules: p.opts.Modules,
		Globs:   summary.Globs,
		Exclude: rejected,
		Format:  p.opts.Format,
		Locale:  p.opts.Locale,
	})
	r.result.Counts.Results = len(results)
	if err != nil {
		if len(results) == 0 {
			return r.fail(fmt.Errorf("%w: %w", ErrNoEvaluationResults, err))
		}
		r.result.Degraded = true
		r.diagnose(SeverityWarning, CodeEvaluationPartial, "", fmt.Sprintf("evaluation failed after %d result(s): %v", len(results), err))
	}
	r.transition(StateEvaluated)
	r.checkpoint(StageEvaluated)
	if len(results) == 0 {
		return r.earlyExit(CodeNoResults, "evaluation produced no results")
	}

	r.checkpoint(StageSending)
	batch := telemetry.NewBatch(p.opts.LogType, r.result.RunID, results)
	if err := p.sink.Send(ctx, batch); err != nil {
		return r.fail(fmt.Errorf("%w: %w", ErrSendFailed, err))
	}
	r.transition(StateSent)
	r.checkpoint(StageSent)

	r.transition(StateDone)
	return r.result
}
