package output

import (
	"context"
	"log/slog"

	"auditrelay/internal/pipeline"
	"auditrelay/internal/telemetry"
)

// PipelineReporter streams pipeline checkpoints and diagnostics into m as
// lifecycle events. Write failures are logged and never reach the run.
func PipelineReporter(m *Manager, logger *slog.Logger) pipeline.Reporter {
	return pipeline.ReporterFunc(func(e pipeline.Event) {
		ev := Event{RunID: e.RunID}
		switch {
		case e.Checkpoint != nil:
			ev.Type = EventCheckpoint
			ev.Stage = string(e.Checkpoint.Stage)
			ev.Percent = e.Checkpoint.Percent
		case e.Diagnostic != nil:
			ev.Type = EventDiagnostic
			ev.Severity = string(e.Diagnostic.Severity)
			ev.Code = e.Diagnostic.Code
			ev.Path = e.Diagnostic.Path
			ev.Detail = e.Diagnostic.Message
		default:
			return
		}
		if err := m.Write(ev); err != nil && logger != nil {
			logger.Warn("output write failed", "type", ev.Type, "error", err)
		}
	})
}

// TeeSink writes every result of the batch to m before handing the batch to
// next. Local output never blocks delivery.
func TeeSink(m *Manager, next pipeline.Sink, logger *slog.Logger) pipeline.Sink {
	return pipeline.SinkFunc(func(ctx context.Context, batch telemetry.Batch) error {
		for _, r := range batch.Results {
			if err := m.Write(r); err != nil && logger != nil {
				logger.Warn("output write failed", "rule", r.RuleID, "target", r.Target, "error", err)
			}
		}
		if next == nil {
			return nil
		}
		return next.Send(ctx, batch)
	})
}

// RunStarted announces a run.
func RunStarted(m *Manager, runID, input string) error {
	return m.Write(Event{Type: EventRunStarted, RunID: runID, Path: input})
}

// RunFinished writes the terminal run.finished event.
func RunFinished(m *Manager, res pipeline.Result, exitCode int) error {
	ev := Event{
		Type:     EventRunFinished,
		RunID:    res.RunID,
		Files:    res.Counts.Files,
		Results:  res.Counts.Results,
		State:    res.State.String(),
		Degraded: res.Degraded,
		ExitCode: exitCode,
	}
	if res.Err != nil {
		ev.Detail = res.Err.Error()
	}
	return m.Write(ev)
}

// ReportExported records one report file written by the exporter.
func ReportExported(m *Manager, target, path string) error {
	return m.Write(Event{Type: EventReportExported, Path: path, Detail: target})
}
