package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"auditrelay/internal/data"
	"auditrelay/internal/data/models"

	"golang.org/x/sync/errgroup"
)

// Summary counts the outcome of one export run.
type Summary struct {
	Repos         int
	Written       int
	SectionErrors int
	Failed        int
}

// Exporter writes one report document per repository.
type Exporter struct {
	Fetcher     *Fetcher
	OutDir      string
	Concurrency int
	// Keys limits the exported sections. Empty means every provided key.
	Keys   []data.DependencyKey
	Logger *slog.Logger
	// OnExported is called after a report file has been written.
	OnExported func(ref RepositoryRef, path string)

	now func() time.Time
}

// Export fetches and writes a report for every ref. Section fetch failures
// are recorded inside the report; only write failures are returned.
func (e *Exporter) Export(ctx context.Context, refs []RepositoryRef) (Summary, error) {
	if e.Fetcher == nil {
		return Summary{}, fmt.Errorf("export: fetcher is required")
	}
	if e.OutDir == "" {
		return Summary{}, fmt.Errorf("export: output directory is required")
	}
	logger := e.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	keys := e.Keys
	if len(keys) == 0 {
		keys = e.Fetcher.Keys()
	}
	now := e.now
	if now == nil {
		now = time.Now
	}
	limit := e.Concurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu      sync.Mutex
		summary = Summary{Repos: len(refs)}
		errs    []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, ref := range refs {
		g.Go(func() error {
			if ref.Repo == nil {
				return nil
			}
			report := models.NewReport(ref.FullName(), now())
			sectionErrors := 0
			for _, key := range keys {
				val, err := e.Fetcher.Fetch(gctx, ref.Repo, key)
				if err != nil {
					// Cancellation is not a property of the repository.
					if ctxErr := gctx.Err(); ctxErr != nil {
						return ctxErr
					}
					logger.Warn("section fetch failed", "repo", ref.FullName(), "key", key, "error", err)
					report.SetError(key, err)
					sectionErrors++
					continue
				}
				if err := report.SetSection(key, val); err != nil {
					report.SetError(key, err)
					sectionErrors++
				}
			}

			path := filepath.Join(e.OutDir, ref.Owner, ref.Name+".json")
			err := writeReport(path, report)

			mu.Lock()
			summary.SectionErrors += sectionErrors
			if err != nil {
				summary.Failed++
				errs = append(errs, fmt.Errorf("%s: %w", ref.FullName(), err))
			} else {
				summary.Written++
			}
			mu.Unlock()

			if err != nil {
				logger.Error("report write failed", "repo", ref.FullName(), "error", err)
				return nil
			}
			logger.Debug("report written", "repo", ref.FullName(), "path", path, "section_errors", sectionErrors)
			if e.OnExported != nil {
				e.OnExported(ref, path)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return summary, err
	}
	return summary, errors.Join(errs...)
}

// tempReportPattern names in-progress writes. It must not match the *.json
// pattern that run uses to locate reports.
const tempReportPattern = ".report-*.tmp"

// writeReport replaces path atomically so readers never see a partial file.
func writeReport(path string, report *models.Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), tempReportPattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(b, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
