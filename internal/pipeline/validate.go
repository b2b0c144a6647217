package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/tidwall/jsonc"
	"golang.org/x/sync/errgroup"
)

// Validator classifies report files as valid, empty or malformed JSON.
type Validator struct {
	// Pattern is joined to each valid file's directory to form its glob.
	Pattern string
	// Lenient accepts JSON with comments and trailing commas.
	Lenient bool
	// Concurrency bounds parallel file reads; values below 1 mean 1.
	Concurrency int
}

// Validate classifies files. Per-file problems never fail the call; the
// classification order matches files regardless of scheduling.
func (v Validator) Validate(ctx context.Context, files []ReportFile) ValidationSummary {
	classes := make([]Classification, len(files))

	limit := v.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, f := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				classes[i] = Classification{File: f, Outcome: OutcomeMalformed, Reason: err.Error()}
				return nil
			}
			classes[i] = v.classify(f)
			return nil
		})
	}
	_ = g.Wait()

	return summarize(classes, v.pattern())
}

func (v Validator) pattern() string {
	if v.Pattern == "" {
		return DefaultPattern
	}
	return v.Pattern
}

func (v Validator) classify(f ReportFile) Classification {
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return Classification{File: f, Outcome: OutcomeMalformed, Reason: err.Error()}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return Classification{File: f, Outcome: OutcomeEmpty}
	}
	if v.Lenient {
		raw = jsonc.ToJSON(raw)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Classification{File: f, Outcome: OutcomeMalformed, Reason: err.Error()}
	}
	return Classification{File: f, Outcome: OutcomeValid}
}

func summarize(classes []Classification, pattern string) ValidationSummary {
	s := ValidationSummary{Classifications: classes}
	dirs := make(map[string]struct{})
	for _, c := range classes {
		switch c.Outcome {
		case OutcomeValid:
			s.Valid++
			dirs[c.File.Dir] = struct{}{}
		case OutcomeEmpty:
			s.Empty++
		default:
			s.Malformed++
		}
	}
	for d := range dirs {
		s.Globs = append(s.Globs, filepath.Join(d, pattern))
	}
	sort.Strings(s.Globs)
	return s
}
