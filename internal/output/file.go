package output

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileSink writes the json or ndjson stream to a file on disk.
type FileSink struct {
	path string
	file *os.File
	*EmitSink
}

// InferFormat maps an output file extension to a structured format.
func InferFormat(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		return "json", nil
	case ".ndjson", ".jsonl":
		return "ndjson", nil
	default:
		return "", fmt.Errorf("cannot infer output format from file extension %q", ext)
	}
}

func NewFileSink(path string, format string) (*FileSink, error) {
	if path == "" {
		return nil, fmt.Errorf("output path required")
	}
	if format == "" {
		f, err := InferFormat(path)
		if err != nil {
			return nil, err
		}
		format = f
	}
	if format != "json" && format != "ndjson" {
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	emit, err := NewEmitSink(f, format)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &FileSink{path: path, file: f, EmitSink: emit}, nil
}

// Path returns the destination file.
func (s *FileSink) Path() string { return s.path }

func (s *FileSink) Close() error {
	err := s.EmitSink.Close()
	if closeErr := s.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
