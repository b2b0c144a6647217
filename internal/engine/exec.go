package engine

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"auditrelay/internal/rules"
)

// maxStderrBytes bounds how much engine stderr is kept for error messages.
const maxStderrBytes = 8 << 10

// ExecEngine delegates evaluation to an external command. The request is
// written to the command's stdin as JSON; results are read from stdout as a
// JSON array or as newline-delimited JSON objects.
type ExecEngine struct {
	Command string
	Args    []string
	// Env is appended to the current process environment.
	Env    []string
	Logger *slog.Logger
}

func NewExecEngine(command string, args []string, logger *slog.Logger) *ExecEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecEngine{Command: command, Args: args, Logger: logger}
}

func (e *ExecEngine) Evaluate(ctx context.Context, req Request) ([]rules.Result, error) {
	if strings.TrimSpace(e.Command) == "" {
		return nil, errors.New("exec engine: no command configured")
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("exec engine: encode request: %w", err)
	}

	cmd := exec.CommandContext(ctx, e.Command, e.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	if len(e.Env) > 0 {
		cmd.Env = append(os.Environ(), e.Env...)
	}
	var stdout bytes.Buffer
	stderr := &limitedBuffer{max: maxStderrBytes}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("running engine command", "command", e.Command, "args", e.Args, "modules", req.Modules, "assert", req.Assert)

	runErr := cmd.Run()
	results, parseErr := parseResults(stdout.Bytes())

	if runErr != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			runErr = fmt.Errorf("exec engine: %s: %w: %s", e.Command, runErr, msg)
		} else {
			runErr = fmt.Errorf("exec engine: %s: %w", e.Command, runErr)
		}
		return results, errors.Join(runErr, parseErr)
	}
	if parseErr != nil {
		return results, fmt.Errorf("exec engine: %w", parseErr)
	}
	if req.Assert {
		return results, assertResults(results)
	}
	return results, nil
}

// parseResults accepts a JSON array or NDJSON. On a decode failure it
// returns the results decoded so far.
func parseResults(b []byte) ([]rules.Result, error) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []rules.Result
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode results: %w", err)
		}
		return out, nil
	}

	var out []rules.Result
	sc := bufio.NewScanner(bytes.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64<<10), 4<<20)
	line := 0
	for sc.Scan() {
		line++
		text := bytes.TrimSpace(sc.Bytes())
		if len(text) == 0 {
			continue
		}
		var r rules.Result
		if err := json.Unmarshal(text, &r); err != nil {
			return out, fmt.Errorf("decode result line %d: %w", line, err)
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read results: %w", err)
	}
	return out, nil
}

type limitedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }

var _ io.Writer = (*limitedBuffer)(nil)
