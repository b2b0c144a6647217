package output

import (
	"fmt"
	"io"
	"sync"

	"auditrelay/internal/pipeline"

	"github.com/pterm/pterm"
)

// ConsoleProgress renders pipeline progress for an interactive terminal.
type ConsoleProgress struct {
	mu      sync.Mutex
	info    *pterm.PrefixPrinter
	warning *pterm.PrefixPrinter
	error   *pterm.PrefixPrinter
	success *pterm.PrefixPrinter
	last    int
}

func NewConsoleProgress(w io.Writer) *ConsoleProgress {
	return &ConsoleProgress{
		info:    pterm.Info.WithWriter(w),
		warning: pterm.Warning.WithWriter(w),
		error:   pterm.Error.WithWriter(w),
		success: pterm.Success.WithWriter(w),
	}
}

func (p *ConsoleProgress) Report(e pipeline.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case e.Checkpoint != nil:
		cp := e.Checkpoint
		if cp.Percent <= p.last {
			return
		}
		p.last = cp.Percent
		if cp.Percent == 100 {
			p.success.Println(fmt.Sprintf("%3d%% %s", cp.Percent, cp.Stage))
			return
		}
		p.info.Println(fmt.Sprintf("%3d%% %s", cp.Percent, cp.Stage))
	case e.Diagnostic != nil:
		d := e.Diagnostic
		msg := d.Message
		if d.Path != "" {
			msg = d.Path + ": " + msg
		}
		switch d.Severity {
		case pipeline.SeverityError:
			p.error.Println(msg)
		case pipeline.SeverityWarning:
			p.warning.Println(msg)
		default:
			p.info.Println(msg)
		}
	}
}
