package cli

import (
	"io"

	"auditrelay/internal/config"
	"auditrelay/internal/output"
)

// newOutputManager builds the sinks selected by the output config. stdout
// receives the console and --emit streams.
func newOutputManager(c *config.Config, stdout io.Writer, withConsole bool) (*output.Manager, error) {
	outMgr := output.NewManager()

	// Console Sink
	if withConsole && !c.Output.NoConsole {
		if err := outMgr.AddSink(output.NewConsoleSink(stdout, c.Output.ConsoleFormat, c.Output.ConsoleFilterStatus)); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Emit Sinks (additional structured streams)
	for _, emit := range c.Output.Emit {
		es, err := output.NewEmitSink(stdout, emit)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(es); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// File Sink
	if c.Output.Out != "" {
		fs, err := output.NewFileSink(c.Output.Out, c.Output.OutFormat)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(fs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	// Report Sink
	if withConsole && c.Output.Report != "" {
		rs, err := output.NewReportSink(c.Output.Report)
		if err != nil {
			outMgr.Close()
			return nil, err
		}
		if err := outMgr.AddSink(rs); err != nil {
			outMgr.Close()
			return nil, err
		}
	}

	return outMgr, nil
}
