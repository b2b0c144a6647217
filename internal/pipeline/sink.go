package pipeline

import (
	"context"

	"auditrelay/internal/telemetry"
)

// Sink receives the complete result batch of a run, exactly once.
type Sink interface {
	Send(ctx context.Context, batch telemetry.Batch) error
}

type SinkFunc func(ctx context.Context, batch telemetry.Batch) error

func (f SinkFunc) Send(ctx context.Context, batch telemetry.Batch) error {
	return f(ctx, batch)
}
