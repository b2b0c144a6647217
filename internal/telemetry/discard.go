package telemetry

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// DiscardSender accepts every batch without sending it. Used for dry runs.
type DiscardSender struct {
	Logger  *slog.Logger
	batches atomic.Int64
	records atomic.Int64
}

func (s *DiscardSender) Send(ctx context.Context, batch Batch) error {
	s.batches.Add(1)
	s.records.Add(int64(batch.Len()))
	if s.Logger != nil {
		s.Logger.Info("dry run: telemetry not sent", "run_id", batch.RunID, "log_type", batch.LogType, "records", batch.Len())
	}
	return nil
}

// Counts reports how many batches and records were accepted.
func (s *DiscardSender) Counts() (batches, records int64) {
	return s.batches.Load(), s.records.Load()
}
