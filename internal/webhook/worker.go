package webhook

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultWorkerInterval is the default tick between ProcessDeliveryQueue
// passes when the worker isn't configured otherwise.
const DefaultWorkerInterval = 30 * time.Second

// DefaultBatchSize bounds how many deliveries a single cycle claims.
const DefaultBatchSize = 100

// Worker runs the delivery engine on a fixed interval, mirroring the
// pack's retention-janitor shape: an immediate first cycle, then
// ticker-driven cycles until the context is cancelled.
type Worker struct {
	engine    *Engine
	interval  time.Duration
	batchSize int
}

// NewWorker constructs a Worker bound to engine.
func NewWorker(engine *Engine, interval time.Duration, batchSize int) *Worker {
	if interval <= 0 {
		interval = DefaultWorkerInterval
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Worker{engine: engine, interval: interval, batchSize: batchSize}
}

// Start runs the worker until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	log.Info().Dur("interval", w.interval).Int("batch_size", w.batchSize).Msg("webhook delivery worker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.runCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook delivery worker stopped")
			return
		case <-ticker.C:
			w.runCycle(ctx)
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	stats, err := w.engine.ProcessDeliveryQueue(ctx, nil, w.batchSize)
	if err != nil {
		log.Warn().Err(err).Msg("webhook delivery cycle failed")
		return
	}
	if stats.Claimed > 0 {
		log.Info().
			Int("claimed", stats.Claimed).
			Int("delivered", stats.Delivered).
			Int("retry_scheduled", stats.RetryScheduled).
			Int("dead_lettered", stats.DeadLettered).
			Msg("webhook delivery cycle complete")
	}
}
