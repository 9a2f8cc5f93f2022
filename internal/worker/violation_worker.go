package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

const (
	BatchSize    = 50
	BatchTimeout = 2 * time.Second
	PollTimeout  = 1 * time.Second // Must be >= 1s to satisfy Redis
)

// ViolationStore is the write side of the proctoring log.
type ViolationStore interface {
	CopyMany(ctx context.Context, recs []proctor.ViolationRecord) error
	Insert(ctx context.Context, rec proctor.ViolationRecord) error
}

// ViolationWorker drains the violation queue into PostgreSQL in batches.
type ViolationWorker struct {
	store ViolationStore
	rdb   *redis.Client
	log   zerolog.Logger

	requeuePause time.Duration
}

// NewViolationWorker creates a new ViolationWorker.
func NewViolationWorker(store ViolationStore, rdb *redis.Client, log zerolog.Logger) *ViolationWorker {
	return &ViolationWorker{
		store:        store,
		rdb:          rdb,
		log:          log.With().Str("component", "violation_worker").Logger(),
		requeuePause: 2 * time.Second,
	}
}

// Start runs until ctx is cancelled. Call in a goroutine.
func (w *ViolationWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	buffer := make([]proctor.ViolationRecord, 0, BatchSize)
	lastFlush := time.Now()

	for {
		if len(buffer) > 0 && (len(buffer) >= BatchSize || time.Since(lastFlush) >= BatchTimeout) {
			w.flushSafe(ctx, buffer)
			buffer = buffer[:0]
			lastFlush = time.Now()
		}

		select {
		case <-ctx.Done():
			w.shutdown(buffer)
			return
		default:
		}

		result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistViolationsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				continue
			}
			w.log.Error().Err(err).Msg("Redis connection error, sleeping 3s")
			sleepCtx(ctx, 3*time.Second)
			continue
		}
		if len(result) < 2 {
			continue
		}

		var rec proctor.ViolationRecord
		if err := json.Unmarshal([]byte(result[1]), &rec); err != nil {
			// Malformed payloads can never succeed.
			w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed violation")
			continue
		}
		buffer = append(buffer, rec)
	}
}

// flushSafe tries COPY, then row by row, then requeues what still failed.
func (w *ViolationWorker) flushSafe(ctx context.Context, batch []proctor.ViolationRecord) {
	err := w.store.CopyMany(ctx, batch)
	if err == nil {
		w.log.Debug().Int("count", len(batch)).Msg("Violations persisted")
		return
	}
	w.log.Warn().Err(err).Int("count", len(batch)).Msg("Bulk insert failed, attempting row-by-row recovery")

	var failed []proctor.ViolationRecord
	for _, rec := range batch {
		if err := w.store.Insert(ctx, rec); err != nil {
			w.log.Error().Err(err).Str("violation_id", rec.ID.String()).Msg("Insert failed, requeueing")
			failed = append(failed, rec)
		}
	}
	if len(failed) > 0 {
		w.requeue(ctx, failed)
	}
}

func (w *ViolationWorker) requeue(ctx context.Context, recs []proctor.ViolationRecord) {
	// The original ctx may already be cancelled during shutdown.
	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	pipe := w.rdb.Pipeline()
	for _, rec := range recs {
		data, _ := json.Marshal(rec)
		pipe.RPush(pushCtx, config.WorkerKey.PersistViolationsQueue, data)
	}
	if _, err := pipe.Exec(pushCtx); err != nil {
		w.log.Error().Err(err).Int("count", len(recs)).Msg("CRITICAL: failed to requeue violations, records lost")
		return
	}
	w.log.Info().Int("count", len(recs)).Msg("Requeued failed violations")
	sleepCtx(ctx, w.requeuePause)
}

func (w *ViolationWorker) shutdown(buffer []proctor.ViolationRecord) {
	w.log.Info().Msg("Worker stopping, flushing remaining buffer...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if len(buffer) > 0 {
		w.flushSafe(ctx, buffer)
	}
	w.log.Info().Msg("Worker stopped")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
