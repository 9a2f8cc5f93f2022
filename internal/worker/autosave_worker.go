package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

// AnswerStore persists autosaved answers.
type AnswerStore interface {
	UpsertAutosaved(ctx context.Context, attemptID, questionID uuid.UUID, answer string, flagged bool, savedAt time.Time) error
}

// AutosaveWorker consumes the answers queue and upserts into PostgreSQL.
type AutosaveWorker struct {
	store AnswerStore
	rdb   *redis.Client
	log   zerolog.Logger

	retryPause time.Duration
}

// NewAutosaveWorker creates a new AutosaveWorker.
func NewAutosaveWorker(store AnswerStore, rdb *redis.Client, log zerolog.Logger) *AutosaveWorker {
	return &AutosaveWorker{
		store:      store,
		rdb:        rdb,
		log:        log.With().Str("component", "autosave_worker").Logger(),
		retryPause: 5 * time.Second,
	}
}

// Start begins the worker loop. Call in a goroutine.
func (w *AutosaveWorker) Start(ctx context.Context) {
	w.log.Info().Msg("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Worker stopping...")
			drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			w.drain(drainCtx)
			cancel()
			w.log.Info().Msg("Worker stopped")
			return
		default:
			w.processNext(ctx)
		}
	}
}

func (w *AutosaveWorker) processNext(ctx context.Context) {
	result, err := w.rdb.BLPop(ctx, PollTimeout, config.WorkerKey.PersistAnswersQueue).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("BLPop error")
			sleepCtx(ctx, time.Second)
		}
		return
	}
	if len(result) < 2 {
		return
	}

	var p service.AnswerPayload
	if err := json.Unmarshal([]byte(result[1]), &p); err != nil {
		w.log.Error().Err(err).Str("data", result[1]).Msg("Discarding malformed answer")
		return
	}

	if err := w.persist(ctx, p); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", p.AttemptID.String()).
			Str("question_id", p.QuestionID.String()).
			Msg("Persist error, retrying later")
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		w.rdb.RPush(pushCtx, config.WorkerKey.PersistAnswersQueue, result[1])
		cancel()
		sleepCtx(ctx, w.retryPause)
	}
}

func (w *AutosaveWorker) persist(ctx context.Context, p service.AnswerPayload) error {
	return w.store.UpsertAutosaved(ctx, p.AttemptID, p.QuestionID, p.Answer, p.Flagged, time.UnixMilli(p.SavedAt))
}

// drain persists what is left in the queue before shutdown.
func (w *AutosaveWorker) drain(ctx context.Context) {
	drained := 0
	for ctx.Err() == nil {
		raw, err := w.rdb.LPop(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			break
		}

		var p service.AnswerPayload
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			w.log.Error().Err(err).Msg("Drain unmarshal error")
			continue
		}
		if err := w.persist(ctx, p); err != nil {
			w.log.Error().Err(err).Msg("Drain persist error")
			w.rdb.RPush(context.WithoutCancel(ctx), config.WorkerKey.PersistAnswersQueue, raw)
			break
		}
		drained++
	}

	if drained > 0 {
		w.log.Info().Int("count", drained).Msg("Drained remaining items")
	}
}
