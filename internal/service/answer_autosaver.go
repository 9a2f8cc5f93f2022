package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// AnswerPayload is queued for the autosave worker.
type AnswerPayload struct {
	AttemptID  uuid.UUID `json:"attempt_id"`
	QuestionID uuid.UUID `json:"question_id"`
	Answer     string    `json:"answer"`
	Flagged    bool      `json:"flagged"`
	SavedAt    int64     `json:"saved_at"`
}

// AnswerAutosaver keeps the latest answers in a Redis hash and queues them
// for durable persistence.
type AnswerAutosaver struct {
	rdb *redis.Client
	now func() int64
}

// NewAnswerAutosaver creates a new AnswerAutosaver.
func NewAnswerAutosaver(rdb *redis.Client) *AnswerAutosaver {
	return &AnswerAutosaver{rdb: rdb, now: func() int64 { return time.Now().UnixMilli() }}
}

// Autosave implements proctor.AnswerAutosaver.
func (s *AnswerAutosaver) Autosave(ctx context.Context, attemptID uuid.UUID, a proctor.Answer) error {
	payload := AnswerPayload{
		AttemptID:  attemptID,
		QuestionID: a.QuestionID,
		Answer:     a.Answer,
		Flagged:    a.Flagged,
		SavedAt:    s.now(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal answer: %w", err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, config.CacheKey.AttemptAnswersKey(attemptID), a.QuestionID.String(), data)
	pipe.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("autosave answer: %w", err)
	}
	return nil
}

// Load returns the autosaved answers of an attempt keyed by question.
// Malformed entries are skipped.
func (s *AnswerAutosaver) Load(ctx context.Context, attemptID uuid.UUID) (map[uuid.UUID]AnswerPayload, error) {
	raw, err := s.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID)).Result()
	if err != nil {
		return nil, fmt.Errorf("load autosaved answers: %w", err)
	}
	out := make(map[uuid.UUID]AnswerPayload, len(raw))
	for _, v := range raw {
		var p AnswerPayload
		if err := json.Unmarshal([]byte(v), &p); err != nil {
			continue
		}
		out[p.QuestionID] = p
	}
	return out, nil
}

// Clear drops the autosave hash once the attempt is submitted.
func (s *AnswerAutosaver) Clear(ctx context.Context, attemptID uuid.UUID) error {
	return s.rdb.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID)).Err()
}
