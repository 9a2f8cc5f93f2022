package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// MonitorEventViolation is the live monitor event type for a new record.
const MonitorEventViolation = "violation"

// ViolationQueue is the production proctor.ViolationSink. Records are queued
// for the violation worker and relayed to admins watching the exam.
type ViolationQueue struct {
	rdb    *redis.Client
	examID uuid.UUID
	log    zerolog.Logger
}

// NewViolationQueue creates a sink for the sessions of one exam.
func NewViolationQueue(rdb *redis.Client, examID uuid.UUID, log zerolog.Logger) *ViolationQueue {
	return &ViolationQueue{
		rdb:    rdb,
		examID: examID,
		log:    log.With().Str("component", "violation_queue").Logger(),
	}
}

// AppendViolation implements proctor.ViolationSink. Only the queue push is
// required to succeed; the live relay is best-effort.
func (q *ViolationQueue) AppendViolation(ctx context.Context, rec proctor.ViolationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	if err := q.rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err(); err != nil {
		return fmt.Errorf("queue violation: %w", err)
	}

	event, _ := json.Marshal(model.MonitorEvent{
		Type:      MonitorEventViolation,
		Violation: &rec,
		ExamID:    q.examID.String(),
	})
	if err := q.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(q.examID), event).Err(); err != nil {
		q.log.Warn().Err(err).Str("exam_id", q.examID.String()).Msg("Monitor publish failed")
	}
	return nil
}
