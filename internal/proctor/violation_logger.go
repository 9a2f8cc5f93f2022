package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/metrics"
)

const violationWriteTimeout = 10 * time.Second

// ViolationLogger writes violation records without blocking the caller.
// A failed write is logged and the record is dropped.
type ViolationLogger struct {
	sink ViolationSink
	log  zerolog.Logger
	now  func() time.Time
	wg   sync.WaitGroup
}

// NewViolationLogger creates a ViolationLogger.
func NewViolationLogger(sink ViolationSink, log zerolog.Logger) *ViolationLogger {
	return &ViolationLogger{
		sink: sink,
		log:  log.With().Str("component", "violation_logger").Logger(),
		now:  time.Now,
	}
}

// Log builds the record and writes it in the background.
func (l *ViolationLogger) Log(ctx context.Context, cfg Config, typ ViolationType, description string, snapshotPath *string) ViolationRecord {
	rec := ViolationRecord{
		ID:           uuid.New(),
		AttemptID:    cfg.AttemptID,
		StudentID:    cfg.StudentID,
		Type:         typ,
		Description:  description,
		SnapshotPath: snapshotPath,
		CreatedAt:    l.now().UTC(),
	}
	metrics.ViolationsTotal.WithLabelValues(string(typ)).Inc()

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), violationWriteTimeout)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		defer cancel()
		if err := l.sink.AppendViolation(writeCtx, rec); err != nil {
			l.log.Error().Err(err).
				Str("attempt_id", rec.AttemptID.String()).
				Str("type", string(rec.Type)).
				Msg("Failed to log violation")
			return
		}
		l.log.Debug().
			Str("attempt_id", rec.AttemptID.String()).
			Str("type", string(rec.Type)).
			Bool("evidence", rec.SnapshotPath != nil).
			Msg("Violation logged")
	}()
	return rec
}

// Wait blocks until in-flight writes finish or ctx is done.
func (l *ViolationLogger) Wait(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		l.log.Warn().Msg("Gave up waiting for violation writes")
	}
}
