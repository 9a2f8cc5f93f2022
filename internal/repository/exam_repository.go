package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
)

const examColumns = `id, title, duration_minutes, status, starts_at, ends_at,
	show_result_immediately, proctoring_enabled, fullscreen_required,
	tab_switch_limit, webcam_required, snapshot_interval_seconds, created_at`

// ExamRepository handles online exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.OnlineExam, error) {
	e := &model.OnlineExam{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM online_exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.Status, &e.StartsAt, &e.EndsAt,
		&e.ShowResultImmediately, &e.ProctoringEnabled, &e.FullscreenRequired,
		&e.TabSwitchLimit, &e.WebcamRequired, &e.SnapshotIntervalSeconds, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
