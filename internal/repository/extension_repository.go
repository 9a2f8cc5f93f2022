package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
)

// ExtensionRepository handles granted time extensions.
type ExtensionRepository struct {
	pool *pgxpool.Pool
}

// NewExtensionRepository creates a new ExtensionRepository.
func NewExtensionRepository(pool *pgxpool.Pool) *ExtensionRepository {
	return &ExtensionRepository{pool: pool}
}

// Create inserts an extension and fills its generated fields.
func (r *ExtensionRepository) Create(ctx context.Context, ext *model.TimeExtension) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exam_time_extensions (attempt_id, extension_minutes, reason, granted_by)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		ext.AttemptID, ext.Minutes, ext.Reason, ext.GrantedBy,
	).Scan(&ext.ID, &ext.CreatedAt)
}

// ListByAttempt returns every extension granted to an attempt, oldest first.
func (r *ExtensionRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID) ([]model.TimeExtension, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, extension_minutes, reason, granted_by, created_at
		 FROM exam_time_extensions WHERE attempt_id = $1
		 ORDER BY created_at ASC`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeExtension
	for rows.Next() {
		var e model.TimeExtension
		if err := rows.Scan(&e.ID, &e.AttemptID, &e.Minutes, &e.Reason, &e.GrantedBy, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// TotalExtensionMinutes implements proctor.ExtensionSource.
func (r *ExtensionRepository) TotalExtensionMinutes(ctx context.Context, attemptID uuid.UUID) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(extension_minutes), 0)::int FROM exam_time_extensions WHERE attempt_id = $1`,
		attemptID,
	).Scan(&total)
	return total, err
}
