package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// ViolationRepository reads and writes the proctoring log.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

var violationCopyColumns = []string{
	"id", "attempt_id", "student_id", "violation_type", "description", "snapshot_url", "created_at",
}

// CopyMany bulk inserts records with COPY.
func (r *ViolationRepository) CopyMany(ctx context.Context, recs []proctor.ViolationRecord) error {
	rows := make([][]any, 0, len(recs))
	for _, v := range recs {
		rows = append(rows, []any{
			v.ID, v.AttemptID, v.StudentID, string(v.Type), v.Description, v.SnapshotPath, v.CreatedAt,
		})
	}
	_, err := r.pool.CopyFrom(ctx, pgx.Identifier{"proctoring_logs"}, violationCopyColumns, pgx.CopyFromRows(rows))
	return err
}

// Insert writes one record. Re-inserting the same id is a no-op.
func (r *ViolationRepository) Insert(ctx context.Context, v proctor.ViolationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO proctoring_logs (id, attempt_id, student_id, violation_type, description, snapshot_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		v.ID, v.AttemptID, v.StudentID, string(v.Type), v.Description, v.SnapshotPath, v.CreatedAt,
	)
	return err
}

// ListByAttempt returns one page of records for an attempt, oldest first,
// together with the total count.
func (r *ViolationRepository) ListByAttempt(ctx context.Context, attemptID uuid.UUID, f model.ViolationFilter) ([]proctor.ViolationRecord, int64, error) {
	var typ *string
	if f.Type != "" {
		typ = &f.Type
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM proctoring_logs
		 WHERE attempt_id = $1 AND ($2::text IS NULL OR violation_type = $2)`,
		attemptID, typ,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, attempt_id, student_id, violation_type, description, snapshot_url, created_at
		 FROM proctoring_logs
		 WHERE attempt_id = $1 AND ($2::text IS NULL OR violation_type = $2)
		 ORDER BY created_at ASC, id ASC
		 LIMIT $3 OFFSET $4`,
		attemptID, typ, f.PerPage, (f.Page-1)*f.PerPage,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []proctor.ViolationRecord
	for rows.Next() {
		var v proctor.ViolationRecord
		var vt string
		if err := rows.Scan(&v.ID, &v.AttemptID, &v.StudentID, &vt, &v.Description, &v.SnapshotPath, &v.CreatedAt); err != nil {
			return nil, 0, err
		}
		v.Type = proctor.ViolationType(vt)
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// CountByExam tallies records per attempt and type for an exam.
func (r *ViolationRepository) CountByExam(ctx context.Context, examID uuid.UUID) ([]model.ViolationCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT l.attempt_id::text, l.student_id::text, l.violation_type, COUNT(*)
		 FROM proctoring_logs l
		 JOIN exam_attempts a ON a.id = l.attempt_id
		 WHERE a.exam_id = $1
		 GROUP BY l.attempt_id, l.student_id, l.violation_type
		 ORDER BY l.attempt_id, l.violation_type`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ViolationCount
	for rows.Next() {
		var c model.ViolationCount
		var vt string
		if err := rows.Scan(&c.AttemptID, &c.StudentID, &vt, &c.Count); err != nil {
			return nil, err
		}
		c.Type = proctor.ViolationType(vt)
		out = append(out, c)
	}
	return out, rows.Err()
}
