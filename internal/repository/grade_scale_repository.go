package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// GradeScaleRepository reads the school grading scale.
type GradeScaleRepository struct {
	pool *pgxpool.Pool
}

// NewGradeScaleRepository creates a new GradeScaleRepository.
func NewGradeScaleRepository(pool *pgxpool.Pool) *GradeScaleRepository {
	return &GradeScaleRepository{pool: pool}
}

// ListGradeBands implements proctor.GradeScaleSource.
func (r *GradeScaleRepository) ListGradeBands(ctx context.Context) ([]proctor.GradeBand, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT grade, min_score, max_score FROM grade_scales ORDER BY min_score DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bands []proctor.GradeBand
	for rows.Next() {
		var b proctor.GradeBand
		if err := rows.Scan(&b.Grade, &b.MinScore, &b.MaxScore); err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, rows.Err()
}
