package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
)

// ViolationService reads the proctoring log for administrators.
type ViolationService struct {
	attemptRepo   *repository.AttemptRepository
	violationRepo *repository.ViolationRepository
}

// NewViolationService creates a new ViolationService.
func NewViolationService(attemptRepo *repository.AttemptRepository, violationRepo *repository.ViolationRepository) *ViolationService {
	return &ViolationService{attemptRepo: attemptRepo, violationRepo: violationRepo}
}

// ListByAttempt returns one page of an attempt's records.
func (s *ViolationService) ListByAttempt(ctx context.Context, attemptID uuid.UUID, f model.ViolationFilter) ([]proctor.ViolationRecord, *response.Pagination, error) {
	if _, err := s.attemptRepo.GetByID(ctx, attemptID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}

	f.Normalize()
	recs, total, err := s.violationRepo.ListByAttempt(ctx, attemptID, f)
	if err != nil {
		return nil, nil, fmt.Errorf("list violations: %w", err)
	}
	if recs == nil {
		recs = []proctor.ViolationRecord{}
	}
	return recs, response.NewPagination(f.Page, f.PerPage, total), nil
}

// CountByExam returns per-attempt tallies for an exam.
func (s *ViolationService) CountByExam(ctx context.Context, examID uuid.UUID) ([]model.ViolationCount, error) {
	counts, err := s.violationRepo.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count violations: %w", err)
	}
	if counts == nil {
		counts = []model.ViolationCount{}
	}
	return counts, nil
}
