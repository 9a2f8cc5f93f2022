package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
)

// MonitorService builds the admin view of a running exam.
type MonitorService struct {
	attemptRepo   *repository.AttemptRepository
	violationRepo *repository.ViolationRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(attemptRepo *repository.AttemptRepository, violationRepo *repository.ViolationRepository) *MonitorService {
	return &MonitorService{attemptRepo: attemptRepo, violationRepo: violationRepo}
}

// AttemptSummary is one row of the live monitor.
type AttemptSummary struct {
	AttemptID  uuid.UUID                       `json:"attempt_id"`
	StudentID  uuid.UUID                       `json:"student_id"`
	Status     model.AttemptStatus             `json:"status"`
	StartedAt  time.Time                       `json:"started_at"`
	Violations int64                           `json:"violations"`
	Snapshots  int64                           `json:"snapshots"`
	ByType     map[proctor.ViolationType]int64 `json:"by_type"`
}

// ExamOverview is the initial monitor snapshot for an exam.
type ExamOverview struct {
	TotalJoined     int              `json:"total_joined"`
	TotalInProgress int              `json:"total_in_progress"`
	TotalSubmitted  int              `json:"total_submitted"`
	TotalViolations int64            `json:"total_violations"`
	Attempts        []AttemptSummary `json:"attempts"`
}

// GetExamOverview fetches attempts and violation counts concurrently.
// Counts are best-effort: the overview is still returned without them.
func (s *MonitorService) GetExamOverview(ctx context.Context, examID uuid.UUID) (*ExamOverview, error) {
	var (
		attempts    []model.Attempt
		counts      []model.ViolationCount
		attemptsErr error
		countsErr   error
		wg          sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		attempts, attemptsErr = s.attemptRepo.ListByExam(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		counts, countsErr = s.violationRepo.CountByExam(ctx, examID)
	}()
	wg.Wait()

	if attemptsErr != nil {
		return nil, attemptsErr
	}

	overview := &ExamOverview{
		TotalJoined: len(attempts),
		Attempts:    make([]AttemptSummary, 0, len(attempts)),
	}
	index := make(map[string]int, len(attempts))
	for i, a := range attempts {
		switch a.Status {
		case model.AttemptStatusInProgress:
			overview.TotalInProgress++
		case model.AttemptStatusSubmitted:
			overview.TotalSubmitted++
		}
		overview.Attempts = append(overview.Attempts, AttemptSummary{
			AttemptID: a.ID,
			StudentID: a.StudentID,
			Status:    a.Status,
			StartedAt: a.StartedAt,
			ByType:    make(map[proctor.ViolationType]int64),
		})
		index[a.ID.String()] = i
	}

	if countsErr != nil {
		return overview, nil
	}
	for _, c := range counts {
		i, ok := index[c.AttemptID]
		if !ok {
			continue
		}
		row := &overview.Attempts[i]
		row.ByType[c.Type] = c.Count
		if c.Type.CountsAsViolation() {
			row.Violations += c.Count
			overview.TotalViolations += c.Count
		} else {
			row.Snapshots += c.Count
		}
	}
	return overview, nil
}
