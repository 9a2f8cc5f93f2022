package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
)

// Attempt errors.
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not available")
	ErrStudentNotFound  = errors.New("no student record for this user")
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrAlreadySubmitted = errors.New("attempt already submitted")
)

// AttemptService handles starting and resuming exam attempts.
type AttemptService struct {
	examRepo      *repository.ExamRepository
	attemptRepo   *repository.AttemptRepository
	questionRepo  *repository.QuestionRepository
	studentRepo   *repository.StudentRepository
	extensionRepo *repository.ExtensionRepository
	autosaver     *AnswerAutosaver
	log           zerolog.Logger
	now           func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	examRepo *repository.ExamRepository,
	attemptRepo *repository.AttemptRepository,
	questionRepo *repository.QuestionRepository,
	studentRepo *repository.StudentRepository,
	extensionRepo *repository.ExtensionRepository,
	autosaver *AnswerAutosaver,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		examRepo:      examRepo,
		attemptRepo:   attemptRepo,
		questionRepo:  questionRepo,
		studentRepo:   studentRepo,
		extensionRepo: extensionRepo,
		autosaver:     autosaver,
		log:           log.With().Str("component", "attempt_service").Logger(),
		now:           time.Now,
	}
}

// GetExam returns an exam or ErrExamNotFound.
func (s *AttemptService) GetExam(ctx context.Context, examID uuid.UUID) (*model.OnlineExam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

func (s *AttemptService) studentID(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	id, err := s.studentRepo.GetIDByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, ErrStudentNotFound
		}
		return uuid.Nil, fmt.Errorf("get student: %w", err)
	}
	return id, nil
}

// StartAttempt creates the student's attempt, or returns the one already in
// progress. A submitted attempt cannot be restarted.
func (s *AttemptService) StartAttempt(ctx context.Context, examID, userID uuid.UUID) (*model.Attempt, error) {
	exam, err := s.GetExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	studentID, err := s.studentID(ctx, userID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("check existing attempt: %w", err)
	}
	if existing != nil {
		if existing.Status == model.AttemptStatusSubmitted {
			return nil, ErrAlreadySubmitted
		}
		return existing, nil
	}

	if !exam.Available(s.now()) {
		return nil, ErrExamNotAvailable
	}

	attempt, err := s.attemptRepo.Create(ctx, examID, studentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Concurrent start from another tab.
			attempt, err = s.attemptRepo.GetByExamAndStudent(ctx, examID, studentID)
			if err != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", err)
			}
			return attempt, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Str("attempt_id", attempt.ID.String()).
		Str("exam_id", examID.String()).
		Msg("Attempt started")
	return attempt, nil
}

// GetOwnedAttempt loads an attempt and its exam, checking that it belongs to
// the user.
func (s *AttemptService) GetOwnedAttempt(ctx context.Context, attemptID, userID uuid.UUID) (*model.Attempt, *model.OnlineExam, error) {
	attempt, err := s.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, ErrAttemptNotFound
		}
		return nil, nil, fmt.Errorf("get attempt: %w", err)
	}
	studentID, err := s.studentID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		// Same answer as a missing attempt so foreign ids reveal nothing.
		return nil, nil, ErrAttemptNotFound
	}
	exam, err := s.GetExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, exam, nil
}

// ExtensionMinutes sums the extensions granted to an attempt.
func (s *AttemptService) ExtensionMinutes(ctx context.Context, attemptID uuid.UUID) (int, error) {
	total, err := s.extensionRepo.TotalExtensionMinutes(ctx, attemptID)
	if err != nil {
		return 0, fmt.Errorf("sum extensions: %w", err)
	}
	return total, nil
}

// GetState rebuilds what a reconnecting student needs: questions without
// answers keys, their stored answers and the remaining time.
func (s *AttemptService) GetState(ctx context.Context, attemptID, userID uuid.UUID) (*model.AttemptState, error) {
	attempt, exam, err := s.GetOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	forStudent := make([]model.QuestionForStudent, len(questions))
	for i, q := range questions {
		forStudent[i] = q.ForStudent()
	}

	answers, err := s.Answers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	ext, err := s.ExtensionMinutes(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}

	remaining := 0
	if attempt.Status == model.AttemptStatusInProgress {
		remaining = attempt.RemainingSeconds(s.now(), exam.DurationMinutes, ext)
	}

	return &model.AttemptState{
		Attempt:                 attempt,
		Exam:                    exam,
		Questions:               forStudent,
		Answers:                 answers,
		RemainingSeconds:        remaining,
		AppliedExtensionMinutes: ext,
	}, nil
}

// Answers merges persisted answers with newer autosaved ones still waiting
// in the queue. A Redis failure falls back to the database alone.
func (s *AttemptService) Answers(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := s.attemptRepo.ListAnswerRows(ctx, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	byQuestion := make(map[uuid.UUID]model.AttemptAnswer, len(rows))
	for _, r := range rows {
		byQuestion[r.QuestionID] = r
	}

	if s.autosaver != nil {
		cached, err := s.autosaver.Load(ctx, attemptID)
		if err != nil {
			s.log.Warn().Err(err).Str("attempt_id", attemptID.String()).Msg("Autosave cache unavailable, using stored answers")
		}
		for qid, p := range cached {
			savedAt := time.UnixMilli(p.SavedAt)
			if cur, ok := byQuestion[qid]; ok && !savedAt.After(cur.UpdatedAt) {
				continue
			}
			row := byQuestion[qid]
			row.QuestionID = qid
			row.Answer = p.Answer
			row.Flagged = p.Flagged
			row.UpdatedAt = savedAt
			byQuestion[qid] = row
		}
	}

	out := make([]model.AttemptAnswer, 0, len(byQuestion))
	for _, a := range byQuestion {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID.String() < out[j].QuestionID.String() })
	return out, nil
}
