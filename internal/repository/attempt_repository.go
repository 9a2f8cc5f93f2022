package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// ErrAttemptClosed is returned by MarkSubmitted when the attempt is no
// longer in progress.
var ErrAttemptClosed = errors.New("attempt is not in progress")

const attemptColumns = `id, exam_id, student_id, started_at, submitted_at, status,
	total_score, max_score, percentage, grade, submit_reason`

// AttemptRepository handles exam attempt and answer persistence.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := row.Scan(&a.ID, &a.ExamID, &a.StudentID, &a.StartedAt, &a.SubmittedAt, &a.Status,
		&a.TotalScore, &a.MaxScore, &a.Percentage, &a.Grade, &a.SubmitReason)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the single attempt a student has for an exam.
func (r *AttemptRepository) GetByExamAndStudent(ctx context.Context, examID, studentID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = $1 AND student_id = $2`,
		examID, studentID))
}

// Create inserts a new attempt. It returns pgx.ErrNoRows when the student
// already has one for this exam.
func (r *AttemptRepository) Create(ctx context.Context, examID, studentID uuid.UUID) (*model.Attempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, student_id, status)
		 VALUES ($1, $2, 'in_progress')
		 ON CONFLICT (exam_id, student_id) DO NOTHING
		 RETURNING `+attemptColumns,
		examID, studentID))
}

// SaveAnswers upserts every answer in one batch.
func (r *AttemptRepository) SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers []proctor.Answer) error {
	if len(answers) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range answers {
		batch.Queue(
			`INSERT INTO attempt_answers (attempt_id, question_id, answer, is_flagged, updated_at)
			 VALUES ($1, $2, $3, $4, NOW())
			 ON CONFLICT (attempt_id, question_id)
			 DO UPDATE SET answer = EXCLUDED.answer, is_flagged = EXCLUDED.is_flagged, updated_at = NOW()`,
			attemptID, a.QuestionID, a.Answer, a.Flagged,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// UpsertAutosaved writes a queued autosave. The row is left alone once the
// attempt is submitted or when a newer write already landed.
func (r *AttemptRepository) UpsertAutosaved(ctx context.Context, attemptID, questionID uuid.UUID, answer string, flagged bool, savedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, answer, is_flagged, updated_at)
		 SELECT $1, $2, $3, $4, $5
		 WHERE EXISTS (SELECT 1 FROM exam_attempts WHERE id = $1 AND status = 'in_progress')
		 ON CONFLICT (attempt_id, question_id)
		 DO UPDATE SET answer = EXCLUDED.answer, is_flagged = EXCLUDED.is_flagged, updated_at = EXCLUDED.updated_at
		 WHERE attempt_answers.updated_at <= EXCLUDED.updated_at`,
		attemptID, questionID, answer, flagged, savedAt,
	)
	return err
}

// ListAnswers implements proctor.AttemptStore.
func (r *AttemptRepository) ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]proctor.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer, is_flagged, marks_obtained
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []proctor.Answer
	for rows.Next() {
		var a proctor.Answer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.Flagged, &a.MarksObtained); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListAnswerRows returns stored answers with their timestamps, for state
// restore on reconnect.
func (r *AttemptRepository) ListAnswerRows(ctx context.Context, attemptID uuid.UUID) ([]model.AttemptAnswer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, answer, is_flagged, marks_obtained, updated_at
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AttemptAnswer
	for rows.Next() {
		var a model.AttemptAnswer
		if err := rows.Scan(&a.QuestionID, &a.Answer, &a.Flagged, &a.MarksObtained, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveMarks writes per-question marks. Questions without an answer row get
// one so the mark is never lost.
func (r *AttemptRepository) SaveMarks(ctx context.Context, attemptID uuid.UUID, marks map[uuid.UUID]float64) error {
	if len(marks) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for qid, m := range marks {
		batch.Queue(
			`INSERT INTO attempt_answers (attempt_id, question_id, marks_obtained, updated_at)
			 VALUES ($1, $2, $3, NOW())
			 ON CONFLICT (attempt_id, question_id)
			 DO UPDATE SET marks_obtained = EXCLUDED.marks_obtained`,
			attemptID, qid, m,
		)
	}
	return r.pool.SendBatch(ctx, batch).Close()
}

// MarkSubmitted finalizes an attempt. Only in-progress attempts are updated.
func (r *AttemptRepository) MarkSubmitted(ctx context.Context, s proctor.Submission) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET status = 'submitted', submitted_at = $2, total_score = $3, max_score = $4,
		     percentage = $5, grade = $6, submit_reason = $7
		 WHERE id = $1 AND status = 'in_progress'`,
		s.AttemptID, s.SubmittedAt, s.Total, s.MaxTotal, s.Percentage, s.Grade, string(s.Reason),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptClosed
	}
	return nil
}

// ListByExam returns every attempt of an exam, newest first.
func (r *AttemptRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Attempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE exam_id = $1 ORDER BY started_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
