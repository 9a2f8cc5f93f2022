package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// QuestionRepository handles question data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam, ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_type, options, correct_answer, marks, order_num
		 FROM online_exam_questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC, id ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.QuestionType,
			&q.Options, &q.CorrectAnswer, &q.Marks, &q.OrderNum); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// ListQuestions implements proctor.QuestionSource.
func (r *QuestionRepository) ListQuestions(ctx context.Context, examID uuid.UUID) ([]proctor.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, correct_answer, marks
		 FROM online_exam_questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC, id ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []proctor.Question
	for rows.Next() {
		var q proctor.Question
		if err := rows.Scan(&q.ID, &q.CorrectAnswer, &q.Marks); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
