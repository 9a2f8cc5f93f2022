package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "multiple_choice"
	QuestionTypeTrueFalse      QuestionType = "true_false"
	QuestionTypeShortAnswer    QuestionType = "short_answer"
)

// Question is an online exam question including its correct answer. It
// never leaves the server.
type Question struct {
	ID            uuid.UUID       `json:"id"`
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionText  string          `json:"question_text"`
	QuestionType  QuestionType    `json:"question_type"`
	Options       json.RawMessage `json:"options"`
	CorrectAnswer string          `json:"-"`
	Marks         float64         `json:"marks"`
	OrderNum      int             `json:"order_num"`
}

// QuestionForStudent is a question without the correct answer, sent to students.
type QuestionForStudent struct {
	ID           uuid.UUID       `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType QuestionType    `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	Marks        float64         `json:"marks"`
	OrderNum     int             `json:"order_num"`
}

// ForStudent strips the correct answer.
func (q Question) ForStudent() QuestionForStudent {
	return QuestionForStudent{
		ID:           q.ID,
		QuestionText: q.QuestionText,
		QuestionType: q.QuestionType,
		Options:      q.Options,
		Marks:        q.Marks,
		OrderNum:     q.OrderNum,
	}
}
