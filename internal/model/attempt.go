package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "in_progress"
	AttemptStatusSubmitted  AttemptStatus = "submitted"
)

// Attempt is one student's instance of taking an online exam.
type Attempt struct {
	ID           uuid.UUID     `json:"id"`
	ExamID       uuid.UUID     `json:"exam_id"`
	StudentID    uuid.UUID     `json:"student_id"`
	StartedAt    time.Time     `json:"started_at"`
	SubmittedAt  *time.Time    `json:"submitted_at,omitempty"`
	Status       AttemptStatus `json:"status"`
	TotalScore   *float64      `json:"total_score,omitempty"`
	MaxScore     *float64      `json:"max_score,omitempty"`
	Percentage   *float64      `json:"percentage,omitempty"`
	Grade        *string       `json:"grade,omitempty"`
	SubmitReason *string       `json:"submit_reason,omitempty"`
}

// RemainingSeconds recomputes the countdown from wall-clock time, the exam
// duration and granted extensions. It never goes below zero.
func (a *Attempt) RemainingSeconds(now time.Time, durationMinutes, extensionMinutes int) int {
	deadline := a.StartedAt.Add(time.Duration(durationMinutes+extensionMinutes) * time.Minute)
	remaining := int(deadline.Sub(now).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// AttemptState is returned to a (re)connecting student.
type AttemptState struct {
	Attempt                 *Attempt             `json:"attempt"`
	Exam                    *OnlineExam          `json:"exam"`
	Questions               []QuestionForStudent `json:"questions"`
	Answers                 []AttemptAnswer      `json:"answers"`
	RemainingSeconds        int                  `json:"remaining_seconds"`
	AppliedExtensionMinutes int                  `json:"applied_extension_minutes"`
}

// AttemptAnswer is a persisted answer row.
type AttemptAnswer struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Answer        string    `json:"answer"`
	Flagged       bool      `json:"flagged"`
	MarksObtained *float64  `json:"marks_obtained,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}
