package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// ExamStatus enumerates the possible states of an online exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusPublished ExamStatus = "published"
	ExamStatusClosed    ExamStatus = "closed"
)

// OnlineExam is a timed assessment with its proctoring settings.
type OnlineExam struct {
	ID                      uuid.UUID  `json:"id"`
	Title                   string     `json:"title"`
	DurationMinutes         int        `json:"duration_minutes"`
	Status                  ExamStatus `json:"status"`
	StartsAt                *time.Time `json:"starts_at,omitempty"`
	EndsAt                  *time.Time `json:"ends_at,omitempty"`
	ShowResultImmediately   bool       `json:"show_result_immediately"`
	ProctoringEnabled       bool       `json:"proctoring_enabled"`
	FullscreenRequired      bool       `json:"fullscreen_required"`
	TabSwitchLimit          int        `json:"tab_switch_limit"`
	WebcamRequired          bool       `json:"webcam_required"`
	SnapshotIntervalSeconds int        `json:"snapshot_interval_seconds"`
	CreatedAt               time.Time  `json:"created_at"`
}

// Available reports whether students may start the exam at now.
func (e *OnlineExam) Available(now time.Time) bool {
	if e.Status != ExamStatusPublished {
		return false
	}
	if e.StartsAt != nil && now.Before(*e.StartsAt) {
		return false
	}
	if e.EndsAt != nil && now.After(*e.EndsAt) {
		return false
	}
	return true
}

// ProctoringConfig builds the per-session configuration for one attempt.
func (e *OnlineExam) ProctoringConfig(a *Attempt, userID uuid.UUID) proctor.Config {
	return proctor.Config{
		Enabled:            e.ProctoringEnabled,
		FullscreenRequired: e.FullscreenRequired,
		TabSwitchLimit:     e.TabSwitchLimit,
		WebcamRequired:     e.WebcamRequired,
		SnapshotInterval:   time.Duration(e.SnapshotIntervalSeconds) * time.Second,
		AttemptID:          a.ID,
		StudentID:          a.StudentID,
		UserID:             userID,
	}
}

// SessionExam is the subset the session controller works with.
func (e *OnlineExam) SessionExam() proctor.Exam {
	return proctor.Exam{
		ID:                    e.ID,
		Title:                 e.Title,
		DurationMinutes:       e.DurationMinutes,
		ShowResultImmediately: e.ShowResultImmediately,
	}
}
