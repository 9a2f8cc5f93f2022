package model

import (
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// ViolationFilter narrows a violation listing.
type ViolationFilter struct {
	Type    string `form:"type" binding:"omitempty,violation_type"`
	Page    int    `form:"page" binding:"omitempty,min=1"`
	PerPage int    `form:"per_page" binding:"omitempty,min=1,max=200"`
}

// Normalize fills paging defaults.
func (f *ViolationFilter) Normalize() {
	if f.Page == 0 {
		f.Page = 1
	}
	if f.PerPage == 0 {
		f.PerPage = 50
	}
}

// ViolationCount is a per-attempt, per-type tally for an exam.
type ViolationCount struct {
	AttemptID string                `json:"attempt_id"`
	StudentID string                `json:"student_id"`
	Type      proctor.ViolationType `json:"violation_type"`
	Count     int64                 `json:"count"`
}

// MonitorEvent is relayed to the admin live monitor over Redis pub/sub.
type MonitorEvent struct {
	Type      string                   `json:"type"`
	Violation *proctor.ViolationRecord `json:"violation,omitempty"`
	Result    *proctor.Result          `json:"result,omitempty"`
	ExamID    string                   `json:"exam_id"`
	AttemptID string                   `json:"attempt_id,omitempty"`
}
