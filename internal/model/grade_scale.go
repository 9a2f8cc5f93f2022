package model

import "github.com/google/uuid"

// GradeScale is one band of the school grading scale.
type GradeScale struct {
	ID       uuid.UUID `json:"id"`
	Grade    string    `json:"grade"`
	MinScore float64   `json:"min_score"`
	MaxScore float64   `json:"max_score"`
	Remark   *string   `json:"remark,omitempty"`
}
