package model

import (
	"time"

	"github.com/google/uuid"
)

// TimeExtension is extra time granted by an administrator to one attempt.
type TimeExtension struct {
	ID        uuid.UUID  `json:"id"`
	AttemptID uuid.UUID  `json:"attempt_id"`
	Minutes   int        `json:"extension_minutes"`
	Reason    *string    `json:"reason,omitempty"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// GrantExtensionRequest is the payload for granting extra time.
type GrantExtensionRequest struct {
	Minutes int    `json:"extension_minutes" binding:"required,min=1,max=240"`
	Reason  string `json:"reason" binding:"omitempty,max=500"`
}
