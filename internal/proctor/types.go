package proctor

import (
	"time"

	"github.com/google/uuid"
)

// ViolationType is the stored vocabulary for integrity records.
// Values are persisted and must not change.
type ViolationType string

const (
	ViolationFullscreenExit   ViolationType = "fullscreen_exit"
	ViolationTabSwitch        ViolationType = "tab_switch"
	ViolationWindowBlur       ViolationType = "window_blur"
	ViolationRightClick       ViolationType = "right_click"
	ViolationCopyAttempt      ViolationType = "copy_attempt"
	ViolationDevTools         ViolationType = "dev_tools"
	ViolationWebcamError      ViolationType = "webcam_error"
	ViolationPeriodicSnapshot ViolationType = "periodic_snapshot"
)

// ViolationTypes lists every known type in a stable order.
var ViolationTypes = []ViolationType{
	ViolationFullscreenExit,
	ViolationTabSwitch,
	ViolationWindowBlur,
	ViolationRightClick,
	ViolationCopyAttempt,
	ViolationDevTools,
	ViolationWebcamError,
	ViolationPeriodicSnapshot,
}

// Valid reports whether t is part of the stored vocabulary.
func (t ViolationType) Valid() bool {
	for _, v := range ViolationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// CountsAsViolation is false for evidence-only records.
func (t ViolationType) CountsAsViolation() bool {
	return t != ViolationPeriodicSnapshot
}

const (
	// DefaultSnapshotInterval applies when Config.SnapshotInterval is zero.
	DefaultSnapshotInterval = 30 * time.Second
	// DefaultExtensionPollInterval is how often granted extra time is checked.
	DefaultExtensionPollInterval = 30 * time.Second
	// DefaultBlurGrace ignores window blur right after a fullscreen request,
	// since the browser permission prompt steals focus.
	DefaultBlurGrace = 2 * time.Second

	// SnapshotBucket is the object storage bucket for webcam evidence.
	SnapshotBucket = "proctoring-snapshots"

	maxRecentViolations = 50
)

// Config is fixed for the lifetime of one proctored session.
type Config struct {
	Enabled            bool
	FullscreenRequired bool
	// TabSwitchLimit of zero records tab switches without ever auto-submitting.
	TabSwitchLimit   int
	WebcamRequired   bool
	SnapshotInterval time.Duration

	AttemptID uuid.UUID
	StudentID uuid.UUID
	UserID    uuid.UUID
}

func (c Config) snapshotInterval() time.Duration {
	if c.SnapshotInterval <= 0 {
		return DefaultSnapshotInterval
	}
	return c.SnapshotInterval
}

// ViolationRecord is one append-only integrity log entry.
type ViolationRecord struct {
	ID           uuid.UUID     `json:"id"`
	AttemptID    uuid.UUID     `json:"attempt_id"`
	StudentID    uuid.UUID     `json:"student_id"`
	Type         ViolationType `json:"violation_type"`
	Description  string        `json:"description"`
	SnapshotPath *string       `json:"snapshot_url,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// NoticeLevel controls how the client renders a notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeSuccess NoticeLevel = "success"
	NoticeError   NoticeLevel = "error"
)

// Notice is a transient message for the student.
type Notice struct {
	Level   NoticeLevel    `json:"level"`
	Title   string         `json:"title"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}
