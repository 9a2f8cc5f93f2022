package proctor

import (
	"context"
	"image"
	"time"

	"github.com/google/uuid"
)

// ViolationSink persists violation records.
type ViolationSink interface {
	AppendViolation(ctx context.Context, rec ViolationRecord) error
}

// ObjectStorage stores binary evidence and returns an opaque reference.
type ObjectStorage interface {
	Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error)
}

// FrameSource yields the most recent video frame.
type FrameSource interface {
	Frame() (image.Image, error)
}

// VideoSink previews a stream and exposes its frames.
type VideoSink interface {
	FrameSource
	Play(stream MediaStream) error
}

// MediaTrack is one track of an acquired stream.
type MediaTrack interface {
	Stop()
}

// MediaStream is an acquired camera stream.
type MediaStream interface {
	Tracks() []MediaTrack
}

// Constraints describe the requested camera stream.
type Constraints struct {
	Video      bool   `json:"video"`
	Audio      bool   `json:"audio"`
	FacingMode string `json:"facing_mode"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
}

// DefaultConstraints asks for the front camera, video only, at 640x480.
var DefaultConstraints = Constraints{
	Video:      true,
	Audio:      false,
	FacingMode: "user",
	Width:      640,
	Height:     480,
}

// MediaDevices acquires camera streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (MediaStream, error)
}

// Display switches fullscreen presentation.
type Display interface {
	RequestFullscreen(ctx context.Context) error
	ExitFullscreen(ctx context.Context) error
}

// Notifier shows notices to the student.
type Notifier interface {
	Notify(n Notice)
}

// EventSource delivers client events until the returned cancel func is called.
type EventSource interface {
	Subscribe() (<-chan Event, func())
}

// ExtensionSource reports total granted extension minutes for an attempt.
type ExtensionSource interface {
	TotalExtensionMinutes(ctx context.Context, attemptID uuid.UUID) (int, error)
}

// Answer is a student's stored response to one question.
type Answer struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Answer        string    `json:"answer"`
	Flagged       bool      `json:"flagged"`
	MarksObtained *float64  `json:"marks_obtained,omitempty"`
}

// Question is the authoritative question used for grading.
type Question struct {
	ID            uuid.UUID `json:"id"`
	CorrectAnswer string    `json:"-"`
	Marks         float64   `json:"marks"`
}

// GradeBand maps an inclusive percentage range to a letter grade.
type GradeBand struct {
	Grade    string  `json:"grade"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// Submission is written when an attempt is finalized.
type Submission struct {
	AttemptID   uuid.UUID
	SubmittedAt time.Time
	Total       float64
	MaxTotal    float64
	Percentage  float64
	Grade       *string
	Reason      SubmitReason
}

// AttemptStore persists answers and attempt status.
type AttemptStore interface {
	SaveAnswers(ctx context.Context, attemptID uuid.UUID, answers []Answer) error
	ListAnswers(ctx context.Context, attemptID uuid.UUID) ([]Answer, error)
	SaveMarks(ctx context.Context, attemptID uuid.UUID, marks map[uuid.UUID]float64) error
	MarkSubmitted(ctx context.Context, s Submission) error
}

// QuestionSource loads questions with their correct answers.
type QuestionSource interface {
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]Question, error)
}

// GradeScaleSource loads the grading scale.
type GradeScaleSource interface {
	ListGradeBands(ctx context.Context) ([]GradeBand, error)
}
