package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrPermissionDenied  ErrCode = "PERMISSION_DENIED"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Exam-specific ─────────────────────────────────────────────────
	ErrExamNotFound      ErrCode = "EXAM_NOT_FOUND"
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrStudentNotFound   ErrCode = "STUDENT_NOT_FOUND"
	ErrAttemptNotFound   ErrCode = "ATTEMPT_NOT_FOUND"
	ErrAlreadySubmitted  ErrCode = "ATTEMPT_ALREADY_SUBMITTED"
	ErrSessionActive     ErrCode = "PROCTOR_SESSION_ACTIVE"
	ErrSessionNotRunning ErrCode = "SESSION_NOT_RUNNING"
	ErrUnknownQuestion   ErrCode = "UNKNOWN_QUESTION"
	ErrUnknownAction     ErrCode = "UNKNOWN_ACTION"
	ErrBusy              ErrCode = "BUSY"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrPermissionDenied:
		return "Permission denied."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Exam-specific ─────────────────────────────────────────────────
	case ErrExamNotFound:
		return "Exam not found."
	case ErrExamNotAvailable:
		return "This exam is not currently available."
	case ErrStudentNotFound:
		return "No student record is linked to this account."
	case ErrAttemptNotFound:
		return "Exam attempt not found."
	case ErrAlreadySubmitted:
		return "This exam attempt has already been submitted."
	case ErrSessionActive:
		return "This attempt is already open in another window."
	case ErrSessionNotRunning:
		return "The exam session is not in progress."
	case ErrUnknownQuestion:
		return "The question is not part of this exam."
	case ErrUnknownAction:
		return "Unknown action."
	case ErrBusy:
		return "Too many pending actions. Slow down."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error."
	default:
		return "An unexpected error occurred."
	}
}
