package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

// AttemptHandler handles student-facing attempt endpoints.
type AttemptHandler struct {
	attemptService *service.AttemptService
}

// NewAttemptHandler creates a new AttemptHandler.
func NewAttemptHandler(attemptService *service.AttemptService) *AttemptHandler {
	return &AttemptHandler{attemptService: attemptService}
}

// StartAttempt godoc
// POST /api/v1/student/exams/:exam_id/attempts
// Creates the student's attempt, or returns the one in progress (idempotent).
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	attempt, err := h.attemptService.StartAttempt(c.Request.Context(), examID, claims.UserID)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"attempt": attempt})
}

// GetAttemptState godoc
// GET /api/v1/student/attempts/:attempt_id/state
// Covers page reloads: questions, stored answers and the remaining time
// including granted extensions.
func (h *AttemptHandler) GetAttemptState(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	state, err := h.attemptService.GetState(c.Request.Context(), attemptID, claims.UserID)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// failAttempt maps attempt service errors to responses.
func failAttempt(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrExamNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
	case errors.Is(err, service.ErrAttemptNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrAttemptNotFound)
	case errors.Is(err, service.ErrStudentNotFound):
		response.Fail(c, http.StatusForbidden, response.ErrStudentNotFound)
	case errors.Is(err, service.ErrExamNotAvailable):
		response.Fail(c, http.StatusBadRequest, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
