package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

// ViolationHandler exposes the proctoring log to administrators.
type ViolationHandler struct {
	violationService *service.ViolationService
}

// NewViolationHandler creates a new ViolationHandler.
func NewViolationHandler(violationService *service.ViolationService) *ViolationHandler {
	return &ViolationHandler{violationService: violationService}
}

// ListViolations godoc
// GET /api/v1/admin/attempts/:attempt_id/violations?type=&page=&per_page=
func (h *ViolationHandler) ListViolations(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var filter model.ViolationFilter
	if fields := validator.BindQuery(c, &filter); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	recs, pagination, err := h.violationService.ListByAttempt(c.Request.Context(), attemptID, filter)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.SuccessWithPagination(c, http.StatusOK, recs, pagination)
}

// CountViolations godoc
// GET /api/v1/admin/exams/:exam_id/violations/counts
func (h *ViolationHandler) CountViolations(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	counts, err := h.violationService.CountByExam(c.Request.Context(), examID)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"counts": counts})
}
