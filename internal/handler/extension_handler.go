package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

// ExtensionHandler handles time extension endpoints.
type ExtensionHandler struct {
	extensionService *service.ExtensionService
}

// NewExtensionHandler creates a new ExtensionHandler.
func NewExtensionHandler(extensionService *service.ExtensionService) *ExtensionHandler {
	return &ExtensionHandler{extensionService: extensionService}
}

// GrantExtension godoc
// POST /api/v1/admin/attempts/:attempt_id/extensions
// Grants extra minutes. A connected student sees them within one poll.
func (h *ExtensionHandler) GrantExtension(c *gin.Context) {
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

	var req model.GrantExtensionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ext, err := h.extensionService.Grant(c.Request.Context(), attemptID, claims.UserID, req)
	if err != nil {
		failAttempt(c, err)
		return
	}

	response.Success(c, http.StatusCreated, ext)
}

// ListExtensions godoc
// GET /api/v1/admin/attempts/:attempt_id/extensions
func (h *ExtensionHandler) ListExtensions(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("attempt_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	exts, err := h.extensionService.List(c.Request.Context(), attemptID)
	if err != nil {
		failAttempt(c, err)
		return
	}
	if exts == nil {
		exts = []model.TimeExtension{}
	}

	response.Success(c, http.StatusOK, gin.H{"extensions": exts})
}
