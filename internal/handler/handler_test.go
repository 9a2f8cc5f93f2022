package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/validator"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// serve runs h behind an optional claims injector. Services stay nil: every
// request here is rejected before reaching them.
func serve(method, pattern, target, body string, claims *service.Claims, h gin.HandlerFunc) *httptest.ResponseRecorder {
	r := gin.New()
	r.Handle(method, pattern, func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextKeyClaims, claims)
		}
		c.Next()
	}, h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	return *resp.Error
}

func TestAttemptHandlerRejectsBadRequests(t *testing.T) {
	h := NewAttemptHandler(nil)
	student := &service.Claims{TokenType: service.TokenTypeStudent, UserID: uuid.New()}

	w := serve(http.MethodPost, "/exams/:exam_id/attempts", "/exams/abc/attempts", "", nil, h.StartAttempt)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, response.ErrTokenRequired, decodeError(t, w).Code)

	w = serve(http.MethodPost, "/exams/:exam_id/attempts", "/exams/abc/attempts", "", student, h.StartAttempt)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, decodeError(t, w).Code)

	w = serve(http.MethodGet, "/attempts/:attempt_id/state", "/attempts/42/state", "", student, h.GetAttemptState)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGrantExtensionValidation(t *testing.T) {
	h := NewExtensionHandler(nil)
	admin := &service.Claims{TokenType: service.TokenTypeAdmin, UserID: uuid.New()}
	target := fmt.Sprintf("/attempts/%s/extensions", uuid.New())

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing minutes", `{"reason":"network outage"}`, "extension_minutes"},
		{"zero minutes", `{"extension_minutes":0}`, "extension_minutes"},
		{"too many minutes", `{"extension_minutes":500}`, "extension_minutes"},
		{"malformed body", `{"extension_minutes":`, "detail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(http.MethodPost, "/attempts/:attempt_id/extensions", target, tt.body, admin, h.GrantExtension)
			require.Equal(t, http.StatusBadRequest, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, response.ErrValidation, body.Code)
			assert.Contains(t, body.Fields, tt.field)
		})
	}

	w := serve(http.MethodPost, "/attempts/:attempt_id/extensions", "/attempts/x/extensions", `{"extension_minutes":5}`, admin, h.GrantExtension)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, response.ErrInvalidID, decodeError(t, w).Code)
}

func TestListViolationsRejectsUnknownType(t *testing.T) {
	h := NewViolationHandler(nil)
	target := fmt.Sprintf("/attempts/%s/violations?type=daydreaming", uuid.New())

	w := serve(http.MethodGet, "/attempts/:attempt_id/violations", target, "", nil, h.ListViolations)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, response.ErrValidation, body.Code)
	assert.Equal(t, "type must be a known violation type", body.Fields["type"])

	w = serve(http.MethodGet, "/exams/:exam_id/violations/counts", "/exams/nope/violations/counts", "", nil, h.CountViolations)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFailAttemptStatusMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrExamNotFound, http.StatusNotFound, response.ErrExamNotFound},
		{service.ErrAttemptNotFound, http.StatusNotFound, response.ErrAttemptNotFound},
		{service.ErrStudentNotFound, http.StatusForbidden, response.ErrStudentNotFound},
		{service.ErrExamNotAvailable, http.StatusBadRequest, response.ErrExamNotAvailable},
		{fmt.Errorf("grant: %w", service.ErrAlreadySubmitted), http.StatusConflict, response.ErrAlreadySubmitted},
		{errors.New("connection reset"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			failAttempt(c, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeError(t, w).Code)
		})
	}
}

func TestSessionErrorCodes(t *testing.T) {
	assert.Equal(t, response.ErrSessionActive, openErrorCode(service.ErrSessionActive))
	assert.Equal(t, response.ErrAlreadySubmitted, openErrorCode(service.ErrAlreadySubmitted))
	assert.Equal(t, response.ErrInternal, openErrorCode(errors.New("boom")))

	assert.Equal(t, response.ErrSessionNotRunning, actionErrorCode(fmt.Errorf("answer: %w", proctor.ErrSessionNotRunning)))
	assert.Equal(t, response.ErrUnknownQuestion, actionErrorCode(proctor.ErrUnknownQuestion))
	assert.Equal(t, response.ErrInvalidPayload, actionErrorCode(proctor.ErrQuestionIndex))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 42s", formatDuration(42*time.Second))
	assert.Equal(t, "2h 5m 0s", formatDuration(2*time.Hour+5*time.Minute))
	assert.Equal(t, "1d 1h 0m 3s", formatDuration(25*time.Hour+3*time.Second))
}
