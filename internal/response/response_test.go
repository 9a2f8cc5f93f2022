package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) { Fail(c, http.StatusNotFound, ErrAttemptNotFound) })

	tests := []struct {
		name   string
		header string
		keep   bool
	}{
		{name: "generated when absent", header: ""},
		{name: "caller id kept", header: "trace-42.a_b", keep: true},
		{name: "unsafe characters replaced", header: "evil\"id"},
		{name: "overlong id replaced", header: strings.Repeat("a", 65)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			got := w.Header().Get(HeaderRequestID)
			assert.Equal(t, got, body.Metadata.RequestID)
			if tt.keep {
				assert.Equal(t, tt.header, got)
			} else {
				_, err := uuid.Parse(got)
				assert.NoError(t, err)
			}

			require.NotNil(t, body.Error)
			assert.Equal(t, ErrAttemptNotFound, body.Error.Code)
			assert.Equal(t, GetMessage(ErrAttemptNotFound), body.Error.Message)
			assert.Nil(t, body.Data)
		})
	}
}

func TestNewPagination(t *testing.T) {
	assert.Equal(t, &Pagination{Page: 1, PerPage: 20, TotalItems: 0, TotalPages: 0}, NewPagination(1, 20, 0))
	assert.Equal(t, &Pagination{Page: 2, PerPage: 20, TotalItems: 41, TotalPages: 3}, NewPagination(2, 20, 41))
	assert.Equal(t, 2, NewPagination(1, 20, 40).TotalPages)
	assert.Equal(t, 0, NewPagination(1, 0, 10).TotalPages)
}

func TestAbortFailStopsChain(t *testing.T) {
	r := gin.New()
	reached := false
	r.GET("/",
		func(c *gin.Context) {
			AbortFail(c, http.StatusUnauthorized, ErrTokenRequired)
		},
		func(c *gin.Context) { reached = true },
	)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.False(t, reached)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Metadata.RequestID)
}
