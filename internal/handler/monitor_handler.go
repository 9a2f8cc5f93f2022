package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorHandler streams proctoring activity of an exam to administrators.
type MonitorHandler struct {
	rdb            *redis.Client
	attemptService *service.AttemptService
	monitorService *service.MonitorService
	log            zerolog.Logger
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(
	rdb *redis.Client,
	attemptService *service.AttemptService,
	monitorService *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:            rdb,
		attemptService: attemptService,
		monitorService: monitorService,
		log:            log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorExamSSE godoc
// GET /api/v1/admin/exams/:exam_id/monitor
// Sends an overview snapshot, then relays violation, join, leave and submit
// events as they happen.
func (h *MonitorHandler) MonitorExamSSE(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	reqCtx := c.Request.Context()
	exam, err := h.attemptService.GetExam(reqCtx, examID)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrExamNotFound)
		} else {
			response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		}
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendOverview(c, reqCtx, exam, "snapshot")

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.ExamMonitorChannel(examID))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Skip refreshes until something has happened.
	active := false

	h.log.Info().Str("exam_id", examID.String()).Msg("Admin attached to live monitor SSE")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Str("exam_id", examID.String()).Msg("Admin disconnected from live monitor SSE")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Payloads are already JSON monitor events.
			writeSSE(c, []byte(msg.Payload))
			active = true

		case <-refreshTicker.C:
			if !active {
				continue
			}
			h.sendOverview(c, reqCtx, exam, "refresh")

		case <-keepAliveTicker.C:
			writeSSE(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendOverview(c *gin.Context, parent context.Context, exam *model.OnlineExam, kind string) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	overview, err := h.monitorService.GetExamOverview(ctx, exam.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to build monitor overview")
		return
	}

	c.SSEvent("message", gin.H{
		"type": kind,
		"data": gin.H{
			"exam": gin.H{
				"id":                 exam.ID.String(),
				"title":              exam.Title,
				"duration":           exam.DurationMinutes,
				"proctoring_enabled": exam.ProctoringEnabled,
				"tab_switch_limit":   exam.TabSwitchLimit,
			},
			"overview": overview,
		},
	})
	c.Writer.Flush()
}

func writeSSE(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
