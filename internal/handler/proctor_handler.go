package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/middleware"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
	ws "github.com/kingsley805-tech/edumanageschools-sub001/internal/websocket"
)

const sessionCloseTimeout = 10 * time.Second

// ProctorHandler serves the proctored exam WebSocket.
type ProctorHandler struct {
	proctorService *service.ProctorService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewProctorHandler creates a new ProctorHandler.
func NewProctorHandler(proctorService *service.ProctorService, log zerolog.Logger, allowedOrigins []string) *ProctorHandler {
	return &ProctorHandler{
		proctorService: proctorService,
		log:            log.With().Str("component", "proctor_handler").Logger(),
		upgrader:       ws.NewUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/v1/student/attempts/:attempt_id/proctor
// Runs the proctored session for one attempt. The browser acts as the
// capability provider for fullscreen, camera and DOM events.
func (h *ProctorHandler) ProctorStream(c *gin.Context) {
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

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	wsLog := h.log.With().
		Str("user_id", claims.UserID.String()).
		Str("attempt_id", attemptID.String()).
		Logger()

	bridge := ws.NewBridge(conn, wsLog)
	bridge.Start()
	defer bridge.Close()

	// Arming waits on browser replies, so the pumps run before Open.
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go func() {
		select {
		case <-bridge.Done():
			cancel()
		case <-ctx.Done():
		}
	}()

	session, err := h.proctorService.Open(ctx, attemptID, claims.UserID, service.SessionPorts{
		Events:    bridge,
		Display:   bridge,
		Devices:   bridge,
		Video:     bridge,
		Notifier:  bridge,
		OnOutcome: bridge.SendOutcome,
		OnTick:    bridge.SendTick,
		OnResult:  bridge.SendResult,
	})
	if err != nil {
		code := openErrorCode(err)
		if code == response.ErrInternal {
			wsLog.Error().Err(err).Msg("Failed to open proctor session")
		}
		_ = bridge.SendError(string(code), response.GetMessage(code), "")
		bridge.Flush(time.Second)
		return
	}
	defer func() {
		closeCtx, done := context.WithTimeout(context.Background(), sessionCloseTimeout)
		defer done()
		session.Close(closeCtx)
	}()

	wsLog.Info().Str("exam_id", session.Exam.ID.String()).Msg("Student connected to proctor stream")
	h.sendState(bridge, session)

	for {
		select {
		case <-bridge.Done():
			wsLog.Info().Msg("Student disconnected from proctor stream")
			return
		case <-ctx.Done():
			wsLog.Info().Msg("Proctor stream closed by server")
			return
		case msg := <-bridge.Actions():
			h.handleAction(ctx, bridge, session, msg)
		}
	}
}

func (h *ProctorHandler) handleAction(ctx context.Context, bridge *ws.Bridge, session *service.LiveSession, msg ws.ClientMessage) {
	switch msg.Action {
	case ws.ActionAnswer, ws.ActionFlag:
		qid, err := uuid.Parse(msg.QuestionID)
		if err != nil {
			h.sendActionError(bridge, response.ErrInvalidID, msg.RequestID)
			return
		}
		if msg.Action == ws.ActionAnswer {
			err = session.Answer(ctx, qid, msg.Answer)
		} else {
			_, err = session.ToggleFlag(ctx, qid)
		}
		if err != nil {
			h.sendActionError(bridge, actionErrorCode(err), msg.RequestID)
			return
		}
		h.sendState(bridge, session)

	case ws.ActionNavigate:
		if err := session.Navigate(msg.Index); err != nil {
			h.sendActionError(bridge, actionErrorCode(err), msg.RequestID)
			return
		}
		h.sendState(bridge, session)

	case ws.ActionSubmit:
		// The result is pushed through OnResult.
		if _, err := session.Submit(ctx); err != nil {
			code := actionErrorCode(err)
			if code == response.ErrInternal {
				h.log.Error().Err(err).Str("attempt_id", session.Attempt.ID.String()).Msg("Manual submission failed")
			}
			h.sendActionError(bridge, code, msg.RequestID)
		}
	}
}

type sessionView struct {
	Current int              `json:"current"`
	Answers []proctor.Answer `json:"answers"`
}

func (h *ProctorHandler) sendState(bridge *ws.Bridge, session *service.LiveSession) {
	_ = bridge.SendState(session.State().Snapshot(), sessionView{
		Current: session.Current(),
		Answers: session.Answers(),
	})
}

func (h *ProctorHandler) sendActionError(bridge *ws.Bridge, code response.ErrCode, requestID string) {
	_ = bridge.SendError(string(code), response.GetMessage(code), requestID)
}

func openErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, service.ErrAttemptNotFound):
		return response.ErrAttemptNotFound
	case errors.Is(err, service.ErrStudentNotFound):
		return response.ErrStudentNotFound
	case errors.Is(err, service.ErrExamNotFound):
		return response.ErrExamNotFound
	case errors.Is(err, service.ErrAlreadySubmitted):
		return response.ErrAlreadySubmitted
	case errors.Is(err, service.ErrSessionActive):
		return response.ErrSessionActive
	default:
		return response.ErrInternal
	}
}

func actionErrorCode(err error) response.ErrCode {
	switch {
	case errors.Is(err, proctor.ErrSessionNotRunning):
		return response.ErrSessionNotRunning
	case errors.Is(err, proctor.ErrUnknownQuestion):
		return response.ErrUnknownQuestion
	case errors.Is(err, proctor.ErrQuestionIndex):
		return response.ErrInvalidPayload
	default:
		return response.ErrInternal
	}
}
