package websocket

import (
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionEvent         Action = "event"
	ActionFrame         Action = "frame"
	ActionMediaResult   Action = "media_result"
	ActionDisplayResult Action = "display_result"
	ActionAnswer        Action = "answer"
	ActionFlag          Action = "flag"
	ActionNavigate      Action = "navigate"
	ActionSubmit        Action = "submit"
	ActionPing          Action = "ping"
)

// ClientMessage is every message the browser sends. Only the fields of the
// given action are set.
type ClientMessage struct {
	Action    Action `json:"action"`
	RequestID string `json:"request_id,omitempty"`

	// event
	Event *proctor.Event `json:"event,omitempty"`

	// frame: base64 JPEG of the current preview
	Data string `json:"data,omitempty"`

	// media_result
	StreamID string   `json:"stream_id,omitempty"`
	Tracks   []string `json:"tracks,omitempty"`

	// media_result, display_result
	Error string `json:"error,omitempty"`

	// answer, flag
	QuestionID string `json:"question_id,omitempty"`
	Answer     string `json:"answer,omitempty"`

	// navigate
	Index int `json:"index,omitempty"`
}

// ─── Commands (Server → Client) ─────────────────────────────────────

type Command string

const (
	CommandRequestFullscreen Command = "request_fullscreen"
	CommandExitFullscreen    Command = "exit_fullscreen"
	CommandGetUserMedia      Command = "get_user_media"
	CommandPlayStream        Command = "play_stream"
	CommandStopTrack         Command = "stop_track"
)

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventCommand Event = "command"
	EventOutcome Event = "outcome"
	EventNotice  Event = "notice"
	EventTick    Event = "tick"
	EventState   Event = "state"
	EventResult  Event = "result"
	EventError   Event = "error"
	EventPong    Event = "pong"
)

type CommandMessage struct {
	Event       Event                `json:"event"`
	Command     Command              `json:"command"`
	RequestID   string               `json:"request_id,omitempty"`
	StreamID    string               `json:"stream_id,omitempty"`
	TrackID     string               `json:"track_id,omitempty"`
	Constraints *proctor.Constraints `json:"constraints,omitempty"`
}

type OutcomeMessage struct {
	Event   Event             `json:"event"`
	Kind    proctor.EventKind `json:"kind"`
	Outcome proctor.Outcome   `json:"outcome"`
}

type NoticeMessage struct {
	Event  Event          `json:"event"`
	Notice proctor.Notice `json:"notice"`
}

type TickMessage struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type StateMessage struct {
	Event Event                `json:"event"`
	State proctor.SessionState `json:"state"`
	Data  any                  `json:"data,omitempty"`
}

type ResultMessage struct {
	Event  Event          `json:"event"`
	Result proctor.Result `json:"result"`
}

type ErrorMessage struct {
	Event     Event  `json:"event"`
	Code      string `json:"code"`
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type PongMessage struct {
	Event Event `json:"event"`
}
