package websocket

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/response"
)

var (
	ErrBridgeClosed = errors.New("connection closed")
	ErrNoFrame      = errors.New("no video frame received yet")
	ErrForeignMedia = errors.New("stream was not acquired through this connection")
)

const (
	// displayTimeout bounds a fullscreen round trip.
	displayTimeout = 15 * time.Second
	// mediaTimeout leaves room for the camera permission prompt.
	mediaTimeout = 60 * time.Second
)

// Bridge exposes the student's browser as proctor capabilities over one
// WebSocket. Session actions (answer, flag, navigate, submit) are handed to
// the caller through Actions.
type Bridge struct {
	conn    *websocket.Conn
	bus     *proctor.Bus
	send    chan []byte
	actions chan ClientMessage
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[string]chan ClientMessage
	frame   image.Image

	done      chan struct{}
	closeOnce sync.Once
}

// NewBridge wraps an upgraded connection. Call Start before using it.
func NewBridge(conn *websocket.Conn, log zerolog.Logger) *Bridge {
	return &Bridge{
		conn:    conn,
		bus:     proctor.NewBus(log),
		send:    make(chan []byte, 64),
		actions: make(chan ClientMessage, 32),
		log:     log.With().Str("component", "ws_bridge").Logger(),
		pending: make(map[string]chan ClientMessage),
		done:    make(chan struct{}),
	}
}

// Start runs the read and write pumps.
func (b *Bridge) Start() {
	go b.writePump()
	go b.readPump()
}

// Done is closed once the client is gone.
func (b *Bridge) Done() <-chan struct{} { return b.done }

// Actions delivers session actions in arrival order.
func (b *Bridge) Actions() <-chan ClientMessage { return b.actions }

// Close drops the connection.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		_ = b.conn.Close()
	})
}

// Flush waits until queued messages are handed to the connection, the
// client leaves, or timeout passes.
func (b *Bridge) Flush(timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for len(b.send) > 0 && time.Now().Before(deadline) {
		select {
		case <-b.done:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (b *Bridge) readPump() {
	defer func() {
		close(b.done)
		b.bus.Close()
		b.failPending()
		b.Close()
	}()

	b.conn.SetReadLimit(maxMessageSize)
	_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))
	b.conn.SetPongHandler(func(string) error {
		return b.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			if IsUnexpectedClose(err) {
				b.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				b.log.Debug().Msg("Connection closed")
			}
			return
		}
		_ = b.conn.SetReadDeadline(time.Now().Add(pongWait))

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			b.fail(response.ErrInvalidPayload, "")
			continue
		}
		b.dispatch(msg)
	}
}

func (b *Bridge) dispatch(msg ClientMessage) {
	switch msg.Action {
	case ActionEvent:
		if msg.Event == nil || msg.Event.Kind == "" {
			b.fail(response.ErrInvalidPayload, msg.RequestID)
			return
		}
		b.bus.Publish(*msg.Event)

	case ActionFrame:
		if err := b.storeFrame(msg.Data); err != nil {
			b.log.Debug().Err(err).Msg("Dropping undecodable frame")
		}

	case ActionMediaResult, ActionDisplayResult:
		b.resolve(msg)

	case ActionPing:
		_ = b.write(PongMessage{Event: EventPong})

	case ActionAnswer, ActionFlag, ActionNavigate, ActionSubmit:
		select {
		case b.actions <- msg:
		default:
			b.fail(response.ErrBusy, msg.RequestID)
		}

	default:
		b.fail(response.ErrUnknownAction, msg.RequestID)
	}
}

func (b *Bridge) fail(code response.ErrCode, requestID string) {
	_ = b.SendError(string(code), response.GetMessage(code), requestID)
}

func (b *Bridge) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		b.Close()
	}()
	for {
		select {
		case <-b.done:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = b.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-b.send:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				b.log.Debug().Err(err).Msg("Write failed")
				return
			}
		case <-ticker.C:
			_ = b.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := b.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// write queues one JSON message for the write pump.
func (b *Bridge) write(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	select {
	case <-b.done:
		return ErrBridgeClosed
	default:
	}
	select {
	case b.send <- data:
		return nil
	case <-b.done:
		return ErrBridgeClosed
	}
}

// call sends a command and waits for the client's reply to it.
func (b *Bridge) call(ctx context.Context, timeout time.Duration, cmd CommandMessage) (ClientMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd.Event = EventCommand
	cmd.RequestID = uuid.NewString()
	ch := make(chan ClientMessage, 1)

	b.mu.Lock()
	b.pending[cmd.RequestID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, cmd.RequestID)
		b.mu.Unlock()
	}()

	if err := b.write(cmd); err != nil {
		return ClientMessage{}, err
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return ClientMessage{}, ErrBridgeClosed
		}
		if reply.Error != "" {
			return reply, errors.New(reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return ClientMessage{}, fmt.Errorf("%s: %w", cmd.Command, ctx.Err())
	case <-b.done:
		return ClientMessage{}, ErrBridgeClosed
	}
}

func (b *Bridge) resolve(msg ClientMessage) {
	b.mu.Lock()
	ch, ok := b.pending[msg.RequestID]
	delete(b.pending, msg.RequestID)
	b.mu.Unlock()
	if !ok {
		b.log.Debug().Str("request_id", msg.RequestID).Msg("Reply for unknown request")
		return
	}
	ch <- msg
}

func (b *Bridge) failPending() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.pending {
		close(ch)
		delete(b.pending, id)
	}
}

func (b *Bridge) storeFrame(data string) error {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return fmt.Errorf("decode base64: %w", err)
	}
	img, err := jpeg.Decode(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("decode jpeg: %w", err)
	}
	b.mu.Lock()
	b.frame = img
	b.mu.Unlock()
	return nil
}

// ─── proctor.EventSource ────────────────────────────────────────────

// Subscribe implements proctor.EventSource.
func (b *Bridge) Subscribe() (<-chan proctor.Event, func()) {
	return b.bus.Subscribe()
}

// ─── proctor.Display ────────────────────────────────────────────────

// RequestFullscreen implements proctor.Display.
func (b *Bridge) RequestFullscreen(ctx context.Context) error {
	_, err := b.call(ctx, displayTimeout, CommandMessage{Command: CommandRequestFullscreen})
	return err
}

// ExitFullscreen implements proctor.Display.
func (b *Bridge) ExitFullscreen(ctx context.Context) error {
	_, err := b.call(ctx, displayTimeout, CommandMessage{Command: CommandExitFullscreen})
	return err
}

// ─── proctor.MediaDevices / VideoSink ───────────────────────────────

type remoteTrack struct {
	b        *Bridge
	streamID string
	id       string
	once     sync.Once
}

// Stop tells the browser to stop the track. Repeated calls send nothing.
func (t *remoteTrack) Stop() {
	t.once.Do(func() {
		_ = t.b.write(CommandMessage{
			Event:    EventCommand,
			Command:  CommandStopTrack,
			StreamID: t.streamID,
			TrackID:  t.id,
		})
	})
}

type remoteStream struct {
	id     string
	tracks []*remoteTrack
}

func (s *remoteStream) Tracks() []proctor.MediaTrack {
	out := make([]proctor.MediaTrack, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

// GetUserMedia implements proctor.MediaDevices. The browser replies with
// the stream id and its track ids, or with the DOMException text.
func (b *Bridge) GetUserMedia(ctx context.Context, c proctor.Constraints) (proctor.MediaStream, error) {
	reply, err := b.call(ctx, mediaTimeout, CommandMessage{Command: CommandGetUserMedia, Constraints: &c})
	if err != nil {
		return nil, err
	}
	if reply.StreamID == "" {
		return nil, errors.New("client returned no stream")
	}
	s := &remoteStream{id: reply.StreamID}
	for _, id := range reply.Tracks {
		s.tracks = append(s.tracks, &remoteTrack{b: b, streamID: reply.StreamID, id: id})
	}
	return s, nil
}

// Play implements proctor.VideoSink: the browser previews the stream and
// starts sending frames.
func (b *Bridge) Play(stream proctor.MediaStream) error {
	s, ok := stream.(*remoteStream)
	if !ok {
		return ErrForeignMedia
	}
	return b.write(CommandMessage{Event: EventCommand, Command: CommandPlayStream, StreamID: s.id})
}

// Frame implements proctor.FrameSource with the latest frame received.
func (b *Bridge) Frame() (image.Image, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.frame == nil {
		return nil, ErrNoFrame
	}
	return b.frame, nil
}

// ─── proctor.Notifier and session output ────────────────────────────

// Notify implements proctor.Notifier.
func (b *Bridge) Notify(n proctor.Notice) {
	if err := b.write(NoticeMessage{Event: EventNotice, Notice: n}); err != nil {
		b.log.Debug().Err(err).Str("title", n.Title).Msg("Notice not delivered")
	}
}

// SendOutcome tells the client how to treat an event it reported.
func (b *Bridge) SendOutcome(ev proctor.Event, out proctor.Outcome) {
	_ = b.write(OutcomeMessage{Event: EventOutcome, Kind: ev.Kind, Outcome: out})
}

// SendTick pushes the countdown.
func (b *Bridge) SendTick(remaining int) {
	_ = b.write(TickMessage{Event: EventTick, RemainingSeconds: remaining})
}

// SendState pushes a state snapshot, with optional extra data.
func (b *Bridge) SendState(st proctor.SessionState, data any) error {
	return b.write(StateMessage{Event: EventState, State: st, Data: data})
}

// SendResult pushes the submission result.
func (b *Bridge) SendResult(r proctor.Result) {
	_ = b.write(ResultMessage{Event: EventResult, Result: r})
}

// SendError reports a failed action.
func (b *Bridge) SendError(code, msg, requestID string) error {
	return b.write(ErrorMessage{Event: EventError, Code: code, Error: msg, RequestID: requestID})
}
