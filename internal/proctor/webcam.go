package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// WebcamController owns the camera stream of one session.
type WebcamController struct {
	devices  MediaDevices
	logger   *ViolationLogger
	notifier Notifier
	state    *State
	cfg      Config
	log      zerolog.Logger

	mu         sync.Mutex
	stream     MediaStream
	sink       VideoSink
	lastErr    error
	stopTicker context.CancelFunc
}

// NewWebcamController creates a WebcamController.
func NewWebcamController(devices MediaDevices, logger *ViolationLogger, notifier Notifier, state *State, cfg Config, log zerolog.Logger) *WebcamController {
	return &WebcamController{
		devices:  devices,
		logger:   logger,
		notifier: notifier,
		state:    state,
		cfg:      cfg,
		log:      log.With().Str("component", "webcam").Logger(),
	}
}

// Acquire requests the camera. On failure it records a webcam_error
// violation, warns the student and returns nil.
func (w *WebcamController) Acquire(ctx context.Context) MediaStream {
	stream, err := w.devices.GetUserMedia(ctx, DefaultConstraints)
	if err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()

		w.log.Warn().Err(err).Str("attempt_id", w.cfg.AttemptID.String()).Msg("Webcam access denied")
		w.logger.Log(ctx, w.cfg, ViolationWebcamError, "Webcam access error: "+err.Error(), nil)
		w.notifier.Notify(Notice{
			Level:   NoticeWarning,
			Title:   "Webcam Required",
			Message: "Please allow webcam access for proctoring. Your exam will continue without it.",
		})
		return nil
	}

	w.mu.Lock()
	prev := w.stream
	w.stream = stream
	w.lastErr = nil
	sink := w.sink
	w.mu.Unlock()

	if prev != nil && prev != stream {
		stopTracks(prev)
	}
	w.state.setStreamActive(true)
	if sink != nil {
		w.play(sink, stream)
	}
	return stream
}

// AttachSink binds the preview sink. A new sink starts playing the active
// stream right away; attaching the same sink again does nothing.
func (w *WebcamController) AttachSink(sink VideoSink) {
	w.mu.Lock()
	same := w.sink == sink
	w.sink = sink
	stream := w.stream
	w.mu.Unlock()

	if same || sink == nil || stream == nil {
		return
	}
	w.play(sink, stream)
}

func (w *WebcamController) play(sink VideoSink, stream MediaStream) {
	if err := sink.Play(stream); err != nil {
		w.log.Warn().Err(err).Msg("Video sink playback failed")
	}
}

// FrameSource returns the attached sink, or nil.
func (w *WebcamController) FrameSource() FrameSource {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.sink == nil {
		return nil
	}
	return w.sink
}

// Stream returns the active stream, or nil.
func (w *WebcamController) Stream() MediaStream {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream
}

// Err returns the last acquisition error.
func (w *WebcamController) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// StartPeriodic runs fn every interval until Release. Only one schedule runs
// at a time. fn must check session state itself: a tick may already be
// running when Release cancels the schedule.
func (w *WebcamController) StartPeriodic(interval time.Duration, fn func(ctx context.Context)) {
	w.mu.Lock()
	if w.stopTicker != nil {
		w.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.stopTicker = cancel
	w.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn(ctx)
			}
		}
	}()
}

// Release stops every track and the periodic schedule. Safe to call more
// than once.
func (w *WebcamController) Release() {
	w.mu.Lock()
	stream := w.stream
	w.stream = nil
	stop := w.stopTicker
	w.stopTicker = nil
	w.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream != nil {
		stopTracks(stream)
		w.state.setStreamActive(false)
		w.log.Debug().Str("attempt_id", w.cfg.AttemptID.String()).Msg("Webcam released")
	}
}

func stopTracks(stream MediaStream) {
	for _, t := range stream.Tracks() {
		t.Stop()
	}
}
