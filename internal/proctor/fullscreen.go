package proctor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// FullscreenController drives the client's presentation mode.
type FullscreenController struct {
	display  Display
	state    *State
	notifier Notifier
	log      zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	requestedAt time.Time
}

// NewFullscreenController creates a FullscreenController.
func NewFullscreenController(display Display, state *State, notifier Notifier, log zerolog.Logger) *FullscreenController {
	return &FullscreenController{
		display:  display,
		state:    state,
		notifier: notifier,
		log:      log.With().Str("component", "fullscreen").Logger(),
		now:      time.Now,
	}
}

// Enter requests fullscreen. A denial is reported to the student and
// returned, but the session carries on.
func (f *FullscreenController) Enter(ctx context.Context) error {
	f.mu.Lock()
	f.requestedAt = f.now()
	f.mu.Unlock()

	if err := f.display.RequestFullscreen(ctx); err != nil {
		f.log.Warn().Err(err).Msg("Fullscreen request denied")
		f.notifier.Notify(Notice{
			Level:   NoticeWarning,
			Title:   "Fullscreen Required",
			Message: "Please allow fullscreen mode for this exam.",
		})
		return err
	}
	f.state.setFullscreen(true)
	return nil
}

// Exit leaves fullscreen if it is currently engaged.
func (f *FullscreenController) Exit(ctx context.Context) error {
	if !f.state.fullscreen() {
		return nil
	}
	f.state.setFullscreen(false)
	if err := f.display.ExitFullscreen(ctx); err != nil {
		f.log.Debug().Err(err).Msg("Exit fullscreen failed")
		return err
	}
	return nil
}

// Observe records a fullscreen change reported by the client and returns
// the previous value.
func (f *FullscreenController) Observe(fullscreen bool) bool {
	return f.state.setFullscreen(fullscreen)
}

// IsFullscreen reports the tracked state.
func (f *FullscreenController) IsFullscreen() bool {
	return f.state.fullscreen()
}

// requestedWithin reports whether a fullscreen request started less than d ago.
func (f *FullscreenController) requestedWithin(d time.Duration) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.requestedAt.IsZero() || d <= 0 {
		return false
	}
	return f.now().Sub(f.requestedAt) < d
}
