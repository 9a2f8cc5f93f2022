package proctor

import (
	"sync"

	"github.com/rs/zerolog"
)

// EventKind identifies a client-side event.
type EventKind string

const (
	EventVisibilityChange EventKind = "visibility_change"
	EventWindowBlur       EventKind = "window_blur"
	EventContextMenu      EventKind = "context_menu"
	EventKeyDown          EventKind = "key_down"
	EventFullscreenChange EventKind = "fullscreen_change"
)

// Event is a DOM event forwarded by the student's browser.
type Event struct {
	Kind       EventKind `json:"kind"`
	Hidden     bool      `json:"hidden,omitempty"`
	Fullscreen bool      `json:"fullscreen,omitempty"`
	Key        string    `json:"key,omitempty"`
	Ctrl       bool      `json:"ctrl,omitempty"`
	Meta       bool      `json:"meta,omitempty"`
	Shift      bool      `json:"shift,omitempty"`
	Alt        bool      `json:"alt,omitempty"`
}

// Bus fans client events out to subscribers. Slow subscribers lose events
// rather than blocking the publisher.
type Bus struct {
	mu     sync.Mutex
	subs   map[chan Event]struct{}
	closed bool
	depth  int
	log    zerolog.Logger
}

// NewBus constructs a Bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		depth: 64,
		log:   log.With().Str("component", "proctor_bus").Logger(),
	}
}

// Subscribe registers a subscriber and returns its channel and cancel func.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.subs[ch]
			delete(b.subs, ch)
			b.mu.Unlock()
			if ok {
				close(ch)
			}
		})
	}
}

// Publish delivers ev to every subscriber.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	dropped := 0
	for sub := range b.subs {
		select {
		case sub <- ev:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.log.Warn().Str("kind", string(ev.Kind)).Int("dropped", dropped).Msg("Event dropped, subscriber full")
	}
}

// Close ends every subscription.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub)
		delete(b.subs, sub)
	}
}
