package proctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TimeExtensionPoller reports the total extension minutes granted to an
// attempt. It never applies them itself; the session computes the delta
// against its own baseline.
type TimeExtensionPoller struct {
	source    ExtensionSource
	attemptID uuid.UUID
	interval  time.Duration
	log       zerolog.Logger
}

// NewTimeExtensionPoller creates a poller. A non-positive interval means
// DefaultExtensionPollInterval.
func NewTimeExtensionPoller(source ExtensionSource, attemptID uuid.UUID, interval time.Duration, log zerolog.Logger) *TimeExtensionPoller {
	if interval <= 0 {
		interval = DefaultExtensionPollInterval
	}
	return &TimeExtensionPoller{
		source:    source,
		attemptID: attemptID,
		interval:  interval,
		log:       log.With().Str("component", "extension_poller").Logger(),
	}
}

// Fetch reads the current total once. ok is false when the source failed.
func (p *TimeExtensionPoller) Fetch(ctx context.Context) (total int, ok bool) {
	total, err := p.source.TotalExtensionMinutes(ctx, p.attemptID)
	if err != nil {
		p.log.Warn().Err(err).Str("attempt_id", p.attemptID.String()).Msg("Failed to fetch time extensions")
		return 0, false
	}
	return total, true
}

// Run sends the total on out every interval until ctx is done. A failed
// fetch is skipped; the next tick retries.
func (p *TimeExtensionPoller) Run(ctx context.Context, out chan<- int) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			total, ok := p.Fetch(ctx)
			if !ok {
				continue
			}
			select {
			case out <- total:
			case <-ctx.Done():
				return
			}
		}
	}
}
