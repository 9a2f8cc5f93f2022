package proctor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/metrics"
)

// MonitorDeps are the collaborators of an IntegrityMonitor.
type MonitorDeps struct {
	Events   EventSource
	Display  Display
	Devices  MediaDevices
	Storage  ObjectStorage
	Sink     ViolationSink
	Notifier Notifier
	// State is shared with the session controller. A fresh one is created
	// when nil.
	State *State
	// BlurGrace ignores window_blur right after a fullscreen request.
	// Zero means DefaultBlurGrace, negative disables it.
	BlurGrace time.Duration
	// OnOutcome, when set, receives the result of every handled event.
	OnOutcome func(Event, Outcome)
	Logger    zerolog.Logger
}

// Outcome tells the client how to treat the event it reported.
type Outcome struct {
	Suppress  bool          `json:"suppress"`
	Violation ViolationType `json:"violation,omitempty"`
}

// IntegrityMonitor watches one proctored session.
type IntegrityMonitor struct {
	cfg        Config
	state      *State
	events     EventSource
	notifier   Notifier
	violations *ViolationLogger
	capturer   *SnapshotCapturer
	webcam     *WebcamController
	fullscreen *FullscreenController
	blurGrace  time.Duration
	onOutcome  func(Event, Outcome)
	log        zerolog.Logger

	mu          sync.Mutex
	unsubscribe func()
	stopLoop    context.CancelFunc
	loopDone    chan struct{}

	breach     chan struct{}
	breachOnce sync.Once
}

// NewIntegrityMonitor wires the monitor and its controllers. Nothing is
// acquired until Arm.
func NewIntegrityMonitor(cfg Config, deps MonitorDeps) *IntegrityMonitor {
	state := deps.State
	if state == nil {
		state = NewState(0, 0)
	}
	log := deps.Logger.With().
		Str("component", "integrity_monitor").
		Str("attempt_id", cfg.AttemptID.String()).
		Logger()

	grace := deps.BlurGrace
	if grace == 0 {
		grace = DefaultBlurGrace
	}

	violations := NewViolationLogger(deps.Sink, deps.Logger)
	return &IntegrityMonitor{
		cfg:        cfg,
		state:      state,
		events:     deps.Events,
		notifier:   deps.Notifier,
		violations: violations,
		capturer:   NewSnapshotCapturer(deps.Storage, cfg, deps.Logger),
		webcam:     NewWebcamController(deps.Devices, violations, deps.Notifier, state, cfg, deps.Logger),
		fullscreen: NewFullscreenController(deps.Display, state, deps.Notifier, deps.Logger),
		blurGrace:  grace,
		onOutcome:  deps.OnOutcome,
		log:        log,
		breach:     make(chan struct{}),
	}
}

// Breach is closed once the tab-switch budget is exhausted.
func (m *IntegrityMonitor) Breach() <-chan struct{} { return m.breach }

// State returns the shared session state.
func (m *IntegrityMonitor) State() *State { return m.state }

// Webcam returns the webcam controller.
func (m *IntegrityMonitor) Webcam() *WebcamController { return m.webcam }

// Fullscreen returns the fullscreen controller.
func (m *IntegrityMonitor) Fullscreen() *FullscreenController { return m.fullscreen }

// Arm subscribes to client events and acquires the required capabilities.
// A disabled config leaves the monitor idle.
func (m *IntegrityMonitor) Arm(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}

	m.mu.Lock()
	if !m.state.arm() {
		m.mu.Unlock()
		return
	}
	ch, unsubscribe := m.events.Subscribe()
	loopCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	m.unsubscribe = unsubscribe
	m.stopLoop = stop
	m.loopDone = make(chan struct{})
	go m.run(loopCtx, ch, m.loopDone)
	m.mu.Unlock()

	m.log.Info().
		Bool("fullscreen", m.cfg.FullscreenRequired).
		Bool("webcam", m.cfg.WebcamRequired).
		Int("tab_switch_limit", m.cfg.TabSwitchLimit).
		Msg("Proctoring armed")

	if m.cfg.FullscreenRequired {
		_ = m.fullscreen.Enter(ctx)
	}
	if m.cfg.WebcamRequired {
		if stream := m.webcam.Acquire(ctx); stream != nil {
			if !m.state.monitoring() {
				// Disarmed while the camera prompt was open.
				m.webcam.Release()
				return
			}
			m.webcam.StartPeriodic(m.cfg.snapshotInterval(), m.periodicSnapshot)
		}
	}
}

// Activate marks the session as running so periodic evidence is collected.
func (m *IntegrityMonitor) Activate() {
	m.state.activate()
}

// Disarm releases every subscription and capability. It is idempotent.
func (m *IntegrityMonitor) Disarm(ctx context.Context) {
	if !m.state.tearDown() {
		return
	}

	m.mu.Lock()
	unsubscribe, stop, done := m.unsubscribe, m.stopLoop, m.loopDone
	m.unsubscribe, m.stopLoop = nil, nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if stop != nil {
		stop()
	}
	m.webcam.Release()
	_ = m.fullscreen.Exit(ctx)

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
		}
	}
	m.violations.Wait(ctx)
	m.log.Info().Msg("Proctoring torn down")
}

func (m *IntegrityMonitor) run(ctx context.Context, ch <-chan Event, done chan struct{}) {
	defer close(done)
	for ev := range ch {
		out := m.HandleEvent(ctx, ev)
		if m.onOutcome != nil {
			m.onOutcome(ev, out)
		}
	}
}

// HandleEvent classifies one client event. Events arriving outside the
// armed and active phases are ignored.
func (m *IntegrityMonitor) HandleEvent(ctx context.Context, ev Event) Outcome {
	if !m.state.monitoring() {
		return Outcome{}
	}

	switch ev.Kind {
	case EventFullscreenChange:
		prev := m.fullscreen.Observe(ev.Fullscreen)
		if m.cfg.FullscreenRequired && prev && !ev.Fullscreen {
			m.record(ctx, ViolationFullscreenExit, "Exited fullscreen mode", nil)
			m.notifier.Notify(Notice{
				Level:   NoticeWarning,
				Title:   "Fullscreen Required",
				Message: "Please return to fullscreen mode. This has been recorded.",
			})
			return Outcome{Violation: ViolationFullscreenExit}
		}

	case EventVisibilityChange:
		if ev.Hidden {
			m.handleTabSwitch(ctx)
			return Outcome{Violation: ViolationTabSwitch}
		}

	case EventWindowBlur:
		if m.cfg.FullscreenRequired && m.blurGrace > 0 && m.fullscreen.requestedWithin(m.blurGrace) {
			m.log.Debug().Msg("Ignoring blur during fullscreen prompt")
			return Outcome{}
		}
		m.record(ctx, ViolationWindowBlur, "Window lost focus", nil)
		return Outcome{Violation: ViolationWindowBlur}

	case EventContextMenu:
		m.record(ctx, ViolationRightClick, "Right-click attempted", nil)
		return Outcome{Suppress: true, Violation: ViolationRightClick}

	case EventKeyDown:
		return m.handleKey(ctx, ev)
	}
	return Outcome{}
}

func (m *IntegrityMonitor) handleKey(ctx context.Context, ev Event) Outcome {
	act := classifyKey(ev)
	switch {
	case act.escape:
		if !m.cfg.FullscreenRequired {
			return Outcome{}
		}
		m.notifier.Notify(Notice{
			Level:   NoticeWarning,
			Title:   "Stay in Fullscreen",
			Message: "Exiting fullscreen is not allowed during this exam.",
		})
		return Outcome{Suppress: true}

	case act.violation == ViolationCopyAttempt:
		m.record(ctx, act.violation, "Copy/paste attempt: "+act.combo, nil)
		return Outcome{Suppress: true, Violation: act.violation}

	case act.violation == ViolationDevTools:
		m.record(ctx, act.violation, "Developer tools attempt: "+act.combo, nil)
		return Outcome{Suppress: true, Violation: act.violation}
	}
	return Outcome{}
}

// handleTabSwitch captures evidence before writing the record so the
// record always carries the reference when one exists.
func (m *IntegrityMonitor) handleTabSwitch(ctx context.Context) {
	count := m.state.addTabSwitch()
	limit := m.cfg.TabSwitchLimit

	var evidence *string
	if m.cfg.WebcamRequired {
		if path, ok := m.capturer.Capture(ctx, m.webcam.FrameSource()); ok {
			evidence = &path
			m.state.addSnapshot()
		}
	}

	desc := fmt.Sprintf("Tab switch detected (%d)", count)
	if limit > 0 {
		desc = fmt.Sprintf("Tab switch detected (%d/%d)", count, limit)
	}
	m.record(ctx, ViolationTabSwitch, desc, evidence)

	switch {
	case limit > 0 && count >= limit:
		m.notifier.Notify(Notice{
			Level:   NoticeError,
			Title:   "Tab Switch Limit Reached",
			Message: "You have exceeded the allowed tab switches. Your exam is being submitted.",
		})
		m.signalBreach(count)
	case limit > 0:
		m.notifier.Notify(Notice{
			Level:   NoticeWarning,
			Title:   "Tab Switch Detected",
			Message: fmt.Sprintf("Warning %d of %d. Your exam will be submitted automatically at the limit.", count, limit),
		})
	default:
		m.notifier.Notify(Notice{
			Level:   NoticeWarning,
			Title:   "Tab Switch Detected",
			Message: "Leaving the exam tab is recorded.",
		})
	}
}

func (m *IntegrityMonitor) signalBreach(count int) {
	m.breachOnce.Do(func() {
		metrics.AutoSubmitsTotal.Inc()
		m.log.Warn().Int("tab_switches", count).Msg("Tab switch budget exhausted")
		close(m.breach)
	})
}

// periodicSnapshot runs on the webcam ticker. The phase is checked before
// and after the capture because teardown can race with a pending tick.
func (m *IntegrityMonitor) periodicSnapshot(ctx context.Context) {
	if m.state.monitorPhase() != MonitorActive {
		return
	}
	path, ok := m.capturer.Capture(ctx, m.webcam.FrameSource())
	if !ok || m.state.monitorPhase() != MonitorActive {
		return
	}
	m.state.addSnapshot()
	m.violations.Log(ctx, m.cfg, ViolationPeriodicSnapshot, "Periodic webcam snapshot", &path)
}

func (m *IntegrityMonitor) record(ctx context.Context, typ ViolationType, desc string, evidence *string) {
	rec := m.violations.Log(ctx, m.cfg, typ, desc, evidence)
	m.state.appendViolation(rec.CreatedAt, desc)
}
