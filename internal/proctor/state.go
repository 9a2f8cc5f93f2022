package proctor

import (
	"sync"
	"time"
)

// MonitorPhase is the IntegrityMonitor lifecycle.
type MonitorPhase string

const (
	MonitorIdle     MonitorPhase = "idle"
	MonitorArmed    MonitorPhase = "armed"
	MonitorActive   MonitorPhase = "active"
	MonitorTornDown MonitorPhase = "torn_down"
)

// SessionPhase is the ExamSessionController lifecycle.
type SessionPhase string

const (
	SessionNotStarted SessionPhase = "not_started"
	SessionInProgress SessionPhase = "in_progress"
	SessionSubmitting SessionPhase = "submitting"
	SessionSubmitted  SessionPhase = "submitted"
)

// SessionState is a point-in-time copy of everything a proctored session
// tracks in memory.
type SessionState struct {
	Monitor                 MonitorPhase `json:"monitor_phase"`
	Session                 SessionPhase `json:"session_phase"`
	Fullscreen              bool         `json:"fullscreen"`
	TabSwitches             int          `json:"tab_switches"`
	Violations              []string     `json:"violations"`
	StreamActive            bool         `json:"stream_active"`
	Snapshots               int          `json:"snapshots"`
	RemainingSeconds        int          `json:"remaining_seconds"`
	AppliedExtensionMinutes int          `json:"applied_extension_minutes"`
}

// State guards SessionState. Field owners: the monitor writes the phase,
// fullscreen, counters and violations; the webcam writes StreamActive; the
// session loop writes the session phase and time fields.
type State struct {
	mu sync.Mutex
	s  SessionState
}

// NewState returns a state in the idle / not_started phases.
func NewState(remainingSeconds, appliedExtensionMinutes int) *State {
	return &State{s: SessionState{
		Monitor:                 MonitorIdle,
		Session:                 SessionNotStarted,
		RemainingSeconds:        remainingSeconds,
		AppliedExtensionMinutes: appliedExtensionMinutes,
	}}
}

// Snapshot returns a copy safe to hand out.
func (st *State) Snapshot() SessionState {
	st.mu.Lock()
	defer st.mu.Unlock()
	out := st.s
	out.Violations = append([]string(nil), st.s.Violations...)
	return out
}

// ─── Monitor transitions ───────────────────────────────────────────────

func (st *State) arm() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Monitor != MonitorIdle {
		return false
	}
	st.s.Monitor = MonitorArmed
	return true
}

func (st *State) activate() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Monitor != MonitorArmed {
		return false
	}
	st.s.Monitor = MonitorActive
	return true
}

// tearDown reports whether the monitor held resources that must be released.
func (st *State) tearDown() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev := st.s.Monitor
	st.s.Monitor = MonitorTornDown
	return prev == MonitorArmed || prev == MonitorActive
}

func (st *State) monitorPhase() MonitorPhase {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Monitor
}

func (st *State) monitoring() bool {
	p := st.monitorPhase()
	return p == MonitorArmed || p == MonitorActive
}

func (st *State) setFullscreen(v bool) (prev bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	prev = st.s.Fullscreen
	st.s.Fullscreen = v
	return prev
}

func (st *State) fullscreen() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Fullscreen
}

func (st *State) addTabSwitch() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.TabSwitches++
	return st.s.TabSwitches
}

func (st *State) appendViolation(at time.Time, desc string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Violations = append(st.s.Violations, at.Format("15:04:05")+" "+desc)
	if n := len(st.s.Violations); n > maxRecentViolations {
		st.s.Violations = append([]string(nil), st.s.Violations[n-maxRecentViolations:]...)
	}
}

func (st *State) setStreamActive(v bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.StreamActive = v
}

func (st *State) addSnapshot() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Snapshots++
	return st.s.Snapshots
}

// ─── Session transitions ───────────────────────────────────────────────

func (st *State) startSession() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Session != SessionNotStarted {
		return false
	}
	st.s.Session = SessionInProgress
	return true
}

// beginSubmit is the re-entrancy guard of the submission routine.
func (st *State) beginSubmit() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Session != SessionInProgress {
		return false
	}
	st.s.Session = SessionSubmitting
	return true
}

func (st *State) abortSubmit() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Session == SessionSubmitting {
		st.s.Session = SessionInProgress
	}
}

func (st *State) finishSubmit() {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.s.Session = SessionSubmitted
}

func (st *State) sessionPhase() SessionPhase {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Session
}

// tick decrements the countdown. expired is true only on the tick that
// reaches zero.
func (st *State) tick() (remaining int, expired bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Session != SessionInProgress || st.s.RemainingSeconds <= 0 {
		return st.s.RemainingSeconds, false
	}
	st.s.RemainingSeconds--
	return st.s.RemainingSeconds, st.s.RemainingSeconds == 0
}

// applyExtensionTotal advances the baseline to total and returns the minutes
// newly added. Totals at or below the baseline change nothing.
func (st *State) applyExtensionTotal(total int) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.s.Session != SessionInProgress {
		return 0
	}
	delta := total - st.s.AppliedExtensionMinutes
	if delta <= 0 {
		return 0
	}
	st.s.RemainingSeconds += delta * 60
	st.s.AppliedExtensionMinutes += delta
	return delta
}

func (st *State) remaining() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.RemainingSeconds
}

func (st *State) appliedExtensionMinutes() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.AppliedExtensionMinutes
}
