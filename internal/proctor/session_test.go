package proctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/metrics"
)

type sessionRig struct {
	q1, q2     Question
	attempts   *fakeAttempts
	extensions *fakeExtensions
	notifier   *fakeNotifier
	bus        *Bus
	sink       *fakeSink
	session    *ExamSessionController

	mu      sync.Mutex
	results []Result
	ticks   []int
}

func newSessionRig(t *testing.T, cfg Config, remaining int, tweak func(*SessionDeps)) *sessionRig {
	t.Helper()
	r := &sessionRig{
		q1:         Question{ID: uuid.New(), CorrectAnswer: "B", Marks: 5},
		q2:         Question{ID: uuid.New(), CorrectAnswer: "D", Marks: 3},
		attempts:   newFakeAttempts(),
		extensions: &fakeExtensions{},
		notifier:   &fakeNotifier{},
		bus:        NewBus(testLog),
		sink:       &fakeSink{},
	}
	deps := SessionDeps{
		Exam:       Exam{ID: uuid.New(), Title: "Physics", DurationMinutes: 60, ShowResultImmediately: true},
		Proctoring: cfg,
		Monitor: MonitorDeps{
			Events:    r.bus,
			Display:   &fakeDisplay{},
			Devices:   &fakeDevices{stream: newFakeStream()},
			Storage:   &fakeStorage{},
			Sink:      r.sink,
			Notifier:  r.notifier,
			BlurGrace: -1,
		},
		Attempts:              r.attempts,
		Questions:             fakeQuestions{r.q1, r.q2},
		Grades:                fakeGrades{bands: []GradeBand{{Grade: "A", MinScore: 90, MaxScore: 100}, {Grade: "D", MinScore: 50, MaxScore: 69}}},
		Extensions:            r.extensions,
		RemainingSeconds:      remaining,
		ExtensionPollInterval: time.Hour,
		OnResult: func(res Result) {
			r.mu.Lock()
			r.results = append(r.results, res)
			r.mu.Unlock()
		},
		OnTick: func(n int) {
			r.mu.Lock()
			r.ticks = append(r.ticks, n)
			r.mu.Unlock()
		},
		Logger: testLog,
	}
	if tweak != nil {
		tweak(&deps)
	}
	r.session = NewExamSessionController(deps)
	t.Cleanup(func() { r.session.Close(context.Background()) })
	return r
}

func (r *sessionRig) resultCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.results)
}

func TestSessionScenarioManualSubmit(t *testing.T) {
	cfg := testConfig()
	cfg.TabSwitchLimit = 3
	r := newSessionRig(t, cfg, 3600, nil)
	ctx := context.Background()

	require.NoError(t, r.session.Start(ctx))
	require.NoError(t, r.session.Answer(ctx, r.q1.ID, "B"))
	require.NoError(t, r.session.Answer(ctx, r.q2.ID, "A"))

	mon := r.session.Monitor()
	mon.HandleEvent(ctx, Event{Kind: EventVisibilityChange, Hidden: true})
	mon.HandleEvent(ctx, Event{Kind: EventVisibilityChange, Hidden: true})

	res, err := r.session.Submit(ctx)
	require.NoError(t, err)

	assert.Equal(t, SubmitManual, res.Reason)
	require.NotNil(t, res.Score)
	assert.Equal(t, 5.0, res.Score.Total)
	assert.Equal(t, 8.0, res.Score.MaxTotal)
	assert.InDelta(t, 62.5, res.Score.Percentage, 1e-9)
	require.NotNil(t, res.Score.Grade)
	assert.Equal(t, "D", *res.Score.Grade)

	st := r.session.State().Snapshot()
	assert.Equal(t, SessionSubmitted, st.Session)
	assert.Equal(t, MonitorTornDown, st.Monitor)
	assert.Equal(t, 2, st.TabSwitches)
	assert.False(t, breached(mon))

	subs := r.attempts.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, 5.0, subs[0].Total)
	assert.Equal(t, SubmitManual, subs[0].Reason)
	assert.Equal(t, map[uuid.UUID]float64{r.q1.ID: 5, r.q2.ID: 0}, r.attempts.marks)

	// Nothing runs after submission.
	assert.ErrorIs(t, r.session.Answer(ctx, r.q1.ID, "C"), ErrSessionNotRunning)
	_, err = r.session.Submit(ctx)
	assert.ErrorIs(t, err, ErrSessionNotRunning)
	assert.Len(t, r.attempts.submissions(), 1)
}

func TestSessionConcurrentSubmitsWriteOnce(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, nil)
	r.attempts.saveDelay = 20 * time.Millisecond
	ctx := context.Background()
	require.NoError(t, r.session.Start(ctx))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.session.Submit(ctx)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, rejected int
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, ErrSessionNotRunning)
			rejected++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, rejected)
	assert.Len(t, r.attempts.submissions(), 1)
	assert.Equal(t, 1, r.attempts.gradingPasses())
	assert.Equal(t, 1, r.resultCount())
}

func TestSessionTimeoutRacesManualSubmit(t *testing.T) {
	tests := []struct {
		name           string
		timeoutFirst   bool
		expectReason   SubmitReason
		expectManualOK bool
	}{
		{name: "manual in flight when countdown expires", expectReason: SubmitManual, expectManualOK: true},
		{name: "countdown in flight when manual arrives", timeoutFirst: true, expectReason: SubmitTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newSessionRig(t, testConfig(), 1, nil)
			r.session.tickEvery = 10 * time.Millisecond
			r.attempts.saveDelay = 50 * time.Millisecond
			ctx := context.Background()
			require.NoError(t, r.session.Start(ctx))

			if tt.timeoutFirst {
				require.Eventually(t, func() bool {
					return r.session.State().Snapshot().Session == SessionSubmitting
				}, time.Second, time.Millisecond)
			}
			_, err := r.session.Submit(ctx)

			require.Eventually(t, func() bool {
				return r.session.State().Snapshot().Session == SessionSubmitted
			}, time.Second, 5*time.Millisecond)
			// Further ticks must not submit again.
			time.Sleep(50 * time.Millisecond)

			subs := r.attempts.submissions()
			require.Len(t, subs, 1)
			assert.Equal(t, tt.expectReason, subs[0].Reason)
			assert.Equal(t, 1, r.attempts.gradingPasses())
			assert.Equal(t, 1, r.resultCount())
			if tt.expectManualOK {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrSessionNotRunning)
			}
		})
	}
}

func TestSessionTimeoutSubmits(t *testing.T) {
	r := newSessionRig(t, testConfig(), 2, nil)
	r.session.tickEvery = 5 * time.Millisecond
	r.attempts.markCalled = make(chan struct{}, 1)

	require.NoError(t, r.session.Start(context.Background()))

	select {
	case <-r.attempts.markCalled:
	case <-time.After(time.Second):
		t.Fatal("timeout did not submit")
	}
	require.Eventually(t, func() bool {
		return r.session.State().Snapshot().Session == SessionSubmitted
	}, time.Second, 5*time.Millisecond)

	subs := r.attempts.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, SubmitTimeout, subs[0].Reason)

	r.mu.Lock()
	assert.Equal(t, []int{1, 0}, r.ticks)
	r.mu.Unlock()
}

func TestSessionBreachSubmits(t *testing.T) {
	cfg := testConfig()
	cfg.TabSwitchLimit = 2
	r := newSessionRig(t, cfg, 3600, nil)
	r.attempts.markCalled = make(chan struct{}, 1)
	require.NoError(t, r.session.Start(context.Background()))

	r.bus.Publish(Event{Kind: EventVisibilityChange, Hidden: true})
	r.bus.Publish(Event{Kind: EventVisibilityChange, Hidden: true})

	select {
	case <-r.attempts.markCalled:
	case <-time.After(time.Second):
		t.Fatal("breach did not submit")
	}
	require.Eventually(t, func() bool {
		return r.resultCount() == 1
	}, time.Second, 5*time.Millisecond)

	subs := r.attempts.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, SubmitTabSwitchLimit, subs[0].Reason)
	assert.Contains(t, r.notifier.titles(), "Tab Switch Limit Reached")
}

func TestSessionBreachSubmitRetriedAfterFailure(t *testing.T) {
	cfg := testConfig()
	cfg.TabSwitchLimit = 2
	r := newSessionRig(t, cfg, 3600, nil)
	r.session.tickEvery = 5 * time.Millisecond
	r.attempts.failSaves(errors.New("connection reset"))
	require.NoError(t, r.session.Start(context.Background()))

	r.bus.Publish(Event{Kind: EventVisibilityChange, Hidden: true})
	r.bus.Publish(Event{Kind: EventVisibilityChange, Hidden: true})

	require.Eventually(t, func() bool {
		return r.attempts.saves() >= 3
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, SessionInProgress, r.session.State().Snapshot().Session)
	assert.Empty(t, r.attempts.submissions())

	r.attempts.failSaves(nil)
	require.Eventually(t, func() bool {
		return r.session.State().Snapshot().Session == SessionSubmitted
	}, time.Second, 5*time.Millisecond)

	subs := r.attempts.submissions()
	require.Len(t, subs, 1)
	assert.Equal(t, SubmitTabSwitchLimit, subs[0].Reason)
}

func TestSessionSubmitFailureReopens(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, nil)
	ctx := context.Background()
	require.NoError(t, r.session.Start(ctx))

	r.attempts.saveErr = errors.New("connection reset")
	_, err := r.session.Submit(ctx)
	require.Error(t, err)

	st := r.session.State().Snapshot()
	assert.Equal(t, SessionInProgress, st.Session)
	assert.Equal(t, MonitorActive, st.Monitor)
	assert.Empty(t, r.attempts.submissions())

	r.attempts.saveErr = nil
	_, err = r.session.Submit(ctx)
	require.NoError(t, err)
	assert.Len(t, r.attempts.submissions(), 1)
}

func TestSessionGradeScaleFailureStillSubmits(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, func(d *SessionDeps) {
		d.Grades = fakeGrades{err: errors.New("timeout")}
	})
	ctx := context.Background()
	require.NoError(t, r.session.Start(ctx))
	require.NoError(t, r.session.Answer(ctx, r.q1.ID, "B"))

	res, err := r.session.Submit(ctx)
	require.NoError(t, err)
	assert.Nil(t, res.Score.Grade)
	assert.Equal(t, 5.0, res.Score.Total)
}

func TestSessionHidesScoreUnlessConfigured(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, func(d *SessionDeps) {
		d.Exam.ShowResultImmediately = false
	})
	ctx := context.Background()
	require.NoError(t, r.session.Start(ctx))

	res, err := r.session.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, res.ShowScore)
	assert.Nil(t, res.Score)

	stored, ok := r.session.Result()
	require.True(t, ok)
	assert.Equal(t, res, stored)
}

func TestSessionExtensionAppliedOnce(t *testing.T) {
	r := newSessionRig(t, testConfig(), 600, func(d *SessionDeps) {
		d.AppliedExtensionMinutes = 0
	})
	st := r.session.State()
	require.True(t, st.startSession())

	r.session.applyExtension(0)
	assert.Equal(t, 600, st.remaining())

	r.extensions.set(5)
	r.session.applyExtension(5)
	assert.Equal(t, 900, st.remaining())

	r.session.applyExtension(5)
	r.session.applyExtension(5)
	assert.Equal(t, 900, st.remaining())
	assert.Equal(t, 5, st.appliedExtensionMinutes())

	r.session.applyExtension(7)
	assert.Equal(t, 1020, st.remaining())
	assert.Equal(t, []string{"Time Extended", "Time Extended"}, r.notifier.titles())
}

func TestSessionPollsExtensions(t *testing.T) {
	r := newSessionRig(t, testConfig(), 600, func(d *SessionDeps) {
		d.ExtensionPollInterval = 5 * time.Millisecond
	})
	r.extensions.set(2)
	require.NoError(t, r.session.Start(context.Background()))

	require.Eventually(t, func() bool {
		return r.session.State().Snapshot().AppliedExtensionMinutes == 2
	}, time.Second, 5*time.Millisecond)

	rem := r.session.State().Snapshot().RemainingSeconds
	assert.Greater(t, rem, 600)
	assert.LessOrEqual(t, rem, 720)
}

func TestSessionSubmitStopsExtensionPoller(t *testing.T) {
	before := testutil.ToFloat64(metrics.ActiveSessions)
	r := newSessionRig(t, testConfig(), 600, func(d *SessionDeps) {
		d.ExtensionPollInterval = 5 * time.Millisecond
	})
	ctx := context.Background()
	require.NoError(t, r.session.Start(ctx))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ActiveSessions))

	require.Eventually(t, func() bool {
		return r.extensions.callCount() > 0
	}, time.Second, 5*time.Millisecond)

	_, err := r.session.Submit(ctx)
	require.NoError(t, err)

	select {
	case <-r.session.pollDone:
	case <-time.After(time.Second):
		t.Fatal("extension poller still running after submit")
	}
	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveSessions))

	calls := r.extensions.callCount()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, r.extensions.callCount())

	// Close after submit must not release the session twice.
	r.session.Close(ctx)
	assert.Equal(t, before, testutil.ToFloat64(metrics.ActiveSessions))
}

func TestSessionResumeBaseline(t *testing.T) {
	r := newSessionRig(t, testConfig(), 300, func(d *SessionDeps) {
		d.AppliedExtensionMinutes = 10
	})
	st := r.session.State()
	require.True(t, st.startSession())

	r.session.applyExtension(10)
	assert.Equal(t, 300, st.remaining())
	r.session.applyExtension(12)
	assert.Equal(t, 420, st.remaining())
}

func TestSessionAnswerNavigation(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, nil)
	ctx := context.Background()

	assert.ErrorIs(t, r.session.Answer(ctx, r.q1.ID, "B"), ErrSessionNotRunning)
	require.NoError(t, r.session.Start(ctx))
	assert.ErrorIs(t, r.session.Start(ctx), ErrSessionStarted)

	assert.ErrorIs(t, r.session.Answer(ctx, uuid.New(), "B"), ErrUnknownQuestion)
	require.NoError(t, r.session.Answer(ctx, r.q2.ID, "D"))

	flagged, err := r.session.ToggleFlag(ctx, r.q1.ID)
	require.NoError(t, err)
	assert.True(t, flagged)
	flagged, err = r.session.ToggleFlag(ctx, r.q1.ID)
	require.NoError(t, err)
	assert.False(t, flagged)

	require.NoError(t, r.session.Navigate(1))
	assert.Equal(t, 1, r.session.Current())
	assert.ErrorIs(t, r.session.Navigate(2), ErrQuestionIndex)
	assert.ErrorIs(t, r.session.Navigate(-1), ErrQuestionIndex)

	answers := r.session.Answers()
	require.Len(t, answers, 2)
	assert.Equal(t, r.q1.ID, answers[0].QuestionID)
	assert.Equal(t, r.q2.ID, answers[1].QuestionID)
	assert.Equal(t, "D", answers[1].Answer)
}

func TestSessionCloseWithoutSubmit(t *testing.T) {
	r := newSessionRig(t, testConfig(), 3600, nil)
	require.NoError(t, r.session.Start(context.Background()))

	r.session.Close(context.Background())
	r.session.Close(context.Background())

	st := r.session.State().Snapshot()
	assert.Equal(t, MonitorTornDown, st.Monitor)
	assert.Equal(t, SessionInProgress, st.Session)
	assert.Empty(t, r.attempts.submissions())
}
