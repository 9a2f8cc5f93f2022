package proctor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/metrics"
)

// SubmitReason records what ended an attempt.
type SubmitReason string

const (
	SubmitManual         SubmitReason = "manual"
	SubmitTimeout        SubmitReason = "timeout"
	SubmitTabSwitchLimit SubmitReason = "tab_switch_limit"
)

const submitTimeout = 30 * time.Second

var (
	ErrSessionStarted    = errors.New("session already started")
	ErrSessionNotRunning = errors.New("session is not in progress")
	ErrUnknownQuestion   = errors.New("question is not part of this exam")
	ErrQuestionIndex     = errors.New("question index out of range")
)

// Exam is the part of an online exam the session needs.
type Exam struct {
	ID                    uuid.UUID
	Title                 string
	DurationMinutes       int
	ShowResultImmediately bool
}

// AnswerAutosaver buffers answers while the attempt is running.
type AnswerAutosaver interface {
	Autosave(ctx context.Context, attemptID uuid.UUID, a Answer) error
}

// SessionDeps are the collaborators of an ExamSessionController.
type SessionDeps struct {
	Exam       Exam
	Proctoring Config
	Monitor    MonitorDeps

	Attempts   AttemptStore
	Questions  QuestionSource
	Grades     GradeScaleSource
	Extensions ExtensionSource
	Autosave   AnswerAutosaver

	// RemainingSeconds and AppliedExtensionMinutes seed a resumed session.
	RemainingSeconds        int
	AppliedExtensionMinutes int
	Answers                 []Answer

	ExtensionPollInterval time.Duration

	OnTick   func(remaining int)
	OnResult func(Result)
	Logger   zerolog.Logger
}

// Result is what the student sees after submitting.
type Result struct {
	AttemptID   uuid.UUID    `json:"attempt_id"`
	Reason      SubmitReason `json:"reason"`
	SubmittedAt time.Time    `json:"submitted_at"`
	ShowScore   bool         `json:"show_score"`
	Score       *GradeResult `json:"score,omitempty"`
}

// ExamSessionController owns one running attempt: the countdown, the
// answers, the integrity monitor and the submission routine.
type ExamSessionController struct {
	exam      Exam
	cfg       Config
	attempts  AttemptStore
	questions QuestionSource
	grades    GradeScaleSource
	autosave  AnswerAutosaver
	notifier  Notifier
	state     *State
	monitor   *IntegrityMonitor
	poller    *TimeExtensionPoller
	onTick    func(int)
	onResult  func(Result)
	tickEvery time.Duration
	log       zerolog.Logger

	mu         sync.Mutex
	loaded     []Question
	answers    map[uuid.UUID]Answer
	current    int
	result     *Result
	cancelRun  context.CancelFunc
	cancelPoll context.CancelFunc
	loopDone   chan struct{}
	pollDone   chan struct{}

	stopOnce  sync.Once
	stop      chan struct{}
	closeOnce sync.Once
}

// NewExamSessionController builds the controller and its monitor.
func NewExamSessionController(deps SessionDeps) *ExamSessionController {
	state := NewState(deps.RemainingSeconds, deps.AppliedExtensionMinutes)
	monDeps := deps.Monitor
	monDeps.State = state
	monDeps.Logger = deps.Logger

	c := &ExamSessionController{
		exam:      deps.Exam,
		cfg:       deps.Proctoring,
		attempts:  deps.Attempts,
		questions: deps.Questions,
		grades:    deps.Grades,
		autosave:  deps.Autosave,
		notifier:  deps.Monitor.Notifier,
		state:     state,
		monitor:   NewIntegrityMonitor(deps.Proctoring, monDeps),
		onTick:    deps.OnTick,
		onResult:  deps.OnResult,
		tickEvery: time.Second,
		log: deps.Logger.With().
			Str("component", "exam_session").
			Str("attempt_id", deps.Proctoring.AttemptID.String()).
			Logger(),
		answers: make(map[uuid.UUID]Answer, len(deps.Answers)),
		stop:    make(chan struct{}),
	}
	if deps.Extensions != nil {
		c.poller = NewTimeExtensionPoller(deps.Extensions, deps.Proctoring.AttemptID, deps.ExtensionPollInterval, deps.Logger)
	}
	for _, a := range deps.Answers {
		a.MarksObtained = nil
		c.answers[a.QuestionID] = a
	}
	return c
}

// State returns the shared session state.
func (c *ExamSessionController) State() *State { return c.state }

// Monitor returns the integrity monitor.
func (c *ExamSessionController) Monitor() *IntegrityMonitor { return c.monitor }

// Start loads the questions, arms the monitor and starts the countdown.
func (c *ExamSessionController) Start(ctx context.Context) error {
	questions, err := c.questions.ListQuestions(ctx, c.exam.ID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}
	if !c.state.startSession() {
		return ErrSessionStarted
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	// The poller also stops when the countdown stops, not only on Close.
	pollCtx, cancelPoll := context.WithCancel(runCtx)

	c.mu.Lock()
	select {
	case <-c.stop:
		c.mu.Unlock()
		cancelPoll()
		cancel()
		return ErrSessionNotRunning
	default:
	}
	c.loaded = questions
	c.cancelRun = cancel
	c.cancelPoll = cancelPoll
	c.loopDone = make(chan struct{})
	c.pollDone = make(chan struct{})
	loopDone, pollDone := c.loopDone, c.pollDone
	c.mu.Unlock()

	metrics.ActiveSessions.Inc()

	c.monitor.Arm(ctx)
	c.monitor.Activate()

	totals := make(chan int)
	go func() {
		defer close(pollDone)
		if c.poller != nil {
			c.poller.Run(pollCtx, totals)
		}
	}()
	go c.run(runCtx, totals, loopDone)

	c.log.Info().
		Int("questions", len(questions)).
		Int("remaining_seconds", c.state.remaining()).
		Msg("Exam session started")
	return nil
}

func (c *ExamSessionController) run(ctx context.Context, totals <-chan int, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.tickEvery)
	defer ticker.Stop()
	breach := c.monitor.Breach()
	// The monitor signals a breach once; a failed breach submission is
	// retried on the following ticks.
	breachPending := false

	for {
		select {
		case <-c.stop:
			return
		case <-ctx.Done():
			return

		case <-ticker.C:
			remaining, expired := c.state.tick()
			if c.state.sessionPhase() != SessionInProgress {
				continue
			}
			if c.onTick != nil {
				c.onTick(remaining)
			}
			// A failed timeout submission is retried on the next tick.
			switch {
			case breachPending:
				c.submitInLoop(ctx, SubmitTabSwitchLimit)
			case expired || remaining <= 0:
				c.submitInLoop(ctx, SubmitTimeout)
			}

		case total := <-totals:
			c.applyExtension(total)

		case <-breach:
			breach = nil
			breachPending = true
			c.submitInLoop(ctx, SubmitTabSwitchLimit)
		}
	}
}

func (c *ExamSessionController) submitInLoop(ctx context.Context, reason SubmitReason) {
	subCtx, cancel := context.WithTimeout(ctx, submitTimeout)
	defer cancel()
	if _, err := c.submit(subCtx, reason); err != nil && !errors.Is(err, ErrSessionNotRunning) {
		c.log.Error().Err(err).Str("reason", string(reason)).Msg("Automatic submission failed")
	}
}

// applyExtension runs on the loop goroutine, so the countdown has a single
// writer.
func (c *ExamSessionController) applyExtension(total int) {
	delta := c.state.applyExtensionTotal(total)
	if delta <= 0 {
		return
	}
	metrics.ExtensionsAppliedTotal.Add(float64(delta))
	c.log.Info().Int("minutes", delta).Int("remaining_seconds", c.state.remaining()).Msg("Time extension applied")
	if c.notifier != nil {
		c.notifier.Notify(Notice{
			Level:   NoticeSuccess,
			Title:   "Time Extended",
			Message: fmt.Sprintf("%d minute(s) have been added to your exam.", delta),
			Data:    map[string]any{"minutes": delta, "remaining_seconds": c.state.remaining()},
		})
	}
}

// Answer records the student's answer to a question.
func (c *ExamSessionController) Answer(ctx context.Context, questionID uuid.UUID, answer string) error {
	if c.state.sessionPhase() != SessionInProgress {
		return ErrSessionNotRunning
	}
	c.mu.Lock()
	if !c.hasQuestionLocked(questionID) {
		c.mu.Unlock()
		return ErrUnknownQuestion
	}
	a := c.answers[questionID]
	a.QuestionID = questionID
	a.Answer = answer
	c.answers[questionID] = a
	c.mu.Unlock()

	c.save(ctx, a)
	return nil
}

// ToggleFlag flips the review flag of a question and returns the new value.
func (c *ExamSessionController) ToggleFlag(ctx context.Context, questionID uuid.UUID) (bool, error) {
	if c.state.sessionPhase() != SessionInProgress {
		return false, ErrSessionNotRunning
	}
	c.mu.Lock()
	if !c.hasQuestionLocked(questionID) {
		c.mu.Unlock()
		return false, ErrUnknownQuestion
	}
	a := c.answers[questionID]
	a.QuestionID = questionID
	a.Flagged = !a.Flagged
	c.answers[questionID] = a
	c.mu.Unlock()

	c.save(ctx, a)
	return a.Flagged, nil
}

// Navigate moves to the question at index.
func (c *ExamSessionController) Navigate(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index >= len(c.loaded) {
		return ErrQuestionIndex
	}
	c.current = index
	return nil
}

// Current returns the index of the question on screen.
func (c *ExamSessionController) Current() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Answers returns the recorded answers in question order.
func (c *ExamSessionController) Answers() []Answer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.answerListLocked()
}

// Result returns the submission result once the attempt is submitted.
func (c *ExamSessionController) Result() (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.result == nil {
		return Result{}, false
	}
	return *c.result, true
}

func (c *ExamSessionController) hasQuestionLocked(id uuid.UUID) bool {
	for _, q := range c.loaded {
		if q.ID == id {
			return true
		}
	}
	return false
}

func (c *ExamSessionController) answerListLocked() []Answer {
	out := make([]Answer, 0, len(c.answers))
	seen := make(map[uuid.UUID]struct{}, len(c.answers))
	for _, q := range c.loaded {
		if a, ok := c.answers[q.ID]; ok {
			out = append(out, a)
			seen[q.ID] = struct{}{}
		}
	}
	for id, a := range c.answers {
		if _, ok := seen[id]; !ok {
			out = append(out, a)
		}
	}
	return out
}

func (c *ExamSessionController) save(ctx context.Context, a Answer) {
	if c.autosave == nil {
		return
	}
	if err := c.autosave.Autosave(ctx, c.cfg.AttemptID, a); err != nil {
		c.log.Warn().Err(err).Str("question_id", a.QuestionID.String()).Msg("Failed to autosave answer")
	}
}

// Submit runs the submission routine for a manual submit.
func (c *ExamSessionController) Submit(ctx context.Context) (Result, error) {
	return c.submit(ctx, SubmitManual)
}

// submit is shared by every trigger. The phase guard lets exactly one caller
// through; a failure before the attempt is marked submitted reopens the
// session so the student can retry.
func (c *ExamSessionController) submit(ctx context.Context, reason SubmitReason) (Result, error) {
	if !c.state.beginSubmit() {
		return Result{}, ErrSessionNotRunning
	}
	log := c.log.With().Str("reason", string(reason)).Logger()
	log.Info().Msg("Submitting attempt")

	c.mu.Lock()
	answers := c.answerListLocked()
	questions := c.loaded
	c.mu.Unlock()

	fail := func(step string, err error) (Result, error) {
		c.state.abortSubmit()
		log.Error().Err(err).Str("step", step).Msg("Submission failed")
		return Result{}, fmt.Errorf("%s: %w", step, err)
	}

	if err := c.attempts.SaveAnswers(ctx, c.cfg.AttemptID, answers); err != nil {
		return fail("save answers", err)
	}
	stored, err := c.attempts.ListAnswers(ctx, c.cfg.AttemptID)
	if err != nil {
		return fail("list answers", err)
	}

	graded := Grade(stored, questions)
	if c.grades != nil {
		bands, err := c.grades.ListGradeBands(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to load grade scale, submitting without grade")
		} else {
			graded.Grade = ResolveGrade(bands, graded.Percentage)
		}
	}

	if err := c.attempts.SaveMarks(ctx, c.cfg.AttemptID, graded.Marks); err != nil {
		return fail("save marks", err)
	}

	submittedAt := time.Now().UTC()
	if err := c.attempts.MarkSubmitted(ctx, Submission{
		AttemptID:   c.cfg.AttemptID,
		SubmittedAt: submittedAt,
		Total:       graded.Total,
		MaxTotal:    graded.MaxTotal,
		Percentage:  graded.Percentage,
		Grade:       graded.Grade,
		Reason:      reason,
	}); err != nil {
		return fail("mark submitted", err)
	}

	c.state.finishSubmit()
	metrics.SubmissionsTotal.WithLabelValues(string(reason)).Inc()
	c.stopTimers()
	c.monitor.Disarm(ctx)

	res := Result{
		AttemptID:   c.cfg.AttemptID,
		Reason:      reason,
		SubmittedAt: submittedAt,
		ShowScore:   c.exam.ShowResultImmediately,
	}
	if res.ShowScore {
		res.Score = &graded
	}
	c.mu.Lock()
	c.result = &res
	c.mu.Unlock()

	log.Info().
		Float64("total", graded.Total).
		Float64("percentage", graded.Percentage).
		Msg("Attempt submitted")

	if c.notifier != nil {
		msg := "Your exam has been submitted."
		if res.ShowScore {
			msg = fmt.Sprintf("Your exam has been submitted. Score: %.2f / %.2f (%.1f%%).", graded.Total, graded.MaxTotal, graded.Percentage)
		}
		c.notifier.Notify(Notice{Level: NoticeSuccess, Title: "Exam Submitted", Message: msg})
	}
	if c.onResult != nil {
		c.onResult(res)
	}
	return res, nil
}

// stopTimers ends the countdown and the extension poller. It runs on both
// submission and Close.
func (c *ExamSessionController) stopTimers() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		close(c.stop)
		cancelPoll := c.cancelPoll
		c.mu.Unlock()

		if cancelPoll != nil {
			cancelPoll()
			metrics.ActiveSessions.Dec()
		}
	})
}

// Close ends the session without submitting it. It is idempotent and safe
// to call after a submission.
func (c *ExamSessionController) Close(ctx context.Context) {
	c.closeOnce.Do(func() {
		c.stopTimers()

		c.mu.Lock()
		cancel, done := c.cancelRun, c.loopDone
		c.mu.Unlock()

		// An automatic submission already running on the loop finishes
		// before the run context is cancelled.
		if done != nil {
			select {
			case <-done:
			case <-ctx.Done():
			}
		}
		if cancel != nil {
			cancel()
		}
		c.monitor.Disarm(ctx)
		c.log.Debug().Msg("Exam session closed")
	})
}
