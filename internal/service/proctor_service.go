package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/model"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/repository"
)

// ErrSessionActive is returned when the attempt is already open elsewhere.
var ErrSessionActive = errors.New("attempt already has a live proctor session")

// Monitor event types published besides violations.
const (
	MonitorEventJoined    = "joined"
	MonitorEventLeft      = "left"
	MonitorEventSubmitted = "submitted"
)

const (
	sessionLockTTL     = 90 * time.Second
	sessionLockRefresh = 30 * time.Second
)

// releaseLock deletes the lock only while it still holds our token.
var releaseLock = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// SessionPorts are the client capabilities of one connection.
type SessionPorts struct {
	Events    proctor.EventSource
	Display   proctor.Display
	Devices   proctor.MediaDevices
	Video     proctor.VideoSink
	Notifier  proctor.Notifier
	OnOutcome func(proctor.Event, proctor.Outcome)
	OnTick    func(remaining int)
	OnResult  func(proctor.Result)
}

// ProctorService opens proctored exam sessions for live connections.
type ProctorService struct {
	cfg          *config.Config
	rdb          *redis.Client
	attempts     *AttemptService
	attemptRepo  *repository.AttemptRepository
	questionRepo *repository.QuestionRepository
	gradeRepo    *repository.GradeScaleRepository
	extRepo      *repository.ExtensionRepository
	storage      proctor.ObjectStorage
	autosaver    *AnswerAutosaver
	log          zerolog.Logger
}

// NewProctorService creates a new ProctorService.
func NewProctorService(
	cfg *config.Config,
	rdb *redis.Client,
	attempts *AttemptService,
	attemptRepo *repository.AttemptRepository,
	questionRepo *repository.QuestionRepository,
	gradeRepo *repository.GradeScaleRepository,
	extRepo *repository.ExtensionRepository,
	storage proctor.ObjectStorage,
	autosaver *AnswerAutosaver,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		cfg:          cfg,
		rdb:          rdb,
		attempts:     attempts,
		attemptRepo:  attemptRepo,
		questionRepo: questionRepo,
		gradeRepo:    gradeRepo,
		extRepo:      extRepo,
		storage:      storage,
		autosaver:    autosaver,
		log:          log.With().Str("component", "proctor_service").Logger(),
	}
}

// LiveSession is a running exam session bound to one connection.
type LiveSession struct {
	*proctor.ExamSessionController

	Attempt *model.Attempt
	Exam    *model.OnlineExam

	svc         *ProctorService
	lockKey     string
	lockToken   string
	stopRefresh context.CancelFunc
	closeOnce   sync.Once
}

// Open claims the attempt for this connection and starts its session. The
// ports must already be serving client replies: arming round-trips to the
// browser.
func (s *ProctorService) Open(ctx context.Context, attemptID, userID uuid.UUID, ports SessionPorts) (*LiveSession, error) {
	attempt, exam, err := s.attempts.GetOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, ErrAlreadySubmitted
	}

	ls := &LiveSession{
		Attempt:   attempt,
		Exam:      exam,
		svc:       s,
		lockKey:   config.CacheKey.AttemptLockKey(attempt.ID),
		lockToken: uuid.New().String(),
	}
	ok, err := s.rdb.SetNX(ctx, ls.lockKey, ls.lockToken, sessionLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("claim attempt: %w", err)
	}
	if !ok {
		return nil, ErrSessionActive
	}

	ctrl, err := s.build(ctx, attempt, exam, userID, ports)
	if err != nil {
		ls.releaseLock()
		return nil, err
	}
	ls.ExamSessionController = ctrl

	if ports.Video != nil {
		ctrl.Monitor().Webcam().AttachSink(ports.Video)
	}

	refreshCtx, cancel := context.WithCancel(context.Background())
	ls.stopRefresh = cancel
	go ls.keepLock(refreshCtx)

	if err := ctrl.Start(ctx); err != nil {
		ls.Close(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("start session: %w", err)
	}

	s.publish(ctx, exam.ID, model.MonitorEvent{Type: MonitorEventJoined, AttemptID: attempt.ID.String()})
	return ls, nil
}

func (s *ProctorService) build(ctx context.Context, attempt *model.Attempt, exam *model.OnlineExam, userID uuid.UUID, ports SessionPorts) (*proctor.ExamSessionController, error) {
	ext, err := s.attempts.ExtensionMinutes(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	stored, err := s.attempts.Answers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	answers := make([]proctor.Answer, len(stored))
	for i, a := range stored {
		answers[i] = proctor.Answer{QuestionID: a.QuestionID, Answer: a.Answer, Flagged: a.Flagged}
	}

	pcfg := exam.ProctoringConfig(attempt, userID)
	if pcfg.SnapshotInterval <= 0 {
		pcfg.SnapshotInterval = s.cfg.SnapshotInterval
	}

	log := s.log.With().Str("exam_id", exam.ID.String()).Logger()
	onResult := func(r proctor.Result) {
		s.afterSubmit(exam.ID, r)
		if ports.OnResult != nil {
			ports.OnResult(r)
		}
	}

	return proctor.NewExamSessionController(proctor.SessionDeps{
		Exam:       exam.SessionExam(),
		Proctoring: pcfg,
		Monitor: proctor.MonitorDeps{
			Events:    ports.Events,
			Display:   ports.Display,
			Devices:   ports.Devices,
			Storage:   s.storage,
			Sink:      NewViolationQueue(s.rdb, exam.ID, s.log),
			Notifier:  ports.Notifier,
			BlurGrace: s.cfg.BlurGrace,
			OnOutcome: ports.OnOutcome,
		},
		Attempts:                s.attemptRepo,
		Questions:               s.questionRepo,
		Grades:                  s.gradeRepo,
		Extensions:              s.extRepo,
		Autosave:                s.autosaver,
		RemainingSeconds:        attempt.RemainingSeconds(time.Now(), exam.DurationMinutes, ext),
		AppliedExtensionMinutes: ext,
		Answers:                 answers,
		ExtensionPollInterval:   s.cfg.ExtensionPollInterval,
		OnTick:                  ports.OnTick,
		OnResult:                onResult,
		Logger:                  log,
	}), nil
}

func (s *ProctorService) afterSubmit(examID uuid.UUID, r proctor.Result) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.autosaver.Clear(ctx, r.AttemptID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", r.AttemptID.String()).Msg("Failed to clear autosave cache")
	}
	s.publish(ctx, examID, model.MonitorEvent{Type: MonitorEventSubmitted, AttemptID: r.AttemptID.String(), Result: &r})
}

func (s *ProctorService) publish(ctx context.Context, examID uuid.UUID, ev model.MonitorEvent) {
	ev.ExamID = examID.String()
	data, _ := json.Marshal(ev)
	if err := s.rdb.Publish(ctx, config.CacheKey.ExamMonitorChannel(examID), data).Err(); err != nil {
		s.log.Warn().Err(err).Str("type", ev.Type).Msg("Monitor publish failed")
	}
}

func (ls *LiveSession) keepLock(ctx context.Context) {
	ticker := time.NewTicker(sessionLockRefresh)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ls.svc.rdb.Expire(ctx, ls.lockKey, sessionLockTTL).Err(); err != nil && ctx.Err() == nil {
				ls.svc.log.Warn().Err(err).Str("attempt_id", ls.Attempt.ID.String()).Msg("Failed to refresh session lock")
			}
		}
	}
}

func (ls *LiveSession) releaseLock() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseLock.Run(ctx, ls.svc.rdb, []string{ls.lockKey}, ls.lockToken).Err(); err != nil {
		ls.svc.log.Warn().Err(err).Str("attempt_id", ls.Attempt.ID.String()).Msg("Failed to release session lock")
	}
}

// Close stops the session without submitting and frees the attempt for a
// later connection.
func (ls *LiveSession) Close(ctx context.Context) {
	ls.closeOnce.Do(func() {
		if ls.ExamSessionController != nil {
			ls.ExamSessionController.Close(ctx)
		}
		if ls.stopRefresh != nil {
			ls.stopRefresh()
		}
		ls.releaseLock()
		if _, submitted := ls.Result(); !submitted {
			ls.svc.publish(ctx, ls.Exam.ID, model.MonitorEvent{Type: MonitorEventLeft, AttemptID: ls.Attempt.ID.String()})
		}
	})
}
