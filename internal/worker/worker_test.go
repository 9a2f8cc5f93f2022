package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingsley805-tech/edumanageschools-sub001/internal/config"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/proctor"
	"github.com/kingsley805-tech/edumanageschools-sub001/internal/service"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type fakeViolationStore struct {
	mu        sync.Mutex
	copyErr   error
	badIDs    map[uuid.UUID]bool
	copied    []proctor.ViolationRecord
	inserted  []proctor.ViolationRecord
	copyCalls int
}

func (s *fakeViolationStore) CopyMany(_ context.Context, recs []proctor.ViolationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyCalls++
	if s.copyErr != nil {
		return s.copyErr
	}
	s.copied = append(s.copied, recs...)
	return nil
}

func (s *fakeViolationStore) Insert(_ context.Context, rec proctor.ViolationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.badIDs[rec.ID] {
		return errors.New("constraint violation")
	}
	s.inserted = append(s.inserted, rec)
	return nil
}

func (s *fakeViolationStore) persisted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.copied) + len(s.inserted)
}

func violation(typ proctor.ViolationType) proctor.ViolationRecord {
	return proctor.ViolationRecord{
		ID:          uuid.New(),
		AttemptID:   uuid.New(),
		StudentID:   uuid.New(),
		Type:        typ,
		Description: "test",
		CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
	}
}

func TestViolationWorkerFlushesOnShutdown(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeViolationStore{}
	w := NewViolationWorker(store, rdb, zerolog.Nop())

	ctx := context.Background()
	for _, typ := range []proctor.ViolationType{proctor.ViolationTabSwitch, proctor.ViolationRightClick} {
		data, err := json.Marshal(violation(typ))
		require.NoError(t, err)
		require.NoError(t, rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, data).Err())
	}
	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.PersistViolationsQueue, "{not json").Err())

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		w.Start(runCtx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		n, _ := rdb.LLen(ctx, config.WorkerKey.PersistViolationsQueue).Result()
		return n == 0
	}, 3*time.Second, 10*time.Millisecond)
	cancel()
	<-done

	assert.Equal(t, 2, store.persisted())
}

func TestViolationWorkerFallbackRequeuesFailures(t *testing.T) {
	_, rdb := newRedis(t)
	good, bad := violation(proctor.ViolationWindowBlur), violation(proctor.ViolationDevTools)
	store := &fakeViolationStore{
		copyErr: errors.New("copy failed"),
		badIDs:  map[uuid.UUID]bool{bad.ID: true},
	}
	w := NewViolationWorker(store, rdb, zerolog.Nop())
	w.requeuePause = 0

	ctx := context.Background()
	w.flushSafe(ctx, []proctor.ViolationRecord{good, bad})

	require.Len(t, store.inserted, 1)
	assert.Equal(t, good.ID, store.inserted[0].ID)

	queued, err := rdb.LRange(ctx, config.WorkerKey.PersistViolationsQueue, 0, -1).Result()
	require.NoError(t, err)
	require.Len(t, queued, 1)
	var rec proctor.ViolationRecord
	require.NoError(t, json.Unmarshal([]byte(queued[0]), &rec))
	assert.Equal(t, bad.ID, rec.ID)
	assert.Equal(t, proctor.ViolationDevTools, rec.Type)
}

type savedAnswer struct {
	attemptID, questionID uuid.UUID
	answer                string
	flagged               bool
	savedAt               time.Time
}

type fakeAnswerStore struct {
	mu    sync.Mutex
	err   error
	saved []savedAnswer
}

func (s *fakeAnswerStore) UpsertAutosaved(_ context.Context, attemptID, questionID uuid.UUID, answer string, flagged bool, savedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.saved = append(s.saved, savedAnswer{attemptID, questionID, answer, flagged, savedAt})
	return nil
}

func (s *fakeAnswerStore) all() []savedAnswer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedAnswer(nil), s.saved...)
}

func TestAutosaveWorkerPersistsQueuedAnswers(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeAnswerStore{}
	w := NewAutosaveWorker(store, rdb, zerolog.Nop())

	ctx := context.Background()
	p := service.AnswerPayload{
		AttemptID:  uuid.New(),
		QuestionID: uuid.New(),
		Answer:     "C",
		Flagged:    true,
		SavedAt:    1_700_000_000_123,
	}
	data, err := json.Marshal(p)
	require.NoError(t, err)
	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err())

	w.processNext(ctx)

	saved := store.all()
	require.Len(t, saved, 1)
	assert.Equal(t, p.AttemptID, saved[0].attemptID)
	assert.Equal(t, "C", saved[0].answer)
	assert.True(t, saved[0].flagged)
	assert.Equal(t, time.UnixMilli(p.SavedAt), saved[0].savedAt)
}

func TestAutosaveWorkerRequeuesOnError(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeAnswerStore{err: errors.New("db down")}
	w := NewAutosaveWorker(store, rdb, zerolog.Nop())
	w.retryPause = 0

	ctx := context.Background()
	data, _ := json.Marshal(service.AnswerPayload{AttemptID: uuid.New(), QuestionID: uuid.New(), Answer: "A"})
	require.NoError(t, rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err())

	w.processNext(ctx)

	n, err := rdb.LLen(ctx, config.WorkerKey.PersistAnswersQueue).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Empty(t, store.all())
}

func TestAutosaveWorkerDrainsOnShutdown(t *testing.T) {
	_, rdb := newRedis(t)
	store := &fakeAnswerStore{}
	w := NewAutosaveWorker(store, rdb, zerolog.Nop())

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		data, _ := json.Marshal(service.AnswerPayload{AttemptID: uuid.New(), QuestionID: uuid.New(), Answer: "B"})
		require.NoError(t, rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, data).Err())
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	w.Start(cancelled)

	assert.Len(t, store.all(), 3)
}
