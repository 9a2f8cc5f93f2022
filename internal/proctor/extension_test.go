package proctor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPollerFetch(t *testing.T) {
	src := &fakeExtensions{total: 15}
	p := NewTimeExtensionPoller(src, uuid.New(), 0, testLog)
	assert.Equal(t, DefaultExtensionPollInterval, p.interval)

	total, ok := p.Fetch(context.Background())
	require.True(t, ok)
	assert.Equal(t, 15, total)

	src.err = errors.New("connection refused")
	_, ok = p.Fetch(context.Background())
	assert.False(t, ok)
}

func TestPollerRunReportsTotals(t *testing.T) {
	src := &fakeExtensions{total: 3}
	p := NewTimeExtensionPoller(src, uuid.New(), 5*time.Millisecond, testLog)

	ctx, cancel := context.WithCancel(context.Background())
	out := make(chan int)
	done := make(chan struct{})
	go func() {
		p.Run(ctx, out)
		close(done)
	}()

	select {
	case total := <-out:
		assert.Equal(t, 3, total)
	case <-time.After(time.Second):
		t.Fatal("no total reported")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}

func TestPollerSkipsFailedFetch(t *testing.T) {
	src := &fakeExtensions{err: errors.New("boom")}
	p := NewTimeExtensionPoller(src, uuid.New(), 5*time.Millisecond, testLog)

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	out := make(chan int, 8)
	p.Run(ctx, out)

	assert.Empty(t, out)
	src.mu.Lock()
	assert.Greater(t, src.calls, 1)
	src.mu.Unlock()
}

func TestStateExtensionIdempotence(t *testing.T) {
	st := NewState(120, 0)
	assert.Zero(t, st.applyExtensionTotal(5), "ignored before the session starts")

	require.True(t, st.startSession())
	assert.Equal(t, 5, st.applyExtensionTotal(5))
	assert.Equal(t, 420, st.remaining())
	assert.Zero(t, st.applyExtensionTotal(5))
	assert.Zero(t, st.applyExtensionTotal(3), "lower totals never shrink the budget")
	assert.Equal(t, 420, st.remaining())
}
