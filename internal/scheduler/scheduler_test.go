package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_SkipsOverlappingRuns(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32

	r := NewRunner(func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- r.Trigger(context.Background()) }()
	<-started

	assert.ErrorIs(t, r.Trigger(context.Background()), ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), runs.Load())
}

func TestRunner_PropagatesError(t *testing.T) {
	boom := assert.AnError
	r := NewRunner(func(ctx context.Context) error { return boom })

	assert.ErrorIs(t, r.Trigger(context.Background()), boom)
	// the lock is released after a failed run
	assert.ErrorIs(t, r.Trigger(context.Background()), boom)
}

func TestNew_InvalidSpec(t *testing.T) {
	_, err := New("not a schedule", NewRunner(func(context.Context) error { return nil }))
	assert.Error(t, err)
}

func TestScheduler_RunsImmediatelyAndOnSchedule(t *testing.T) {
	var runs atomic.Int32
	s, err := New("@every 1s", NewRunner(func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	require.NoError(t, s.Run(ctx))
	assert.GreaterOrEqual(t, runs.Load(), int32(2))
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	s, err := New("0 */6 * * *", NewRunner(func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	assert.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
