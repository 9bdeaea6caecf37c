package supervisor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoRecordsFirstError(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	boom := errors.New("boom")
	s.Go("http", func(ctx context.Context) error { return boom })
	s.Go("watch", func(ctx context.Context) error { <-ctx.Done(); return ctx.Err() })

	require.Eventually(t, func() bool { return s.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Err(), boom)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.ErrorIs(t, s.Stop(ctx), boom)
	assert.Equal(t, int64(0), s.Snapshot().Active)
}

func TestGoRecoversPanic(t *testing.T) {
	t.Parallel()
	s := New(context.Background(), WithCancelOnError(true))
	s.Go("bad", func(ctx context.Context) error { panic("kaboom") })

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("supervisor not cancelled after panic")
	}
	assert.ErrorContains(t, s.Err(), "panic: kaboom")
	snap := s.Snapshot()
	require.Len(t, snap.Loops, 1)
	assert.Equal(t, uint64(1), snap.Loops[0].Panics)
}

func TestGoRestartRetriesUntilCleanExit(t *testing.T) {
	t.Parallel()
	s := New(context.Background())
	var calls atomic.Int32
	s.GoRestart("watch", func(ctx context.Context) error {
		if calls.Add(1) < 3 {
			return errors.New("watcher broke")
		}
		return nil
	}, time.Millisecond, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
	assert.Equal(t, int32(3), calls.Load())

	snap := s.Snapshot()
	require.Len(t, snap.Loops, 1)
	assert.Equal(t, uint64(2), snap.Loops[0].Restarts)
	assert.Equal(t, "watcher broke", snap.Loops[0].LastErr)
	assert.Empty(t, snap.FirstError)
}
