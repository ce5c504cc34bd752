package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSignalIsMonotonic(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	assert.False(t, s.IsSet())

	var wg sync.WaitGroup
	var firsts sync.Map
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Set() {
				firsts.Store(i, true)
			}
		}()
	}
	wg.Wait()

	n := 0
	firsts.Range(func(any, any) bool { n++; return true })
	assert.Equal(t, 1, n)
	assert.True(t, s.IsSet())
	assert.False(t, s.Set())
	assert.True(t, s.IsSet())

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestPauseWakesOnSignal(t *testing.T) {
	t.Parallel()

	s := NewSignal()
	go func() {
		time.Sleep(20 * time.Millisecond)
		s.Set()
	}()
	start := time.Now()
	require.NoError(t, Pause(context.Background(), s, time.Minute))
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestPauseReturnsContextError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Pause(ctx, NewSignal(), time.Minute), context.Canceled)
}

func TestPauseElapses(t *testing.T) {
	t.Parallel()

	require.NoError(t, Pause(context.Background(), NewSignal(), time.Millisecond))
}

type failingNotifier struct{ calls int }

func (f *failingNotifier) Name() string { return "failing" }

func (f *failingNotifier) Notify(context.Context, string) error {
	f.calls++
	return errors.New("push endpoint down")
}

func TestReportFlushesOnce(t *testing.T) {
	t.Parallel()

	r := &Report{}
	r.Append("first")
	r.Append("second")
	n := &fakeNotifier{}
	log := zaptest.NewLogger(t)

	r.Flush(context.Background(), n, log)
	r.Append("late")
	r.Flush(context.Background(), n, log)

	assert.Equal(t, []string{"first\nsecond"}, n.Messages())
}

func TestReportFlushSurvivesNotifierFailure(t *testing.T) {
	t.Parallel()

	r := &Report{}
	n := &failingNotifier{}
	r.Flush(context.Background(), n, zaptest.NewLogger(t))
	r.Flush(context.Background(), n, zaptest.NewLogger(t))
	assert.Equal(t, 1, n.calls)
}

func TestEmptyReportStillNotifies(t *testing.T) {
	t.Parallel()

	r := &Report{}
	n := &fakeNotifier{}
	r.Flush(context.Background(), n, nil)
	assert.Equal(t, []string{emptyReport}, n.Messages())
}
