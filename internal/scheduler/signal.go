package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Signal is the run-wide stop flag shared by every loop. It only ever goes
// from unset to set.
type Signal struct {
	set  atomic.Bool
	once sync.Once
	done chan struct{}
}

func NewSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Set raises the signal. It reports whether this call was the one that raised it.
func (s *Signal) Set() bool {
	first := false
	s.once.Do(func() {
		first = true
		s.set.Store(true)
		close(s.done)
	})
	return first
}

func (s *Signal) IsSet() bool {
	return s.set.Load()
}

// Done is closed once the signal is set.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Pause sleeps for d. It returns early with nil when sig is set, and with
// ctx.Err() when ctx ends first.
func Pause(ctx context.Context, sig *Signal, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-sig.Done():
		return nil
	case <-t.C:
		return nil
	}
}
