package runs

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/example/seat-scheduler/internal/logging"
	"github.com/example/seat-scheduler/internal/scheduler"
	"go.uber.org/zap"
)

const (
	defaultBuffer = 256
	writeTimeout  = 5 * time.Second
)

// Ledger writes attempts of one run in the background so claim loops never
// wait on the database. Attempts arriving while the buffer is full are dropped.
type Ledger struct {
	repo  *Repo
	runID string
	log   *zap.Logger

	mu      sync.RWMutex
	closed  bool
	ch      chan scheduler.Attempt
	done    chan struct{}
	dropped atomic.Int64
}

var _ scheduler.Recorder = (*Ledger)(nil)

func NewLedger(repo *Repo, runID string, buffer int, log *zap.Logger) *Ledger {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	l := &Ledger{
		repo:  repo,
		runID: runID,
		log:   logging.OrNop(log).Named("ledger"),
		ch:    make(chan scheduler.Attempt, buffer),
		done:  make(chan struct{}),
	}
	go l.drain()
	return l
}

func (l *Ledger) RecordAttempt(a scheduler.Attempt) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.ch <- a:
	default:
		l.dropped.Add(1)
	}
}

// Close stops accepting attempts and waits until the queued ones are written.
func (l *Ledger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.ch)
	}
	l.mu.Unlock()
	<-l.done
	if n := l.dropped.Load(); n > 0 {
		l.log.Warn("ledger: attempts dropped, buffer full", zap.Int64("dropped", n))
	}
}

func (l *Ledger) Dropped() int64 { return l.dropped.Load() }

func (l *Ledger) drain() {
	defer close(l.done)
	for a := range l.ch {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		if err := l.repo.InsertAttempt(ctx, l.runID, a); err != nil {
			l.log.Warn("ledger: write attempt failed", zap.String("run", l.runID), zap.Error(err))
		}
		cancel()
	}
}
