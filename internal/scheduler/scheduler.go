// Package scheduler runs the concurrent seat claiming loops and the watchers
// that stop them.
package scheduler

import (
	"context"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"github.com/example/seat-scheduler/internal/metrics"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the watcher cadence.
	DefaultPollInterval = time.Second
	// DefaultEmptyBackoff is the wait after a catalog with no claimable seat.
	DefaultEmptyBackoff = time.Second
)

// Credentials is the part of the credential cache the loops use.
type Credentials interface {
	Ensure(ctx context.Context) (reservation.Credential, error)
	Invalidate()
}

// Attempt is one submitted claim and the decision taken on its status.
type Attempt struct {
	Target string
	SeatID string
	Status string
	Action reservation.Action
	At     time.Time
}

// Recorder receives every attempt. It must not block the calling loop.
type Recorder interface {
	RecordAttempt(a Attempt)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(Attempt) {}

// Scheduler holds everything the attempt loops and watchers share for one run.
type Scheduler struct {
	Claimer reservation.Claimer
	Catalog reservation.Catalog
	Members reservation.Members
	Spaces  reservation.Spaces
	Creds   Credentials

	Signal   *Signal
	Report   *Report
	Recorder Recorder
	Metrics  *metrics.Metrics
	Log      *zap.Logger

	// Deny is the auto mode denylist; nil means reservation.Denylist.
	Deny         map[string]struct{}
	PollInterval time.Duration
	EmptyBackoff time.Duration
	Now          func() time.Time
	// Sleep replaces Pause in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	if s.Sleep != nil {
		return s.Sleep(ctx, d)
	}
	return Pause(ctx, s.Signal, d)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) log() *zap.Logger {
	return logging.OrNop(s.Log)
}

func (s *Scheduler) recorder() Recorder {
	if s.Recorder != nil {
		return s.Recorder
	}
	return nopRecorder{}
}

func (s *Scheduler) deny() map[string]struct{} {
	if s.Deny != nil {
		return s.Deny
	}
	return reservation.Denylist
}

func (s *Scheduler) pollInterval() time.Duration {
	if s.PollInterval > 0 {
		return s.PollInterval
	}
	return DefaultPollInterval
}

func (s *Scheduler) emptyBackoff() time.Duration {
	if s.EmptyBackoff > 0 {
		return s.EmptyBackoff
	}
	return DefaultEmptyBackoff
}

// stop raises the signal and, if this call raised it, records line in the report.
func (s *Scheduler) stop(line string) {
	if s.Signal.Set() {
		s.Report.Append(line)
	}
}
