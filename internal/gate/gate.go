// Package gate holds a run back until the daily reservation window opens.
package gate

import (
	"context"
	"fmt"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"go.uber.org/zap"
)

const (
	OpenHour   = 19
	OpenMinute = 20

	abortAbove  = 1000 * time.Second
	coarseAbove = 300 * time.Second
	coarseSleep = 30 * time.Second
	fineAbove   = 60 * time.Second
	fineSleep   = 5 * time.Second
)

// Step returns how long to sleep for the given time left before opening.
// Zero means proceed now; ErrTooEarly means the run started far too early.
func Step(remaining time.Duration) (time.Duration, error) {
	switch {
	case remaining > abortAbove:
		return 0, reservation.ErrTooEarly
	case remaining > coarseAbove:
		return coarseSleep, nil
	case remaining > fineAbove:
		return fineSleep, nil
	}
	return 0, nil
}

type Gate struct {
	Location *time.Location
	Now      func() time.Time
	Sleep    func(ctx context.Context, d time.Duration) error
	Log      *zap.Logger
}

// Opening returns today's opening instant in the gate's location.
func (g *Gate) Opening(now time.Time) time.Time {
	now = now.In(g.location())
	return time.Date(now.Year(), now.Month(), now.Day(), OpenHour, OpenMinute, 0, 0, g.location())
}

// Wait blocks until the window is at most a minute away. The clock is read
// again after every sleep.
func (g *Gate) Wait(ctx context.Context) error {
	log := logging.OrNop(g.Log)
	for {
		now := g.now()
		remaining := g.Opening(now).Sub(now)
		log.Info("gate: waiting for window",
			zap.Time("now", now.In(g.location())),
			zap.Duration("remaining", remaining))

		d, err := Step(remaining)
		if err != nil {
			return fmt.Errorf("%w: %s before opening", err, remaining.Round(time.Second))
		}
		if d == 0 {
			return nil
		}
		if err := g.sleep(ctx, d); err != nil {
			return err
		}
	}
}

func (g *Gate) location() *time.Location {
	if g.Location != nil {
		return g.Location
	}
	return time.Local
}

func (g *Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now()
}

func (g *Gate) sleep(ctx context.Context, d time.Duration) error {
	if g.Sleep != nil {
		return g.Sleep(ctx, d)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
