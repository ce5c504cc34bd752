package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const flushTimeout = 15 * time.Second

// Waiter holds a run back until the reservation window opens.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Plan is what one run pursues.
type Plan struct {
	Mode    reservation.Mode
	Scope   reservation.DateScope
	Targets []reservation.Target
}

// Orchestrator sequences a run: gate, first login, loops, join, report.
type Orchestrator struct {
	Scheduler *Scheduler
	// Gate is consulted when booking for tomorrow; nil skips it.
	Gate     Waiter
	Notifier reservation.Notifier
	Log      *zap.Logger
}

// Run executes plan and flushes the report exactly once. A nil error means
// the run ended with a business outcome, successful or not.
func (o *Orchestrator) Run(ctx context.Context, plan Plan) error {
	log := logging.OrNop(o.Log).Named("orchestrator")
	s := o.Scheduler

	err := o.run(ctx, log, plan)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		log.Warn("orchestrator: run interrupted")
		s.Report.Append("seat run interrupted")
	case errors.Is(err, reservation.ErrTooEarly):
		log.Error("orchestrator: started too early", zap.Error(err))
		s.Report.Append(fmt.Sprintf("seat run started too early, check the schedule: %v", err))
	default:
		log.Error("orchestrator: run failed", zap.Error(err))
		s.Report.Append(fmt.Sprintf("seat run failed: %v", err))
	}

	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), flushTimeout)
	defer cancel()
	s.Report.Flush(fctx, o.Notifier, log)
	return err
}

func (o *Orchestrator) run(ctx context.Context, log *zap.Logger, plan Plan) error {
	s := o.Scheduler
	log.Info("orchestrator: run starting",
		zap.String("mode", string(plan.Mode)), zap.String("scope", string(plan.Scope)), zap.Int("targets", len(plan.Targets)))

	if plan.Mode == reservation.ModeCheckout {
		return s.Checkout(ctx)
	}

	if plan.Mode.Books() && plan.Scope == reservation.ScopeTomorrow && o.Gate != nil {
		if err := o.Gate.Wait(ctx); err != nil {
			return err
		}
	}
	if _, err := s.Creds.Ensure(ctx); err != nil {
		return err
	}

	targets := plan.Targets
	if plan.Mode == reservation.ModeRebook {
		t, ok, err := s.PrepareRebook(ctx, plan.Scope)
		if err != nil || !ok {
			return err
		}
		targets = []reservation.Target{t}
	}
	return o.spawn(ctx, plan.Scope, targets)
}

// spawn runs one attempt loop per target next to both watchers and joins
// them. The watchers stop once every attempt loop has returned.
func (o *Orchestrator) spawn(ctx context.Context, scope reservation.DateScope, targets []reservation.Target) error {
	s := o.Scheduler
	g, gctx := errgroup.WithContext(ctx)
	wctx, stopWatchers := context.WithCancel(gctx)
	defer stopWatchers()

	g.Go(func() error { return s.WatchBookings(wctx, scope) })
	g.Go(func() error { return s.WatchSession(wctx) })
	g.Go(func() error {
		defer stopWatchers()
		loops, lctx := errgroup.WithContext(gctx)
		for _, t := range targets {
			loops.Go(func() error { return s.RunTarget(lctx, t) })
		}
		return loops.Wait()
	})
	return g.Wait()
}
