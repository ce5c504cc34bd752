package scheduler

import (
	"context"
	"fmt"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"go.uber.org/zap"
)

const (
	watcherBookings = "bookings"
	watcherSession  = "session"
)

// WatchBookings stops the run once the member already holds a reservation for
// the scope: a confirmed booking for tomorrow, or a seat in use today.
func (s *Scheduler) WatchBookings(ctx context.Context, scope reservation.DateScope) error {
	want := reservation.MemberBooked
	if scope == reservation.ScopeToday {
		want = reservation.MemberInUse
	}
	return s.watch(ctx, watcherBookings, func(log *zap.Logger, st reservation.MemberStatus, err error) error {
		if err != nil {
			log.Debug("watcher: member status unusable", zap.Error(err))
			return nil
		}
		for _, it := range st.Items {
			if it.StatusName == want {
				s.stop(fmt.Sprintf("existing reservation found: %s seat %s (%s)", it.NameMerge, it.Space, it.StatusName))
				return nil
			}
		}
		return nil
	})
}

// WatchSession interprets the member endpoint's own status text with fixed
// seat semantics: terminal texts stop the run and a lost session is renewed.
func (s *Scheduler) WatchSession(ctx context.Context) error {
	return s.watch(ctx, watcherSession, func(log *zap.Logger, st reservation.MemberStatus, _ error) error {
		if st.Msg == "" {
			return nil
		}
		d := reservation.Interpret(st.Msg, reservation.ModeFixed)
		switch {
		case d.Terminal():
			s.stop(fmt.Sprintf("session: %s", d.Note))
		case d.Action == reservation.ActionRefresh:
			log.Info("watcher: session lost, refreshing credential")
			s.Creds.Invalidate()
			if _, err := s.Creds.Ensure(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

// watch polls member status until the signal is set or ctx ends. Only fatal
// errors are returned; a cancelled ctx ends the watcher quietly.
func (s *Scheduler) watch(ctx context.Context, name string, handle func(*zap.Logger, reservation.MemberStatus, error) error) error {
	log := s.log().Named("watcher").With(zap.String("watcher", name))
	for {
		if s.Signal.IsSet() || ctx.Err() != nil {
			return nil
		}

		cred, err := s.Creds.Ensure(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		st, err := s.Members.Reservations(ctx, cred)
		s.Metrics.ObserveWatcherPoll(name)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil && reservation.IsFatal(err) {
			return err
		}
		if s.Signal.IsSet() {
			return nil
		}
		if err := handle(log, st, err); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := s.sleep(ctx, s.pollInterval()); err != nil {
			return nil
		}
	}
}
