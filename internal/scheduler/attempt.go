package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"go.uber.org/zap"
)

// RunTarget pursues one target until a terminal status, the signal, or a fatal
// error. It returns nil when the loop ended because of a business outcome or
// the signal.
func (s *Scheduler) RunTarget(ctx context.Context, t reservation.Target) error {
	log := s.log().Named("attempt").With(zap.String("target", t.Name()), zap.String("mode", string(t.Mode)))
	day := t.Scope.Day(s.now())

	ok, err := s.resolve(ctx, log, &t, day)
	if err != nil || !ok {
		return err
	}
	log.Info("attempt: starting", zap.String("day", day), zap.String("segment", t.Segment))

	for {
		if s.Signal.IsSet() {
			log.Info("attempt: stop signal observed")
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		seat, ok, err := s.candidate(ctx, log, t, day)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}

		cred, err := s.Creds.Ensure(ctx)
		if err != nil {
			return err
		}
		if s.Signal.IsSet() {
			log.Info("attempt: stop signal observed")
			return nil
		}
		res, err := s.Claimer.Submit(ctx, seat.ID, t.Segment, cred)
		if err != nil {
			if ctx.Err() != nil || reservation.IsFatal(err) {
				return err
			}
			log.Warn("attempt: unusable claim response", zap.String("seat", seat.ID), zap.Error(err))
			continue
		}

		d := reservation.Interpret(res.Status, t.Mode)
		s.Metrics.ObserveClaim(t.Name(), d.Action.String())
		s.recorder().RecordAttempt(Attempt{Target: t.Name(), SeatID: seat.ID, Status: res.Status, Action: d.Action, At: s.now()})
		log.Info("attempt: claim answered",
			zap.String("seat", seat.ID), zap.String("status", res.Status), zap.Stringer("action", d.Action))
		if s.Signal.IsSet() && d.Action != reservation.ActionSucceed {
			log.Info("attempt: stop signal observed while claiming")
			return nil
		}

		switch d.Action {
		case reservation.ActionSucceed:
			label := res.Seat
			if label == "" {
				label = seat.Label
			}
			if label == "" {
				label = seat.ID
			}
			s.Report.Append(fmt.Sprintf("%s: %s, seat %s on %s", t.Name(), d.Note, label, day))
			s.Signal.Set()
			return nil
		case reservation.ActionFail:
			s.Report.Append(fmt.Sprintf("%s: %s", t.Name(), d.Note))
			s.Signal.Set()
			return nil
		case reservation.ActionRetry:
			if err := s.sleep(ctx, d.Delay); err != nil {
				return err
			}
		case reservation.ActionRefresh:
			s.Creds.Invalidate()
			if _, err := s.Creds.Ensure(ctx); err != nil {
				return err
			}
		case reservation.ActionIgnore:
			log.Warn("attempt: unrecognized status", zap.String("status", res.Status))
		}
	}
}

// resolve fills in the building and segment of t when they are not known yet.
// ok is false when the classroom does not exist.
func (s *Scheduler) resolve(ctx context.Context, log *zap.Logger, t *reservation.Target, day string) (bool, error) {
	for t.BuildingID == "" || t.Segment == "" {
		if s.Signal.IsSet() {
			return false, nil
		}
		var err error
		if t.BuildingID == "" {
			t.BuildingID, err = s.Catalog.BuildingID(ctx, t.Classroom)
		}
		if err == nil {
			t.Segment, err = s.Catalog.Segment(ctx, t.BuildingID, day)
		}
		if err == nil {
			break
		}
		if ctx.Err() != nil || reservation.IsFatal(err) {
			return false, err
		}
		if errors.Is(err, reservation.ErrNotFound) && t.BuildingID == "" {
			log.Error("attempt: unknown classroom", zap.Error(err))
			s.Report.Append(fmt.Sprintf("%s: classroom not found", t.Name()))
			return false, nil
		}
		log.Warn("attempt: catalog lookup failed", zap.Error(err))
		if err := s.sleep(ctx, s.emptyBackoff()); err != nil {
			return false, err
		}
	}
	return !s.Signal.IsSet(), nil
}

// candidate picks the seat to claim this iteration. ok is false when the loop
// should go round again without submitting.
func (s *Scheduler) candidate(ctx context.Context, log *zap.Logger, t reservation.Target, day string) (reservation.Seat, bool, error) {
	if t.Mode == reservation.ModeFixed {
		return reservation.Seat{ID: t.SeatID}, true, nil
	}

	seats, err := s.Catalog.ListSeats(ctx, t.BuildingID, t.Segment, day)
	if err != nil {
		if ctx.Err() != nil || reservation.IsFatal(err) {
			return reservation.Seat{}, false, err
		}
		log.Warn("attempt: seat list failed", zap.Error(err))
		return reservation.Seat{}, false, s.sleep(ctx, s.emptyBackoff())
	}
	if s.Signal.IsSet() {
		return reservation.Seat{}, false, nil
	}

	seat, ok := reservation.ChooseSeat(reservation.Candidates(t.Mode, seats, s.deny()))
	if !ok {
		s.Metrics.ObserveEmptyCatalog(t.Name())
		log.Debug("attempt: no claimable seat", zap.Int("listed", len(seats)))
		return reservation.Seat{}, false, s.sleep(ctx, s.emptyBackoff())
	}
	return seat, true, nil
}
