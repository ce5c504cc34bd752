package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"go.uber.org/zap"
)

// ParseRetries bounds how often checkout and rebook start over after an
// unusable response before giving up.
const ParseRetries = 3

// Checkout leaves the seat currently in use.
func (s *Scheduler) Checkout(ctx context.Context) error {
	log := s.log().Named("checkout")
	return s.withParseRetries(ctx, log, "checkout", func(cred reservation.Credential, st reservation.MemberStatus) error {
		var inUse *reservation.MemberReservation
		for i := range st.Items {
			if st.Items[i].StatusName == reservation.MemberInUse {
				inUse = &st.Items[i]
				break
			}
		}
		if inUse == nil {
			log.Error("checkout: no seat in use")
			s.Report.Append("checkout: no seat in use today, nothing to leave")
			return nil
		}

		msg, err := s.Spaces.Checkout(ctx, inUse.ID, cred)
		if err != nil {
			return err
		}
		log.Info("checkout: answered", zap.String("reservation", inUse.ID), zap.String("status", msg))
		if msg == reservation.StatusCheckedOut {
			s.Report.Append(fmt.Sprintf("checkout: left seat %s (%s)", inUse.Space, inUse.NameMerge))
		} else {
			s.Report.Append(fmt.Sprintf("checkout: seat %s already left: %s", inUse.Space, msg))
		}
		return nil
	})
}

// PrepareRebook cancels the reservation waiting for check-in and returns a
// fixed seat target for the same seat. ok is false when there is nothing to
// rebook.
func (s *Scheduler) PrepareRebook(ctx context.Context, scope reservation.DateScope) (t reservation.Target, ok bool, err error) {
	log := s.log().Named("rebook")
	day := scope.Day(s.now())
	err = s.withParseRetries(ctx, log, "rebook", func(cred reservation.Credential, st reservation.MemberStatus) error {
		var pending *reservation.MemberReservation
		for i := range st.Items {
			if st.Items[i].StatusName == reservation.MemberStartReminder {
				pending = &st.Items[i]
				break
			}
		}
		if pending == nil {
			log.Error("rebook: no reservation awaiting check-in")
			s.Report.Append("rebook: no booked seat found, nothing to extend")
			return nil
		}

		classroom := pending.Building()
		buildingID, err := s.Catalog.BuildingID(ctx, classroom)
		if err != nil {
			return err
		}
		segment, err := s.Catalog.Segment(ctx, buildingID, day)
		if err != nil {
			return err
		}
		if err := s.Spaces.Cancel(ctx, pending.ID, cred); err != nil {
			return err
		}
		log.Info("rebook: cancelled reservation",
			zap.String("reservation", pending.ID), zap.String("seat", pending.Space), zap.String("classroom", classroom))

		t = reservation.Target{
			Classroom:  classroom,
			Mode:       reservation.ModeFixed,
			Scope:      scope,
			SeatID:     pending.Space,
			BuildingID: buildingID,
			Segment:    segment,
		}
		ok = true
		return nil
	})
	return t, ok, err
}

// withParseRetries fetches member status and runs fn, starting over with a
// fresh credential while either step yields a malformed response.
func (s *Scheduler) withParseRetries(ctx context.Context, log *zap.Logger, op string, fn func(reservation.Credential, reservation.MemberStatus) error) error {
	var lastErr error
	for attempt := 0; attempt <= ParseRetries; attempt++ {
		if attempt > 0 {
			s.Creds.Invalidate()
		}
		cred, err := s.Creds.Ensure(ctx)
		if err != nil {
			return err
		}
		st, err := s.Members.Reservations(ctx, cred)
		if err == nil {
			err = fn(cred, st)
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, reservation.ErrMalformedResponse) {
			return err
		}
		lastErr = err
		log.Warn(op+": response did not match, retrying with a fresh login",
			zap.Int("attempt", attempt+1), zap.Error(err))
	}
	return fmt.Errorf("%s: gave up after %d retries: %w", op, ParseRetries, lastErr)
}
