package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/seat-scheduler/internal/credential"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"go.uber.org/zap/zaptest"
)

type fakeIdentity struct {
	calls atomic.Int32
}

func (f *fakeIdentity) Authenticate(context.Context, string, string) (string, error) {
	f.calls.Add(1)
	return "tok", nil
}

// countingCreds wraps a real cache and counts invalidations.
type countingCreds struct {
	*credential.Cache
	invalidations atomic.Int32
}

func (c *countingCreds) Invalidate() {
	c.invalidations.Add(1)
	c.Cache.Invalidate()
}

func newCreds() (*countingCreds, *fakeIdentity) {
	id := &fakeIdentity{}
	return &countingCreds{Cache: credential.New(id, "student", "secret")}, id
}

type fakeClaimer struct {
	calls  atomic.Int32
	submit func(seatID string, n int32) (reservation.ClaimResult, error)
}

func (f *fakeClaimer) Submit(_ context.Context, seatID, _ string, _ reservation.Credential) (reservation.ClaimResult, error) {
	n := f.calls.Add(1)
	return f.submit(seatID, n)
}

func statusOnly(status string) func(string, int32) (reservation.ClaimResult, error) {
	return func(string, int32) (reservation.ClaimResult, error) {
		return reservation.ClaimResult{Status: status}, nil
	}
}

type fakeCatalog struct {
	seats     []reservation.Seat
	listCalls atomic.Int32
}

func (f *fakeCatalog) BuildingID(_ context.Context, classroom string) (string, error) {
	if classroom == "missing" {
		return "", reservation.ErrNotFound
	}
	return "b-" + classroom, nil
}

func (f *fakeCatalog) Segment(context.Context, string, string) (string, error) {
	return "seg", nil
}

func (f *fakeCatalog) ListSeats(context.Context, string, string, string) ([]reservation.Seat, error) {
	f.listCalls.Add(1)
	return f.seats, nil
}

type fakeMembers struct {
	mu    sync.Mutex
	calls int
	// replies are served in order; the last one repeats.
	replies []memberReply
}

type memberReply struct {
	st  reservation.MemberStatus
	err error
}

func (f *fakeMembers) Reservations(context.Context, reservation.Credential) (reservation.MemberStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.replies) == 0 {
		return reservation.MemberStatus{Msg: "ok"}, nil
	}
	r := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return r.st, r.err
}

func (f *fakeMembers) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeSpaces struct {
	mu        sync.Mutex
	checkouts []string
	cancels   []string
	status    string
}

func (f *fakeSpaces) Checkout(_ context.Context, id string, _ reservation.Credential) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkouts = append(f.checkouts, id)
	return f.status, nil
}

func (f *fakeSpaces) Cancel(_ context.Context, id string, _ reservation.Credential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels = append(f.cancels, id)
	return nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (f *fakeNotifier) Name() string { return "fake" }

func (f *fakeNotifier) Notify(_ context.Context, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeNotifier) Messages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.msgs...)
}

type recordingRecorder struct {
	mu       sync.Mutex
	attempts []Attempt
}

func (r *recordingRecorder) RecordAttempt(a Attempt) {
	r.mu.Lock()
	r.attempts = append(r.attempts, a)
	r.mu.Unlock()
}

func newScheduler(t *testing.T, creds Credentials) *Scheduler {
	t.Helper()
	return &Scheduler{
		Catalog:      &fakeCatalog{},
		Members:      &fakeMembers{},
		Spaces:       &fakeSpaces{},
		Creds:        creds,
		Signal:       NewSignal(),
		Report:       &Report{},
		Log:          zaptest.NewLogger(t),
		PollInterval: 10 * time.Millisecond,
		EmptyBackoff: 10 * time.Millisecond,
	}
}
