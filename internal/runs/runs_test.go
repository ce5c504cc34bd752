package runs

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/seat-scheduler/internal/db"
	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/example/seat-scheduler/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type execCall struct {
	sql  string
	args []any
}

type fakeConn struct {
	mu    sync.Mutex
	execs []execCall
	// gate, when set, holds every Exec until closed.
	gate chan struct{}
	fail error
	rows [][]any
}

func (f *fakeConn) Exec(_ context.Context, sql string, args ...any) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.execs = append(f.execs, execCall{sql: sql, args: args})
	return f.fail
}

func (f *fakeConn) QueryRow(context.Context, string, ...any) db.Row {
	return nil
}

func (f *fakeConn) Query(context.Context, string, ...any) (db.Rows, error) {
	return &fakeRows{data: f.rows}, nil
}

func (f *fakeConn) calls() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]execCall(nil), f.execs...)
}

type fakeRows struct {
	data [][]any
	cur  []any
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

func (r *fakeRows) Next() bool {
	if len(r.data) == 0 {
		return false
	}
	r.cur, r.data = r.data[0], r.data[1:]
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	if len(dest) != len(r.cur) {
		return errors.New("column count mismatch")
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.cur[i].(string)
		case **string:
			*p, _ = r.cur[i].(*string)
		case *time.Time:
			*p = r.cur[i].(time.Time)
		case **time.Time:
			*p, _ = r.cur[i].(*time.Time)
		case *int:
			*p = r.cur[i].(int)
		default:
			return errors.New("unsupported scan target")
		}
	}
	return nil
}

func TestNewIDAndFingerprint(t *testing.T) {
	t.Parallel()

	a, err := NewID()
	require.NoError(t, err)
	b, err := NewID()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, idPrefix))
	assert.Len(t, a, len(idPrefix)+idLength)
	assert.NotEqual(t, a, b)

	fp := Fingerprint("2021001")
	assert.Len(t, fp, 16)
	assert.Equal(t, fp, Fingerprint("2021001"))
	assert.NotEqual(t, fp, Fingerprint("2021002"))
	assert.NotContains(t, fp, "2021001")
}

func TestBeginAndFinish(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{}
	repo := NewRepo(conn)
	started := time.Date(2024, 5, 1, 19, 19, 0, 0, time.UTC)

	id, err := repo.Begin(context.Background(), Run{
		UserHash: Fingerprint("u"), Mode: "auto", Scope: "tomorrow", Day: "2024-05-02",
		Targets: []string{"一楼", "二楼"}, StartedAt: started,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Finish(context.Background(), id, StatusDone, "ok", nil))

	calls := conn.calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0].sql, "INSERT INTO runs")
	assert.Equal(t, []any{id, Fingerprint("u"), "auto", "tomorrow", "2024-05-02", "一楼,二楼", StatusRunning, started}, calls[0].args)
	assert.Contains(t, calls[1].sql, "UPDATE runs")
	assert.Equal(t, id, calls[1].args[0])
	assert.Equal(t, StatusDone, calls[1].args[1])
}

func TestBeginWrapsDatabaseError(t *testing.T) {
	t.Parallel()

	repo := NewRepo(&fakeConn{fail: errors.New("connection reset")})
	_, err := repo.Begin(context.Background(), Run{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs: begin: connection reset")
}

func TestRecent(t *testing.T) {
	t.Parallel()

	started := time.Date(2024, 5, 1, 19, 19, 0, 0, time.UTC)
	msg := "boom"
	conn := &fakeConn{rows: [][]any{
		{"run-a", "h", "auto", "tomorrow", "2024-05-02", "一楼,二楼", StatusFailed, "report", &msg, started, (*time.Time)(nil), 7},
		{"run-b", "h", "checkout", "today", "2024-05-01", "", StatusDone, "", (*string)(nil), started, &started, 0},
	}}

	got, err := NewRepo(conn).Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"一楼", "二楼"}, got[0].Targets)
	assert.Equal(t, 7, got[0].Attempts)
	require.NotNil(t, got[0].LastError)
	assert.Equal(t, "boom", *got[0].LastError)
	assert.Nil(t, got[1].Targets)
	assert.NotNil(t, got[1].FinishedAt)
}

func TestLedgerWritesInBackgroundAndDrainsOnClose(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{gate: make(chan struct{})}
	l := NewLedger(NewRepo(conn), "run-x", 8, zaptest.NewLogger(t))

	at := time.Now()
	for i := 0; i < 5; i++ {
		// returns immediately even though the database is blocked
		l.RecordAttempt(scheduler.Attempt{Target: "一楼", SeatID: "7001", Status: reservation.StatusNotOpen, Action: reservation.ActionRetry, At: at})
	}
	close(conn.gate)
	l.Close()

	calls := conn.calls()
	require.Len(t, calls, 5)
	assert.Contains(t, calls[0].sql, "INSERT INTO claim_attempts")
	assert.Equal(t, []any{"run-x", "一楼", "7001", reservation.StatusNotOpen, "retry", at}, calls[0].args)
	assert.Zero(t, l.Dropped())

	l.RecordAttempt(scheduler.Attempt{Target: "late"})
	l.Close()
	assert.Len(t, conn.calls(), 5)
}

func TestLedgerDropsWhenFull(t *testing.T) {
	t.Parallel()

	conn := &fakeConn{gate: make(chan struct{})}
	l := NewLedger(NewRepo(conn), "run-y", 1, zaptest.NewLogger(t))

	for i := 0; i < 10; i++ {
		l.RecordAttempt(scheduler.Attempt{Target: "t"})
	}
	close(conn.gate)
	l.Close()

	assert.Equal(t, int64(10), l.Dropped()+int64(len(conn.calls())))
	assert.Positive(t, l.Dropped())
}
