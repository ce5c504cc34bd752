package gate

import (
	"context"
	"testing"
	"time"

	"github.com/example/seat-scheduler/internal/domain/reservation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var cst = time.FixedZone("CST", 8*3600)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
	// jump, when set, replaces the clock after each sleep instead of advancing it
	jump []time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	if len(c.jump) > 0 {
		c.now, c.jump = c.jump[0], c.jump[1:]
		return nil
	}
	c.now = c.now.Add(d)
	return nil
}

func before(remaining time.Duration) time.Time {
	open := time.Date(2024, 5, 1, OpenHour, OpenMinute, 0, 0, cst)
	return open.Add(-remaining)
}

func newGate(c *fakeClock) *Gate {
	return &Gate{Location: cst, Now: c.Now, Sleep: c.Sleep}
}

func TestStep(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remaining time.Duration
		sleep     time.Duration
		tooEarly  bool
	}{
		{1500 * time.Second, 0, true},
		{1001 * time.Second, 0, true},
		{1000 * time.Second, 30 * time.Second, false},
		{500 * time.Second, 30 * time.Second, false},
		{300 * time.Second, 5 * time.Second, false},
		{61 * time.Second, 5 * time.Second, false},
		{60 * time.Second, 0, false},
		{30 * time.Second, 0, false},
		{-10 * time.Minute, 0, false},
	}
	for _, tt := range tests {
		d, err := Step(tt.remaining)
		if tt.tooEarly {
			assert.ErrorIs(t, err, reservation.ErrTooEarly, tt.remaining)
			continue
		}
		require.NoError(t, err, tt.remaining)
		assert.Equal(t, tt.sleep, d, tt.remaining)
	}
}

func TestWaitTooEarlyDoesNotSleep(t *testing.T) {
	t.Parallel()

	c := &fakeClock{now: before(1500 * time.Second)}
	err := newGate(c).Wait(context.Background())
	require.ErrorIs(t, err, reservation.ErrTooEarly)
	assert.Empty(t, c.sleeps)
}

func TestWaitSleepsCoarseThenRecomputes(t *testing.T) {
	t.Parallel()

	c := &fakeClock{
		now:  before(500 * time.Second),
		jump: []time.Time{before(30 * time.Second)},
	}
	require.NoError(t, newGate(c).Wait(context.Background()))
	assert.Equal(t, []time.Duration{30 * time.Second}, c.sleeps)
}

func TestWaitReturnsImmediatelyInsideLastMinute(t *testing.T) {
	t.Parallel()

	c := &fakeClock{now: before(30 * time.Second)}
	require.NoError(t, newGate(c).Wait(context.Background()))
	assert.Empty(t, c.sleeps)
}

func TestWaitWalksDownToOpening(t *testing.T) {
	t.Parallel()

	c := &fakeClock{now: before(400 * time.Second)}
	require.NoError(t, newGate(c).Wait(context.Background()))

	// 400 -> 370 -> 340 -> 310 -> 280 coarse, then 5s steps down to 60
	require.Len(t, c.sleeps, 4+44)
	assert.Equal(t, 30*time.Second, c.sleeps[0])
	assert.Equal(t, 5*time.Second, c.sleeps[len(c.sleeps)-1])
}

func TestWaitHonoursCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := &Gate{Location: cst, Now: func() time.Time { return before(500 * time.Second) }}
	require.ErrorIs(t, g.Wait(ctx), context.Canceled)
}

func TestOpeningUsesGateLocation(t *testing.T) {
	t.Parallel()

	g := &Gate{Location: cst}
	// 12:00 UTC is 20:00 in UTC+8, so today's opening has passed.
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	open := g.Opening(now)
	assert.Equal(t, time.Date(2024, 5, 1, 19, 20, 0, 0, cst), open)
	assert.True(t, open.Before(now))
}
