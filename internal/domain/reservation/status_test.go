package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInterpretRecognizedStatuses(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status string
		action Action
	}{
		{StatusDuplicate, ActionFail},
		{StatusBooked, ActionSucceed},
		{StatusNotOpen, ActionRetry},
		{StatusNotLoggedIn, ActionRefresh},
		{StatusUnavailable, ActionReselect},
	}
	for _, mode := range []Mode{ModeAuto, ModeRandom, ModeRebook} {
		for _, tt := range tests {
			got := Interpret(tt.status, mode)
			assert.Equal(t, tt.action, got.Action, "status %q mode %s", tt.status, mode)
		}
	}
}

func TestInterpretUnavailableBranchesOnFixedMode(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ActionFail, Interpret(StatusUnavailable, ModeFixed).Action)
	assert.Equal(t, ActionReselect, Interpret(StatusUnavailable, ModeAuto).Action)

	// the rest of the table does not depend on the mode
	assert.Equal(t, ActionSucceed, Interpret(StatusBooked, ModeFixed).Action)
	assert.Equal(t, ActionRefresh, Interpret(StatusNotLoggedIn, ModeFixed).Action)
}

func TestInterpretNotOpenCarriesDelay(t *testing.T) {
	t.Parallel()

	d := Interpret(StatusNotOpen, ModeAuto)
	assert.Equal(t, NotOpenDelay, d.Delay)
	assert.False(t, d.Terminal())
}

func TestInterpretUnknownStatusIsIgnored(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "ok", "预约成功 ", "reservation successful", StatusCheckedOut} {
		d := Interpret(s, ModeAuto)
		assert.Equal(t, ActionIgnore, d.Action, "status %q", s)
		assert.False(t, d.Terminal())
	}
}
