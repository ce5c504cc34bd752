package reservation

import (
	"fmt"
	"strings"
	"time"
)

type Mode string

const (
	// ModeAuto picks a random seat after dropping the denylist.
	ModeAuto     Mode = "auto"
	ModeFixed    Mode = "fixed"
	ModeRandom   Mode = "random"
	ModeCheckout Mode = "checkout"
	ModeRebook   Mode = "rebook"
)

// ParseMode accepts the mode names and the numeric aliases 1-5 used by older config files.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", string(ModeAuto):
		return ModeAuto, nil
	case "2", string(ModeFixed):
		return ModeFixed, nil
	case "3", string(ModeRandom):
		return ModeRandom, nil
	case "4", string(ModeCheckout):
		return ModeCheckout, nil
	case "5", string(ModeRebook):
		return ModeRebook, nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Books reports whether the mode runs the seat claiming loops directly.
func (m Mode) Books() bool {
	return m == ModeAuto || m == ModeFixed || m == ModeRandom
}

type DateScope string

const (
	ScopeToday    DateScope = "today"
	ScopeTomorrow DateScope = "tomorrow"
)

func ParseDateScope(s string) (DateScope, error) {
	switch DateScope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeToday:
		return ScopeToday, nil
	case ScopeTomorrow:
		return ScopeTomorrow, nil
	}
	return "", fmt.Errorf("unknown date %q (want today or tomorrow)", s)
}

// Day returns the booking date for the scope as YYYY-MM-DD in now's location.
func (d DateScope) Day(now time.Time) string {
	if d == ScopeTomorrow {
		now = now.AddDate(0, 0, 1)
	}
	return now.Format("2006-01-02")
}

// Credential is an authorization token and the time it was issued.
type Credential struct {
	Token    string
	IssuedAt time.Time
}

// Target is one classroom (or one pinned seat) pursued by its own attempt loop.
type Target struct {
	Classroom string
	Mode      Mode
	Scope     DateScope

	// SeatID pins the seat for ModeFixed.
	SeatID string

	// BuildingID and Segment skip the catalog lookups when already known (rebook).
	BuildingID string
	Segment    string
}

func (t Target) Name() string {
	if t.Classroom != "" {
		return t.Classroom
	}
	return "seat:" + t.SeatID
}

type Seat struct {
	ID    string
	Label string
}

type ClaimResult struct {
	Status string
	Seat   string
}

// MemberReservation is one entry of the member's own reservation list.
type MemberReservation struct {
	ID         string
	StatusName string
	Space      string
	NameMerge  string
}

// Building returns the classroom name embedded in NameMerge ("<floor>-<classroom>").
func (r MemberReservation) Building() string {
	if _, after, ok := strings.Cut(r.NameMerge, "-"); ok {
		return after
	}
	return r.NameMerge
}

type MemberStatus struct {
	Msg   string
	Items []MemberReservation
}
