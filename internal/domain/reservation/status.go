package reservation

import "time"

// Status texts returned in the service's "msg" field. Matching is exact.
const (
	StatusDuplicate   = "当前时段存在预约，不可重复预约!"
	StatusBooked      = "预约成功"
	StatusNotOpen     = "开放预约时间19:20"
	StatusNotLoggedIn = "您尚未登录"
	StatusUnavailable = "该空间当前状态不可预约"

	StatusCheckedOut = "完全离开操作成功"
)

// Member reservation status names.
const (
	MemberBooked        = "预约成功"
	MemberInUse         = "使用中"
	MemberStartReminder = "预约开始提醒"
)

// NotOpenDelay is how long to wait before resubmitting when the window has not opened.
const NotOpenDelay = 3 * time.Second

type Action int

const (
	ActionIgnore Action = iota
	ActionSucceed
	ActionFail
	ActionRetry
	ActionReselect
	ActionRefresh
)

func (a Action) String() string {
	switch a {
	case ActionSucceed:
		return "succeed"
	case ActionFail:
		return "fail"
	case ActionRetry:
		return "retry"
	case ActionReselect:
		return "reselect"
	case ActionRefresh:
		return "refresh"
	}
	return "ignore"
}

type Decision struct {
	Action Action
	// Delay applies to ActionRetry.
	Delay time.Duration
	Note  string
}

func (d Decision) Terminal() bool {
	return d.Action == ActionSucceed || d.Action == ActionFail
}

var statusTable = map[string]Decision{
	StatusDuplicate:   {Action: ActionFail, Note: "a reservation already exists in this time slot"},
	StatusBooked:      {Action: ActionSucceed, Note: "reservation successful"},
	StatusNotOpen:     {Action: ActionRetry, Delay: NotOpenDelay, Note: "booking has not opened yet"},
	StatusNotLoggedIn: {Action: ActionRefresh, Note: "session is not logged in"},
	StatusUnavailable: {Action: ActionReselect, Note: "seat is not bookable, choosing another"},
}

// A pinned seat has nothing to reselect.
var fixedSeatTable = map[string]Decision{
	StatusUnavailable: {Action: ActionFail, Note: "the configured seat is not bookable, change seat_id"},
}

// Interpret maps a status text to the next action of an attempt loop.
// Unknown texts yield ActionIgnore.
func Interpret(status string, mode Mode) Decision {
	if mode == ModeFixed {
		if d, ok := fixedSeatTable[status]; ok {
			return d
		}
	}
	if d, ok := statusTable[status]; ok {
		return d
	}
	return Decision{Action: ActionIgnore, Note: "unrecognized status"}
}
