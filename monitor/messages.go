package monitor

import (
	"time"

	"newsbot/types"
)

// StatusUpdateMsg carries a status board snapshot
type StatusUpdateMsg struct {
	Status *types.StatusResponse
	Err    error
}

// TickMsg triggers the next status poll
type TickMsg struct {
	Time time.Time
}

// PollDoneMsg is sent when a manual poll returns
type PollDoneMsg struct {
	Channel string
	Report  *types.CycleReport
	Err     error
}

// ResetDoneMsg is sent when a keyword reset returns
type ResetDoneMsg struct {
	Removed int64
	Err     error
}
