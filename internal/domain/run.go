package domain

import "time"

// RunState tracks pipeline progress through one invocation.
type RunState string

const (
	StateIdle            RunState = "idle"
	StateFetched         RunState = "fetched"
	StateDiffed          RunState = "diffed"
	StateNothingToReport RunState = "nothing_to_report"
	StateComposed        RunState = "composed"
	StateSigned          RunState = "signed"
	StatePublished       RunState = "published"
	StateDone            RunState = "done"
	StateFailed          RunState = "failed"
)

// RunStats holds statistics about one report run.
type RunStats struct {
	Fetched   int
	New       int
	Skipped   int
	EventID   string
	Acked     int
	Rejected  int
	FailedNum int
	State     RunState
	Duration  time.Duration
}
