package reconcile

import (
	"todosync/internal/throttle"
)

// Action is the outcome of reconciling one assignment.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionUnchanged Action = "unchanged"
	ActionExclude   Action = "exclude"
	ActionSkip      Action = "skip"
)

// Decision records what happened to one assignment.
type Decision struct {
	AssignmentID int64
	Name         string
	Action       Action
	Reason       Reason
	TaskID       string
	Err          error
}

// RunState accumulates the counters of one engine run. A fresh value is
// created per run and returned to the caller.
type RunState struct {
	Created       int
	Updated       int
	AlreadySynced int
	Excluded      int
	Skipped       int
	Failed        int

	Reasons      map[Reason]int
	LimitReached bool
	LimitCause   throttle.Cause
	Evaluated    int
	Decisions    []Decision
}

func newRunState() *RunState {
	return &RunState{Reasons: make(map[Reason]int)}
}

func (s *RunState) record(d Decision) {
	s.Decisions = append(s.Decisions, d)
	if d.Reason != ReasonNone {
		s.Reasons[d.Reason]++
	}
	if d.Err != nil {
		s.Failed++
		return
	}
	switch d.Action {
	case ActionCreate:
		s.Created++
	case ActionUpdate:
		s.Updated++
	case ActionUnchanged:
		s.AlreadySynced++
	case ActionExclude:
		s.Excluded++
	case ActionSkip:
		s.Skipped++
	}
}
