package reconcile

import (
	"time"

	"todosync/internal/due"
	"todosync/internal/models"
)

// Reason explains why an assignment produced no tracker change.
type Reason string

const (
	ReasonNone         Reason = ""
	ReasonPastDue      Reason = "past_due"
	ReasonNoDueDate    Reason = "no_due_date"
	ReasonUngraded     Reason = "ungraded"
	ReasonLocked       Reason = "locked"
	ReasonSubmitted    Reason = "already_submitted"
	ReasonMalformedDue Reason = "malformed_due"
	ReasonNoProject    Reason = "no_project"
)

// Skipped reports whether r counts as skipped rather than excluded.
func (r Reason) Skipped() bool {
	switch r {
	case ReasonPastDue, ReasonMalformedDue, ReasonSubmitted, ReasonNoProject:
		return true
	default:
		return false
	}
}

// lockGrace is how far ahead an unlock date may be and still be synced.
const lockGrace = 3 * 24 * time.Hour

var ungradedTypes = map[string]struct{}{
	"not_graded": {},
	"none":       {},
	"on_paper":   {},
}

// Policy holds the user's exclusion switches.
type Policy struct {
	SyncNullAssignments      bool
	SyncLockedAssignments    bool
	SyncNoDueDateAssignments bool
}

// ShouldExclude evaluates every exclusion rule in precedence order without
// looking at tracker state.
func (p Policy) ShouldExclude(a models.Assignment, now time.Time) Reason {
	dueAt, err := due.Parse(a.DueAt)
	if err != nil {
		return ReasonMalformedDue
	}
	if PastDue(dueAt, now) {
		return ReasonPastDue
	}
	if r := p.dueRule(dueAt); r != ReasonNone {
		return r
	}
	if r := p.scanRule(a, now); r != ReasonNone {
		return r
	}
	return submittedRule(a)
}

// PastDue reports whether a due instant is at or before now.
func PastDue(dueAt *time.Time, now time.Time) bool {
	return dueAt != nil && !dueAt.After(now.UTC())
}

func (p Policy) dueRule(dueAt *time.Time) Reason {
	if dueAt == nil && !p.SyncNoDueDateAssignments {
		return ReasonNoDueDate
	}
	return ReasonNone
}

// scanRule covers the ungraded and locked rules. They are checked against
// every non-matching task during a scan and end it early.
func (p Policy) scanRule(a models.Assignment, now time.Time) Reason {
	if !p.SyncNullAssignments {
		if _, ok := ungradedTypes[a.PrimarySubmissionType()]; ok {
			return ReasonUngraded
		}
	}
	if !p.SyncLockedAssignments {
		unlockAt, err := due.Parse(a.UnlockAt)
		if err != nil {
			unlockAt = nil
		}
		if unlockAt != nil && unlockAt.After(now.Add(lockGrace)) {
			return ReasonLocked
		}
		if a.UnlockAt == "" && a.LockedForUser {
			return ReasonLocked
		}
	}
	return ReasonNone
}

func submittedRule(a models.Assignment) Reason {
	if a.WorkflowState() != models.WorkflowStateUnsubmitted {
		return ReasonSubmitted
	}
	return ReasonNone
}
