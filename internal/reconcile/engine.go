// Package reconcile decides, for every fetched assignment, whether its tracker
// task must be created, have its description refreshed, be left alone, or
// be skipped, and issues the resulting calls through a throttle guard.
package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"todosync/internal/due"
	"todosync/internal/models"
	"todosync/internal/throttle"
)

// Tracker is the mutating half of the task tracker.
type Tracker interface {
	CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error)
	UpdateTaskDescription(ctx context.Context, id, description string) error
}

// Options configure an engine.
type Options struct {
	Policy   Policy
	Priority int
	Labels   []string
}

// Engine reconciles assignments against tracker tasks.
type Engine struct {
	opts    Options
	tracker Tracker
	guard   *throttle.Guard
	norm    *due.Normalizer
	logger  zerolog.Logger
	now     func() time.Time
}

// NewEngine wires an engine for one run. The guard must be fresh per run.
func NewEngine(opts Options, tracker Tracker, guard *throttle.Guard, norm *due.Normalizer, logger zerolog.Logger) *Engine {
	return &Engine{
		opts:    opts,
		tracker: tracker,
		guard:   guard,
		norm:    norm,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the engine clock.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

type scanState int

const (
	stateScanning scanState = iota
	stateMatched
	stateExcluded
	stateNotFound
)

// Run reconciles assignments in order. projects maps a course id to its
// tracker project id. Processing stops after the assignment during which
// the guard trips; the remaining assignments are not evaluated.
func (e *Engine) Run(ctx context.Context, assignments []models.Assignment, tasks []models.Task, projects map[int64]string) *RunState {
	st := newRunState()
	ix := NewIndex(tasks)
	now := e.now().UTC()

	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			e.logger.Warn().Err(err).Msg("reconciliation interrupted")
			break
		}
		st.Evaluated++
		st.record(e.reconcile(ctx, a, ix, projects, now))

		if e.guard.CheckCeiling(st.Created) {
			break
		}
	}

	st.LimitReached = e.guard.LimitReached()
	st.LimitCause = e.guard.Cause()
	if err := e.guard.Err(); err != nil {
		e.logger.Error().Err(err).Int("evaluated", st.Evaluated).Int("total", len(assignments)).Msg("stopped after a failed tracker call")
	}
	return st
}

func (e *Engine) reconcile(ctx context.Context, a models.Assignment, ix *Index, projects map[int64]string, now time.Time) Decision {
	d := Decision{AssignmentID: a.ID, Name: a.Name}
	log := e.logger.With().Int64("assignment_id", a.ID).Str("assignment", a.Name).Int64("course_id", a.CourseID).Logger()

	dueAt, err := due.Parse(a.DueAt)
	if err != nil {
		log.Warn().Err(err).Msg("skipping assignment with invalid due date")
		return skip(d, ReasonMalformedDue)
	}
	if PastDue(dueAt, now) {
		log.Debug().Msg("assignment is past due")
		return skip(d, ReasonPastDue)
	}
	if r := e.opts.Policy.dueRule(dueAt); r != ReasonNone {
		log.Info().Msg("excluding assignment with no due date")
		return exclude(d, r)
	}

	projectID, ok := projects[a.CourseID]
	if !ok {
		log.Warn().Msg("no tracker project for course")
		return skip(d, ReasonNoProject)
	}

	key := Key{ProjectID: projectID, Content: ContentFor(a)}
	state := stateScanning
	task, reason := ix.Scan(key, func() Reason { return e.opts.Policy.scanRule(a, now) })
	switch {
	case task != nil:
		state = stateMatched
	case reason != ReasonNone:
		state = stateExcluded
	default:
		state = stateNotFound
	}

	switch state {
	case stateMatched:
		return e.matched(ctx, log, d, a, *task, dueAt)
	case stateExcluded:
		log.Info().Str("reason", string(reason)).Str("lock_explanation", a.LockExplanation).Msg("excluding assignment")
		return exclude(d, reason)
	default:
		return e.notFound(ctx, log, d, a, key, dueAt, now)
	}
}

func (e *Engine) matched(ctx context.Context, log zerolog.Logger, d Decision, a models.Assignment, task models.Task, dueAt *time.Time) Decision {
	d.TaskID = task.ID
	if r := submittedRule(a); r != ReasonNone {
		log.Debug().Str("task_id", task.ID).Msg("assignment already submitted, leaving task untouched")
		return skip(d, r)
	}

	description := e.norm.Description(dueAt)
	switch {
	case task.Description == "":
		log.Info().Str("task_id", task.ID).Msg("task has no description, updating")
	case task.Description != description:
		log.Info().Str("task_id", task.ID).Str("from", task.Description).Str("to", description).Msg("due date changed, updating description")
	default:
		d.Action = ActionUnchanged
		return d
	}

	d.Action = ActionUpdate
	d.Err = e.guard.Do(ctx, "update_task", func(ctx context.Context) error {
		return e.tracker.UpdateTaskDescription(ctx, task.ID, description)
	})
	return d
}

func (e *Engine) notFound(ctx context.Context, log zerolog.Logger, d Decision, a models.Assignment, key Key, dueAt *time.Time, now time.Time) Decision {
	// A project without tasks never runs the scan, so every rule is checked
	// again before creating.
	switch r := e.opts.Policy.ShouldExclude(a, now); {
	case r == ReasonNone:
	case r.Skipped():
		log.Debug().Str("reason", string(r)).Str("workflow_state", a.WorkflowState()).Msg("skipping assignment")
		return skip(d, r)
	default:
		log.Info().Str("reason", string(r)).Msg("excluding assignment")
		return exclude(d, r)
	}

	fields := e.norm.TaskDue(dueAt)
	in := models.TaskInput{
		Content:     key.Content,
		Description: e.norm.Description(dueAt),
		ProjectID:   key.ProjectID,
		DueDate:     fields.Date,
		DueDatetime: fields.Datetime,
		Labels:      e.opts.Labels,
		Priority:    e.opts.Priority,
	}

	log.Info().Str("project_id", key.ProjectID).Msg("adding assignment")
	d.Action = ActionCreate
	d.Err = e.guard.Do(ctx, "create_task", func(ctx context.Context) error {
		task, err := e.tracker.CreateTask(ctx, in)
		if err != nil {
			return err
		}
		d.TaskID = task.ID
		return nil
	})
	return d
}

func skip(d Decision, r Reason) Decision {
	d.Action = ActionSkip
	d.Reason = r
	return d
}

func exclude(d Decision, r Reason) Decision {
	d.Action = ActionExclude
	d.Reason = r
	return d
}
