// Package app wires the Canvas reader, the tracker and the reconciliation
// engine into one sync run.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"todosync/internal/canvas"
	"todosync/internal/due"
	"todosync/internal/models"
	"todosync/internal/reconcile"
	"todosync/internal/report"
	"todosync/internal/throttle"
)

// ErrNoCourses is returned when no configured course is among the active
// enrollments.
var ErrNoCourses = errors.New("no courses selected, run `todosync courses select`")

// Canvas is the read side of the learning platform.
type Canvas interface {
	ListCourses(ctx context.Context) ([]models.Course, error)
	ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error)
}

// Tracker is everything a sync needs from the task tracker.
type Tracker interface {
	reconcile.Tracker
	ListProjects(ctx context.Context) ([]models.Project, error)
	CreateProject(ctx context.Context, name string) (models.Project, error)
	ListTasks(ctx context.Context) ([]models.Task, error)
}

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, run models.Run) (models.Run, error)
}

// Options select what a run syncs.
type Options struct {
	CourseIDs []int64
	Engine    reconcile.Options
	DryRun    bool
}

// Syncer runs one sync. ledger may be nil.
type Syncer struct {
	opts    Options
	canvas  Canvas
	tracker Tracker
	ledger  Ledger
	guard   *throttle.Guard
	norm    *due.Normalizer
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSyncer creates a syncer. In dry-run mode tracker mutations are logged
// and not sent.
func NewSyncer(opts Options, c Canvas, tracker Tracker, ledger Ledger, guard *throttle.Guard, norm *due.Normalizer, logger zerolog.Logger) *Syncer {
	if opts.DryRun {
		tracker = newDryRunTracker(tracker, logger)
	}
	return &Syncer{
		opts:    opts,
		canvas:  c,
		tracker: tracker,
		ledger:  ledger,
		guard:   guard,
		norm:    norm,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the clock used for the run and the engine.
func (s *Syncer) WithClock(now func() time.Time) *Syncer {
	s.now = now
	return s
}

// Run loads courses, projects, assignments and tasks, reconciles them and
// records the run. Any error before reconciliation aborts the run. Once the
// engine has started a report is always returned, even when ctx is
// cancelled.
func (s *Syncer) Run(ctx context.Context) (report.Report, error) {
	started := s.now()

	courses, err := s.canvas.ListCourses(ctx)
	if err != nil {
		return report.Report{}, fmt.Errorf("load courses: %w", err)
	}
	selected, err := SelectCourses(courses, s.opts.CourseIDs)
	if err != nil {
		return report.Report{}, err
	}
	for _, id := range s.opts.CourseIDs {
		if !slices.ContainsFunc(selected, func(c models.Course) bool { return c.ID == id }) {
			s.logger.Warn().Int64("course_id", id).Msg("configured course is not an active enrollment, ignoring")
		}
	}

	projects, err := s.provisionProjects(ctx, selected)
	if err != nil {
		return report.Report{}, err
	}

	var assignments []models.Assignment
	for _, course := range selected {
		list, err := s.canvas.ListAssignments(ctx, course.ID)
		if err != nil {
			return report.Report{}, fmt.Errorf("load assignments of %q: %w", course.Name, err)
		}
		for i := range list {
			list[i].CourseID = course.ID
		}
		s.logger.Info().Str("course", course.Name).Int("assignments", len(list)).Msg("loaded assignments")
		assignments = append(assignments, list...)
	}

	tasks, err := s.tracker.ListTasks(ctx)
	if err != nil {
		return report.Report{}, fmt.Errorf("load tasks: %w", err)
	}
	s.logger.Info().Int("assignments", len(assignments)).Int("tasks", len(tasks)).Msg("reconciling")

	engine := reconcile.NewEngine(s.opts.Engine, s.tracker, s.guard, s.norm, s.logger).WithClock(s.now)
	st := engine.Run(ctx, assignments, tasks, projects)

	run := report.NewRun(st, started, s.now(), s.opts.DryRun)
	if s.ledger != nil {
		// The run is recorded even when ctx was cancelled.
		recorded, err := s.ledger.RecordRun(context.WithoutCancel(ctx), run)
		if err != nil {
			s.logger.Warn().Err(err).Msg("failed to record run")
		} else {
			run = recorded
		}
	}

	if st.LimitReached {
		s.logger.Warn().Str("cause", string(st.LimitCause)).Msg("limit reached, not all tasks were synced")
	}
	s.logger.Info().
		Int("created", run.Created).
		Int("updated", run.Updated).
		Int("already_synced", run.AlreadySynced).
		Int("excluded", run.Excluded).
		Int("skipped", run.Skipped).
		Int("failed", run.Failed).
		Msg("sync finished")

	return report.Report{Run: run, Stats: report.ComputeStats(assignments)}, nil
}

// SelectCourses keeps the courses whose id is in ids, in platform order.
func SelectCourses(courses []models.Course, ids []int64) ([]models.Course, error) {
	if len(ids) == 0 {
		return nil, ErrNoCourses
	}
	var selected []models.Course
	for _, c := range courses {
		if slices.Contains(ids, c.ID) {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoCourses
	}
	return selected, nil
}

// provisionProjects maps every course to the tracker project named after
// it, creating the projects that do not exist yet.
func (s *Syncer) provisionProjects(ctx context.Context, courses []models.Course) (map[int64]string, error) {
	existing, err := s.tracker.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("load projects: %w", err)
	}
	byName := make(map[string]string, len(existing))
	for _, p := range existing {
		name := strings.TrimSpace(p.Name)
		if _, ok := byName[name]; !ok {
			byName[name] = p.ID
		}
	}

	projects := make(map[int64]string, len(courses))
	for _, course := range courses {
		name := canvas.ProjectName(course.Name)
		id, ok := byName[name]
		if !ok {
			created, err := s.tracker.CreateProject(ctx, name)
			if err != nil {
				return nil, fmt.Errorf("create project %q: %w", name, err)
			}
			s.logger.Info().Str("project", name).Str("project_id", created.ID).Msg("created project")
			id = created.ID
			byName[name] = id
		}
		projects[course.ID] = id
	}
	return projects, nil
}
