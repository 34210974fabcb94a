package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"todosync/internal/models"
)

// dryRunTracker reads from the real tracker and only logs mutations.
type dryRunTracker struct {
	Tracker
	logger   zerolog.Logger
	projects int
	tasks    int
}

func newDryRunTracker(t Tracker, logger zerolog.Logger) *dryRunTracker {
	return &dryRunTracker{Tracker: t, logger: logger.With().Bool("dry_run", true).Logger()}
}

func (d *dryRunTracker) CreateProject(_ context.Context, name string) (models.Project, error) {
	d.projects++
	d.logger.Info().Str("project", name).Msg("would create project")
	return models.Project{ID: fmt.Sprintf("dry-run-project-%d", d.projects), Name: name}, nil
}

func (d *dryRunTracker) CreateTask(_ context.Context, in models.TaskInput) (models.Task, error) {
	d.tasks++
	d.logger.Info().Str("content", in.Content).Str("project_id", in.ProjectID).Str("due_date", in.DueDate).Str("due_datetime", in.DueDatetime).Msg("would create task")
	return models.Task{
		ID:          fmt.Sprintf("dry-run-task-%d", d.tasks),
		ProjectID:   in.ProjectID,
		Content:     in.Content,
		Description: in.Description,
		Labels:      in.Labels,
		Priority:    in.Priority,
	}, nil
}

func (d *dryRunTracker) UpdateTaskDescription(_ context.Context, id, description string) error {
	d.logger.Info().Str("task_id", id).Str("description", description).Msg("would update task")
	return nil
}
