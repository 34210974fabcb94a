package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "test.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", zerolog.Nop())
	assert.Error(t, err)
}

func TestProjects(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p, err := s.CreateProject(ctx, "  Biology 101 ")
	require.NoError(t, err)
	assert.Equal(t, "Biology 101", p.Name)
	assert.NotEmpty(t, p.ID)
	assert.NotEmpty(t, p.Color)

	_, err = s.CreateProject(ctx, "Biology 101")
	assert.Error(t, err, "names are unique")
	_, err = s.CreateProject(ctx, " ")
	assert.Error(t, err)

	renamed, err := s.UpdateProject(ctx, p.ID, "Biology 102", "")
	require.NoError(t, err)
	assert.Equal(t, "Biology 102", renamed.Name)
	assert.Equal(t, p.Color, renamed.Color)

	projects, err := s.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	require.NoError(t, s.DeleteProject(ctx, p.ID))
	assert.ErrorIs(t, s.DeleteProject(ctx, p.ID), ErrNotFound)
	_, err = s.GetProject(ctx, "abc")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTasks(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	p1, err := s.CreateProject(ctx, "One")
	require.NoError(t, err)
	p2, err := s.CreateProject(ctx, "Two")
	require.NoError(t, err)

	dated, err := s.CreateTask(ctx, models.TaskInput{
		Content:     "[A](u) Due",
		Description: "Due: Jan 01, 2099 at 04:59 PM MST",
		ProjectID:   p1.ID,
		DueDate:     "2099-01-01",
		Labels:      []string{"school"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dated.Priority)
	require.NotNil(t, dated.Due)
	assert.Equal(t, "2099-01-01", dated.Due.Date)
	assert.Empty(t, dated.Due.Datetime)
	assert.Equal(t, []string{"school"}, dated.Labels)

	timed, err := s.CreateTask(ctx, models.TaskInput{
		Content:     "[B](u) Due",
		ProjectID:   p2.ID,
		DueDatetime: "2099-02-10T08:30:00-07:00",
		Priority:    4,
	})
	require.NoError(t, err)
	require.NotNil(t, timed.Due)
	assert.Equal(t, "2099-02-10", timed.Due.Date)
	assert.Equal(t, "2099-02-10T08:30:00-07:00", timed.Due.Datetime)
	assert.Equal(t, []string{}, timed.Labels)

	undated, err := s.CreateTask(ctx, models.TaskInput{Content: "[C](u) Due", ProjectID: p1.ID})
	require.NoError(t, err)
	assert.Nil(t, undated.Due)

	all, err := s.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{dated.ID, timed.ID, undated.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	inOne, err := s.ListProjectTasks(ctx, p1.ID)
	require.NoError(t, err)
	assert.Len(t, inOne, 2)

	require.NoError(t, s.UpdateTaskDescription(ctx, dated.ID, "Due: No due date"))
	got, err := s.GetTask(ctx, dated.ID)
	require.NoError(t, err)
	assert.Equal(t, "Due: No due date", got.Description)
	assert.Equal(t, "2099-01-01", got.Due.Date, "due date untouched")
	assert.Equal(t, dated.Content, got.Content)

	assert.ErrorIs(t, s.UpdateTaskDescription(ctx, "999", "x"), ErrNotFound)

	require.NoError(t, s.DeleteProject(ctx, p1.ID))
	all, err = s.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1, "tasks cascade with their project")
}

func TestCreateTaskValidation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	p, err := s.CreateProject(ctx, "P")
	require.NoError(t, err)

	tests := []struct {
		name string
		in   models.TaskInput
	}{
		{"empty content", models.TaskInput{ProjectID: p.ID}},
		{"both due fields", models.TaskInput{Content: "x", ProjectID: p.ID, DueDate: "2099-01-01", DueDatetime: "2099-01-01T00:00:00Z"}},
		{"bad priority", models.TaskInput{Content: "x", ProjectID: p.ID, Priority: 5}},
		{"unknown project", models.TaskInput{Content: "x", ProjectID: "404"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateTask(ctx, tt.in)
			assert.Error(t, err)
		})
	}

	_, err = s.CreateTask(ctx, models.TaskInput{Content: "x", ProjectID: "404"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRuns(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	base := time.Date(2099, 1, 1, 12, 0, 0, 0, time.UTC)
	first, err := s.RecordRun(ctx, models.Run{
		StartedAt:  base,
		FinishedAt: base.Add(time.Minute),
		Created:    3,
		Skipped:    2,
		Reasons:    map[string]int{"past_due": 2},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = s.RecordRun(ctx, models.Run{
		ID:           "fixed",
		StartedAt:    base.Add(time.Hour),
		FinishedAt:   base.Add(time.Hour + time.Minute),
		LimitReached: true,
		LimitCause:   "ceiling",
		DryRun:       true,
	})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "fixed", runs[0].ID)
	assert.True(t, runs[0].LimitReached)
	assert.True(t, runs[0].DryRun)
	assert.Equal(t, "ceiling", runs[0].LimitCause)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 3, runs[1].Created)
	assert.Equal(t, map[string]int{"past_due": 2}, runs[1].Reasons)
	assert.True(t, base.Equal(runs[1].StartedAt))

	latest, err := s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, latest, 1)
}
