package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/canvas"
	"todosync/internal/due"
	"todosync/internal/models"
	"todosync/internal/reconcile"
	"todosync/internal/storage/sqlite"
	"todosync/internal/throttle"
)

var testNow = time.Date(2098, 12, 1, 0, 0, 0, 0, time.UTC)

type fakeCanvas struct {
	courses     []models.Course
	assignments map[int64][]models.Assignment
	err         error
}

func (f *fakeCanvas) ListCourses(context.Context) ([]models.Course, error) {
	return f.courses, nil
}

func (f *fakeCanvas) ListAssignments(_ context.Context, courseID int64) ([]models.Assignment, error) {
	if f.err != nil {
		return nil, f.err
	}
	return append([]models.Assignment(nil), f.assignments[courseID]...), nil
}

type failingProjects struct {
	Tracker
}

func (failingProjects) CreateProject(context.Context, string) (models.Project, error) {
	return models.Project{}, errors.New("boom")
}

func newAssignment(id int64, name, dueAt, state string) models.Assignment {
	return models.Assignment{
		ID:              id,
		Name:            name,
		HTMLURL:         "https://canvas.example/assignments/" + name,
		DueAt:           dueAt,
		SubmissionTypes: []string{"online_upload"},
		Submission:      &models.Submission{WorkflowState: state},
	}
}

func testCanvas() *fakeCanvas {
	return &fakeCanvas{
		courses: []models.Course{
			{ID: 1, Name: "Bio 101"},
			{ID: 2, Name: "Chem!"},
			{ID: 3, Name: "Not synced"},
		},
		assignments: map[int64][]models.Assignment{
			1: {
				newAssignment(10, "Lab", "2099-01-02T18:00:00Z", "unsubmitted"),
				newAssignment(11, "Old", "2098-01-01T00:00:00Z", "unsubmitted"),
			},
			2: {
				newAssignment(20, "Quiz", "2099-01-03T18:00:00Z", "submitted"),
			},
			3: {
				newAssignment(30, "Ignored", "2099-01-03T18:00:00Z", "unsubmitted"),
			},
		},
	}
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "todosync.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSyncer(t *testing.T, c Canvas, tracker Tracker, ledger Ledger, dryRun bool) *Syncer {
	t.Helper()
	norm, err := due.NewNormalizer("", "")
	require.NoError(t, err)
	guard := throttle.New(throttle.Options{}, zerolog.Nop()).
		WithSleep(func(context.Context, time.Duration) error { return nil })
	opts := Options{
		CourseIDs: []int64{1, 2, 99},
		DryRun:    dryRun,
		Engine: reconcile.Options{
			Policy:   reconcile.Policy{SyncNullAssignments: true, SyncLockedAssignments: true, SyncNoDueDateAssignments: true},
			Priority: 1,
			Labels:   []string{"canvas"},
		},
	}
	return NewSyncer(opts, c, tracker, ledger, guard, norm, zerolog.Nop()).
		WithClock(func() time.Time { return testNow })
}

func TestRunCreatesProjectsAndTasks(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	rep, err := newTestSyncer(t, testCanvas(), store, store, false).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Run.Created)
	assert.Equal(t, 2, rep.Run.Skipped)
	assert.Equal(t, map[string]int{"past_due": 1, "already_submitted": 1}, rep.Run.Reasons)
	assert.Equal(t, 3, rep.Stats.Total)
	assert.NotEmpty(t, rep.Run.ID)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	assert.Equal(t, "Bio 101", projects[0].Name)
	assert.Equal(t, "Chem", projects[1].Name)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "[Lab](https://canvas.example/assignments/Lab) Due", tasks[0].Content)
	assert.Equal(t, projects[0].ID, tasks[0].ProjectID)
	assert.Equal(t, "Due: Jan 02, 2099 at 11:00 AM MST", tasks[0].Description)
	require.NotNil(t, tasks[0].Due)
	assert.Equal(t, "2099-01-02T11:00:00-07:00", tasks[0].Due.Datetime)
	assert.Equal(t, []string{"canvas"}, tasks[0].Labels)

	// A second run finds everything in place.
	rep, err = newTestSyncer(t, testCanvas(), store, store, false).Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rep.Run.Created)
	assert.Equal(t, 1, rep.Run.AlreadySynced)

	projects, err = store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	runs, err := store.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRunDryRunLeavesTrackerUntouched(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	rep, err := newTestSyncer(t, testCanvas(), store, nil, true).Run(ctx)
	require.NoError(t, err)
	assert.True(t, rep.Run.DryRun)
	assert.Equal(t, 1, rep.Run.Created)

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestRunRequiresCourses(t *testing.T) {
	s := newTestSyncer(t, testCanvas(), openStore(t), nil, false)
	s.opts.CourseIDs = nil

	_, err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCourses)

	s.opts.CourseIDs = []int64{404}
	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoCourses)
}

func TestRunAbortsOnUnauthorized(t *testing.T) {
	c := testCanvas()
	c.err = canvas.ErrUnauthorized
	store := openStore(t)

	_, err := newTestSyncer(t, c, store, store, false).Run(context.Background())
	assert.ErrorIs(t, err, canvas.ErrUnauthorized)

	runs, err := store.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs, "aborted runs are not recorded")
}

func TestRunAbortsWhenProjectCannotBeCreated(t *testing.T) {
	_, err := newTestSyncer(t, testCanvas(), failingProjects{Tracker: openStore(t)}, nil, false).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `create project "Bio 101"`)
}

func TestSelectCourses(t *testing.T) {
	courses := []models.Course{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}, {ID: 2, Name: "b"}}

	got, err := SelectCourses(courses, []int64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []models.Course{{ID: 3, Name: "c"}, {ID: 1, Name: "a"}}, got)

	_, err = SelectCourses(courses, nil)
	assert.ErrorIs(t, err, ErrNoCourses)
}

func TestRunTwiceWithSymbolInCourseName(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	c := &fakeCanvas{
		courses: []models.Course{{ID: 1, Name: "Bio 101 ★"}},
		assignments: map[int64][]models.Assignment{
			1: {newAssignment(10, "Lab", "2099-01-02T18:00:00Z", "unsubmitted")},
		},
	}

	for range 2 {
		_, err := newTestSyncer(t, c, store, nil, false).Run(ctx)
		require.NoError(t, err)
	}

	projects, err := store.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Bio 101", projects[0].Name)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}
