package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/models"
	"todosync/internal/storage/sqlite"
	"todosync/internal/todoist"
)

func newTestServer(t *testing.T, token string) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "tracker.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(New(store, zerolog.Nop(), token).Engine())
	t.Cleanup(srv.Close)
	return srv, store
}

type countingPacer struct{ pauses int }

func (p *countingPacer) Pause(context.Context) error {
	p.pauses++
	return nil
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	resp, err := http.Get(srv.URL + "/api/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTodoistClientAgainstLocalTracker(t *testing.T) {
	ctx := context.Background()
	srv, _ := newTestServer(t, "secret")
	pacer := &countingPacer{}
	client := todoist.NewClient(srv.URL+"/api/v1", "secret", srv.Client(), pacer, zerolog.Nop())

	project, err := client.CreateProject(ctx, "Biology 101")
	require.NoError(t, err)

	projects, err := client.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)

	// More than one page of tasks.
	for i := range maxPageLimit + 5 {
		_, err := client.CreateTask(ctx, models.TaskInput{
			Content:   fmt.Sprintf("[A%d](u) Due", i),
			ProjectID: project.ID,
			DueDate:   "2099-01-01",
			Priority:  1,
		})
		require.NoError(t, err)
	}

	tasks, err := client.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, maxPageLimit+5)
	assert.Equal(t, "[A0](u) Due", tasks[0].Content)
	assert.Equal(t, 1, pacer.pauses)

	require.NoError(t, client.UpdateTaskDescription(ctx, tasks[0].ID, "Due: No due date"))
	tasks, err = client.ListTasks(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Due: No due date", tasks[0].Description)
	require.NotNil(t, tasks[0].Due)
	assert.Equal(t, "2099-01-01", tasks[0].Due.Date)
}

func TestTokenRequired(t *testing.T) {
	srv, _ := newTestServer(t, "secret")

	for _, token := range []string{"wrong", "secre", "secret2", ""} {
		client := todoist.NewClient(srv.URL+"/api/v1", token, srv.Client(), nil, zerolog.Nop())
		_, err := client.ListProjects(context.Background())
		assert.ErrorIs(t, err, todoist.ErrUnauthorized, token)
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/projects", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotFoundAndValidation(t *testing.T) {
	srv, _ := newTestServer(t, "")

	resp, err := http.Post(srv.URL+"/api/v1/tasks/999", "application/json", strings.NewReader(`{"description":"x"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/v1/tasks", "application/json", strings.NewReader(`{"project_id":"1"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/v1/tasks?cursor=abc")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteProjectCascades(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestServer(t, "")

	p, err := store.CreateProject(ctx, "P")
	require.NoError(t, err)
	_, err = store.CreateTask(ctx, models.TaskInput{Content: "x", ProjectID: p.ID})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/projects/"+p.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestListRuns(t *testing.T) {
	ctx := context.Background()
	srv, store := newTestServer(t, "")

	now := time.Date(2099, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := store.RecordRun(ctx, models.Run{ID: "r1", StartedAt: now, FinishedAt: now, Created: 2})
	require.NoError(t, err)

	resp, err := http.Get(srv.URL + "/api/v1/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Results []models.Run `json:"results"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, "r1", body.Results[0].ID)
	assert.Equal(t, 2, body.Results[0].Created)
}
