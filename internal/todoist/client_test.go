package todoist

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"todosync/internal/models"
)

type countingPacer struct{ pauses int }

func (p *countingPacer) Pause(context.Context) error {
	p.pauses++
	return nil
}

func newTestClient(t *testing.T, h http.HandlerFunc, pacer Pacer) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "tok", srv.Client(), pacer, zerolog.Nop())
}

func TestListTasksFollowsCursor(t *testing.T) {
	pacer := &countingPacer{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "200", r.URL.Query().Get("limit"))
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"results":[{"id":"1","project_id":"p","content":"a"}],"next_cursor":"c2"}`))
		case "c2":
			_, _ = w.Write([]byte(`{"results":[{"id":"2","project_id":"p","content":"b","due":{"date":"2099-01-01"}}],"next_cursor":null}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}, pacer)

	tasks, err := c.ListTasks(context.Background())
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "a", tasks[0].Content)
	require.NotNil(t, tasks[1].Due)
	assert.Equal(t, "2099-01-01", tasks[1].Due.Date)
	assert.Equal(t, 1, pacer.pauses)
}

func TestCreateTaskSendsInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "[X](u) Due", in["content"])
		assert.Equal(t, "2099-01-01", in["due_date"])
		assert.NotContains(t, in, "due_datetime")

		_, _ = w.Write([]byte(`{"id":"9","project_id":"p","content":"[X](u) Due"}`))
	}, nil)

	task, err := c.CreateTask(context.Background(), models.TaskInput{
		Content:   "[X](u) Due",
		ProjectID: "p",
		DueDate:   "2099-01-01",
		Priority:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, "9", task.ID)
}

func TestUpdateTaskDescription(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/tasks/42", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"id":"42"}`))
	}, nil)

	require.NoError(t, c.UpdateTaskDescription(context.Background(), "42", "Due: No due date"))
	assert.Equal(t, map[string]string{"description": "Due: No due date"}, got)
}

func TestProjects(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			_, _ = w.Write([]byte(`{"results":[{"id":"p1","name":"Biology 101"}],"next_cursor":null}`))
		case http.MethodPost:
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			_, _ = w.Write([]byte(`{"id":"p2","name":"` + in["name"] + `"}`))
		}
	}, nil)

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Biology 101", projects[0].Name)

	created, err := c.CreateProject(context.Background(), "Chemistry")
	require.NoError(t, err)
	assert.Equal(t, "p2", created.ID)
	assert.Equal(t, "Chemistry", created.Name)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		header map[string]string
		check  func(t *testing.T, err error)
	}{
		{"unauthorized", http.StatusUnauthorized, nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthorized)
		}},
		{"forbidden", http.StatusForbidden, nil, func(t *testing.T, err error) {
			assert.ErrorIs(t, err, ErrUnauthorized)
		}},
		{"rate limited", http.StatusTooManyRequests, map[string]string{"Retry-After": "7"}, func(t *testing.T, err error) {
			var rl *RateLimitError
			require.ErrorAs(t, err, &rl)
			assert.Equal(t, 7*time.Second, rl.RetryAfter)
		}},
		{"server error", http.StatusInternalServerError, nil, func(t *testing.T, err error) {
			assert.ErrorContains(t, err, "status 500")
			assert.NotErrorIs(t, err, ErrUnauthorized)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
			}, nil)
			_, err := c.CreateTask(context.Background(), models.TaskInput{Content: "x"})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}
