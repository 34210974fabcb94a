// Package todoist is a small client for the Todoist REST API. It speaks the
// subset of the API that todosync needs, which the local tracker server
// also implements.
package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"todosync/internal/models"
)

const (
	DefaultBaseURL = "https://api.todoist.com/api/v1"
	pageLimit      = 200
)

// ErrUnauthorized means the token was rejected. It aborts the whole run.
var ErrUnauthorized = errors.New("todoist: unauthorized, check the API token")

// RateLimitError represents a 429 response.
type RateLimitError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("todoist: rate limited (status %d), retry after %s", e.Status, e.RetryAfter)
	}
	return fmt.Sprintf("todoist: rate limited (status %d)", e.Status)
}

// Pacer is consulted before following a next-page cursor.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Client talks to Todoist or a compatible server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	pacer   Pacer
	logger  zerolog.Logger
}

type page[T any] struct {
	Results    []T     `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

// NewClient creates a client. An empty baseURL targets Todoist itself.
func NewClient(baseURL, token string, httpClient *http.Client, pacer Pacer, logger zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    httpClient,
		pacer:   pacer,
		logger:  logger,
	}
}

// ListProjects returns every project of the account.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects, err := list[models.Project](ctx, c, "/projects")
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// CreateProject creates a project with the given name.
func (c *Client) CreateProject(ctx context.Context, name string) (models.Project, error) {
	var project models.Project
	if err := c.do(ctx, http.MethodPost, "/projects", map[string]string{"name": name}, &project); err != nil {
		return models.Project{}, fmt.Errorf("create project: %w", err)
	}
	return project, nil
}

// ListTasks returns every active task of the account, across projects.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	tasks, err := list[models.Task](ctx, c, "/tasks")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// CreateTask adds a task.
func (c *Client) CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error) {
	var task models.Task
	if err := c.do(ctx, http.MethodPost, "/tasks", in, &task); err != nil {
		return models.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// UpdateTaskDescription replaces a task's description and nothing else.
func (c *Client) UpdateTaskDescription(ctx context.Context, id, description string) error {
	body := map[string]string{"description": description}
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id), body, nil); err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	return nil
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var all []T
	cursor := ""
	for n := 0; ; n++ {
		if n > 0 && c.pacer != nil {
			if err := c.pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
		q := url.Values{"limit": {strconv.Itoa(pageLimit)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var p page[T]
		if err := c.do(ctx, http.MethodGet, path+"?"+q.Encode(), nil, &p); err != nil {
			return nil, err
		}
		all = append(all, p.Results...)
		if p.NextCursor == nil || *p.NextCursor == "" {
			return all, nil
		}
		cursor = *p.NextCursor
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("todoist: marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("todoist: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("todoist: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("todoist: read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		return &RateLimitError{Status: resp.StatusCode, Body: string(respBody), RetryAfter: retryAfter(resp)}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("todoist: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	c.logger.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("todoist request")
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("todoist: decode response: %w", err)
	}
	return nil
}

func retryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if sec, err := strconv.Atoi(v); err == nil {
		return time.Duration(sec) * time.Second
	}
	return 0
}
