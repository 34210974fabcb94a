// Package canvas reads courses and assignments from the Canvas LMS REST API.
package canvas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/tomnomnom/linkheader"

	"todosync/internal/models"
)

// ErrUnauthorized means the token was rejected. It aborts the whole run.
var ErrUnauthorized = errors.New("canvas: unauthorized, check the API token and base URL")

// Pacer is consulted before following a next-page link.
type Pacer interface {
	Pause(ctx context.Context) error
}

// Client is a read-only Canvas client.
type Client struct {
	baseURL string
	token   string
	perPage int
	http    *http.Client
	pacer   Pacer
	logger  zerolog.Logger
}

// NewClient creates a client. pacer may be nil.
func NewClient(baseURL, token string, perPage int, httpClient *http.Client, pacer Pacer, logger zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if perPage <= 0 {
		perPage = 100
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		perPage: perPage,
		http:    httpClient,
		pacer:   pacer,
		logger:  logger,
	}
}

// ListCourses returns the user's actively enrolled courses.
func (c *Client) ListCourses(ctx context.Context) ([]models.Course, error) {
	courses, err := getAll[models.Course](ctx, c, c.endpoint("/api/v1/courses", url.Values{"enrollment_state": {"active"}}))
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	c.logger.Debug().Int("courses", len(courses)).Msg("loaded courses")
	return courses, nil
}

// ListAssignments returns every assignment of a course, including the
// current user's submission.
func (c *Client) ListAssignments(ctx context.Context, courseID int64) ([]models.Assignment, error) {
	path := "/api/v1/courses/" + strconv.FormatInt(courseID, 10) + "/assignments"
	assignments, err := getAll[models.Assignment](ctx, c, c.endpoint(path, nil))
	if err != nil {
		return nil, fmt.Errorf("list assignments for course %d: %w", courseID, err)
	}
	for i := range assignments {
		if assignments[i].CourseID == 0 {
			assignments[i].CourseID = courseID
		}
	}
	return assignments, nil
}

func (c *Client) endpoint(path string, extra url.Values) string {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(c.perPage))
	q.Set("include[]", "submission")
	for k, vs := range extra {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	return c.baseURL + path + "?" + q.Encode()
}

func getAll[T any](ctx context.Context, c *Client, first string) ([]T, error) {
	var all []T
	next := first
	for page := 0; next != ""; page++ {
		if page > 0 && c.pacer != nil {
			if err := c.pacer.Pause(ctx); err != nil {
				return nil, err
			}
		}
		var items []T
		link, err := c.get(ctx, next, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		next = nextLink(link)
	}
	return all, nil
}

func (c *Client) get(ctx context.Context, rawURL string, out any) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("canvas: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("canvas: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("canvas: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", fmt.Errorf("canvas: decode response: %w", err)
	}
	return resp.Header.Get("Link"), nil
}

func nextLink(header string) string {
	if header == "" {
		return ""
	}
	links := linkheader.Parse(header).FilterByRel("next")
	if len(links) == 0 {
		return ""
	}
	return links[0].URL
}

var unsafeNameChars = regexp.MustCompile(`[^-a-zA-Z0-9._\s]`)

// ProjectName derives the tracker project name of a course. Surrounding
// whitespace is trimmed, as trackers store names trimmed.
func ProjectName(courseName string) string {
	return strings.TrimSpace(unsafeNameChars.ReplaceAllString(courseName, ""))
}
