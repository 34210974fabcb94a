package reconcile

import (
	"fmt"

	"todosync/internal/models"
)

// Key identifies the task that represents an assignment.
type Key struct {
	ProjectID string
	Content   string
}

// ContentFor builds the task content of an assignment. Name and URL make it
// unique per assignment under normal platform behavior.
func ContentFor(a models.Assignment) string {
	return fmt.Sprintf("[%s](%s) Due", a.Name, a.HTMLURL)
}

// Index groups tasks by project, keeping tracker order within a project.
// It is built once per run; the run never refreshes it.
type Index struct {
	byProject map[string][]models.Task
}

// NewIndex indexes an account-wide task list.
func NewIndex(tasks []models.Task) *Index {
	ix := &Index{byProject: make(map[string][]models.Task)}
	for _, t := range tasks {
		ix.byProject[t.ProjectID] = append(ix.byProject[t.ProjectID], t)
	}
	return ix
}

// Candidates returns the tasks of one project in tracker order.
func (ix *Index) Candidates(projectID string) []models.Task {
	return ix.byProject[projectID]
}

// Scan walks the candidates of key.ProjectID in order. The first task whose
// content equals key.Content is returned. Before moving past a task that
// does not match, stop is consulted; a non-empty reason ends the scan, even
// if a matching task appears later in the list.
func (ix *Index) Scan(key Key, stop func() Reason) (*models.Task, Reason) {
	candidates := ix.Candidates(key.ProjectID)
	for i := range candidates {
		if candidates[i].Content == key.Content {
			return &candidates[i], ReasonNone
		}
		if r := stop(); r != ReasonNone {
			return nil, r
		}
	}
	return nil, ReasonNone
}
