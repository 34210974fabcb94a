package models

import "time"

// Project groups tracker tasks. Every synced course owns exactly one project.
type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Due mirrors the tracker's due object. Only one of Date or Datetime is set
// by todosync; the tracker may fill in the rest.
type Due struct {
	Date     string `json:"date"`
	Datetime string `json:"datetime,omitempty"`
	String   string `json:"string,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// Task represents a single tracker task.
type Task struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Due         *Due      `json:"due"`
	Labels      []string  `json:"labels"`
	Priority    int       `json:"priority"`
	CreatedAt   time.Time `json:"added_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TaskInput is the payload of a task creation. DueDate and DueDatetime are
// mutually exclusive; both empty means the task has no due date.
type TaskInput struct {
	Content     string   `json:"content"`
	Description string   `json:"description"`
	ProjectID   string   `json:"project_id"`
	DueDate     string   `json:"due_date,omitempty"`
	DueDatetime string   `json:"due_datetime,omitempty"`
	Labels      []string `json:"labels"`
	Priority    int      `json:"priority"`
}

// Course is an actively enrolled learning-platform course.
type Course struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Submission is the current user's submission for an assignment.
type Submission struct {
	WorkflowState string `json:"workflow_state"`
	GradedAt      string `json:"graded_at"`
}

// Assignment is a read-only snapshot of a learning-platform assignment.
// Timestamps are kept as delivered by the platform and parsed by the
// reconciliation engine so that one malformed value only skips one
// assignment.
type Assignment struct {
	ID                     int64       `json:"id"`
	Name                   string      `json:"name"`
	HTMLURL                string      `json:"html_url"`
	CourseID               int64       `json:"course_id"`
	DueAt                  string      `json:"due_at"`
	UnlockAt               string      `json:"unlock_at"`
	LockedForUser          bool        `json:"locked_for_user"`
	LockExplanation        string      `json:"lock_explanation"`
	SubmissionTypes        []string    `json:"submission_types"`
	GradedSubmissionsExist bool        `json:"graded_submissions_exist"`
	Submission             *Submission `json:"submission"`
}

// WorkflowStateUnsubmitted is the only submission state eligible for task creation.
const WorkflowStateUnsubmitted = "unsubmitted"

// PrimarySubmissionType returns the first submission type, or "" if none are listed.
func (a Assignment) PrimarySubmissionType() string {
	if len(a.SubmissionTypes) == 0 {
		return ""
	}
	return a.SubmissionTypes[0]
}

// WorkflowState returns the submission workflow state, or "" without a submission.
func (a Assignment) WorkflowState() string {
	if a.Submission == nil {
		return ""
	}
	return a.Submission.WorkflowState
}

// Run is one recorded sync invocation.
type Run struct {
	ID            string         `json:"id" yaml:"id"`
	StartedAt     time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt    time.Time      `json:"finished_at" yaml:"finished_at"`
	Created       int            `json:"created" yaml:"created"`
	Updated       int            `json:"updated" yaml:"updated"`
	AlreadySynced int            `json:"already_synced" yaml:"already_synced"`
	Excluded      int            `json:"excluded" yaml:"excluded"`
	Skipped       int            `json:"skipped" yaml:"skipped"`
	Failed        int            `json:"failed" yaml:"failed"`
	LimitReached  bool           `json:"limit_reached" yaml:"limit_reached"`
	LimitCause    string         `json:"limit_cause,omitempty" yaml:"limit_cause,omitempty"`
	DryRun        bool           `json:"dry_run" yaml:"dry_run"`
	Reasons       map[string]int `json:"reasons,omitempty" yaml:"reasons,omitempty"`
}
