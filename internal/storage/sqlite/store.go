package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"todosync/internal/models"
)

// ErrNotFound is returned when a project, task or run does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps access to the SQLite database backing the local tracker and
// the run ledger.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open initializes a new SQLite store and runs the required migrations.
func Open(dbPath string, logger zerolog.Logger) (*Store, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("empty database path")
	}

	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=ON", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	s := &Store{db: conn, logger: logger.With().Str("component", "sqlite").Logger()}
	if err := s.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s.logger.Debug().Str("path", dbPath).Msg("database ready")
	return s, nil
}

// Close releases the database resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func ensureDir(dbPath string) error {
	dir := filepath.Dir(dbPath)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            color TEXT NOT NULL DEFAULT '#2563eb',
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            project_id INTEGER NOT NULL,
            content TEXT NOT NULL,
            description TEXT NOT NULL DEFAULT '',
            due_date TEXT NOT NULL DEFAULT '',
            due_datetime TEXT NOT NULL DEFAULT '',
            labels TEXT NOT NULL DEFAULT '[]',
            priority INTEGER NOT NULL DEFAULT 1,
            created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
            FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
        );`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id);`,
		`CREATE TABLE IF NOT EXISTS runs (
            id TEXT PRIMARY KEY,
            started_at DATETIME NOT NULL,
            finished_at DATETIME NOT NULL,
            created INTEGER NOT NULL DEFAULT 0,
            updated INTEGER NOT NULL DEFAULT 0,
            already_synced INTEGER NOT NULL DEFAULT 0,
            excluded INTEGER NOT NULL DEFAULT 0,
            skipped INTEGER NOT NULL DEFAULT 0,
            failed INTEGER NOT NULL DEFAULT 0,
            limit_reached INTEGER NOT NULL DEFAULT 0,
            limit_cause TEXT NOT NULL DEFAULT '',
            dry_run INTEGER NOT NULL DEFAULT 0,
            reasons TEXT NOT NULL DEFAULT '{}'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// parseID converts an external string id to the row id. Ids that are not
// numeric cannot exist in the store.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, ErrNotFound
	}
	return n, nil
}

const projectColumns = `id, name, color, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (models.Project, error) {
	var (
		p  models.Project
		id int64
	)
	if err := row.Scan(&id, &p.Name, &p.Color, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Project{}, err
	}
	p.ID = strconv.FormatInt(id, 10)
	return p, nil
}

// ListProjects retrieves all projects ordered by creation.
func (s *Store) ListProjects(ctx context.Context) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject persists a new project with a palette color.
func (s *Store) CreateProject(ctx context.Context, name string) (models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty")
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO projects(name, color) VALUES(?, ?)`, name, randomPaletteColor())
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Project{}, fmt.Errorf("project id: %w", err)
	}
	s.logger.Info().Str("project", name).Int64("project_id", id).Msg("project created")
	return s.GetProject(ctx, strconv.FormatInt(id, 10))
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id string) (models.Project, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.Project{}, fmt.Errorf("get project %s: %w", id, err)
	}
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, rowID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("get project %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// UpdateProject renames a project and optionally changes its color.
func (s *Store) UpdateProject(ctx context.Context, id, name, color string) (models.Project, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project %s: %w", id, err)
	}
	current, err := s.GetProject(ctx, id)
	if err != nil {
		return models.Project{}, err
	}
	if strings.TrimSpace(name) == "" {
		name = current.Name
	}
	if color == "" {
		color = current.Color
	}

	_, err = s.db.ExecContext(ctx, `UPDATE projects SET name = ?, color = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, strings.TrimSpace(name), color, rowID)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// DeleteProject removes a project along with its tasks.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	rowID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("delete project %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, rowID)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return expectAffected(res, "project", id)
}

const taskColumns = `id, project_id, content, description, due_date, due_datetime, labels, priority, created_at, updated_at`

func scanTask(row scanner) (models.Task, error) {
	var (
		t                    models.Task
		id, projectID        int64
		dueDate, dueDatetime string
		labels               string
	)
	if err := row.Scan(&id, &projectID, &t.Content, &t.Description, &dueDate, &dueDatetime, &labels, &t.Priority, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.Task{}, err
	}
	t.ID = strconv.FormatInt(id, 10)
	t.ProjectID = strconv.FormatInt(projectID, 10)
	t.Due = dueFields(dueDate, dueDatetime)
	if err := json.Unmarshal([]byte(labels), &t.Labels); err != nil {
		return models.Task{}, fmt.Errorf("decode labels: %w", err)
	}
	if t.Labels == nil {
		t.Labels = []string{}
	}
	return t, nil
}

func dueFields(date, datetime string) *models.Due {
	switch {
	case datetime != "":
		d := &models.Due{Datetime: datetime, String: datetime}
		if len(datetime) >= 10 {
			d.Date = datetime[:10]
		}
		return d
	case date != "":
		return &models.Due{Date: date, String: date}
	default:
		return nil
	}
}

// ListTasks returns every task in tracker order.
func (s *Store) ListTasks(ctx context.Context) ([]models.Task, error) {
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY id`)
}

// ListProjectTasks returns the tasks of one project in tracker order.
func (s *Store) ListProjectTasks(ctx context.Context, projectID string) ([]models.Task, error) {
	rowID, err := parseID(projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks of project %s: %w", projectID, err)
	}
	return s.queryTasks(ctx, `SELECT `+taskColumns+` FROM tasks WHERE project_id = ? ORDER BY id`, rowID)
}

func (s *Store) queryTasks(ctx context.Context, query string, args ...any) ([]models.Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CreateTask inserts a new task into a project.
func (s *Store) CreateTask(ctx context.Context, in models.TaskInput) (models.Task, error) {
	if strings.TrimSpace(in.Content) == "" {
		return models.Task{}, fmt.Errorf("task content must not be empty")
	}
	if in.DueDate != "" && in.DueDatetime != "" {
		return models.Task{}, fmt.Errorf("due_date and due_datetime are mutually exclusive")
	}
	if in.Priority == 0 {
		in.Priority = 1
	}
	if in.Priority < 1 || in.Priority > 4 {
		return models.Task{}, fmt.Errorf("task priority must be between 1 and 4, got %d", in.Priority)
	}
	projectID, err := parseID(in.ProjectID)
	if err != nil {
		return models.Task{}, fmt.Errorf("create task in project %s: %w", in.ProjectID, err)
	}
	if _, err := s.GetProject(ctx, in.ProjectID); err != nil {
		return models.Task{}, err
	}

	labels := in.Labels
	if labels == nil {
		labels = []string{}
	}
	encoded, err := json.Marshal(labels)
	if err != nil {
		return models.Task{}, fmt.Errorf("encode labels: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO tasks(project_id, content, description, due_date, due_datetime, labels, priority) VALUES(?, ?, ?, ?, ?, ?, ?)`,
		projectID, in.Content, in.Description, in.DueDate, in.DueDatetime, string(encoded), in.Priority)
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Task{}, fmt.Errorf("task id: %w", err)
	}
	return s.GetTask(ctx, strconv.FormatInt(id, 10))
}

// GetTask retrieves a task by id.
func (s *Store) GetTask(ctx context.Context, id string) (models.Task, error) {
	rowID, err := parseID(id)
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, rowID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

// UpdateTaskDescription replaces the description of a task. No other field
// is touched.
func (s *Store) UpdateTaskDescription(ctx context.Context, id, description string) error {
	rowID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("update task %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET description = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, description, rowID)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	return expectAffected(res, "task", id)
}

// DeleteTask removes a task by id.
func (s *Store) DeleteTask(ctx context.Context, id string) error {
	rowID, err := parseID(id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, rowID)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return expectAffected(res, "task", id)
}

func expectAffected(res sql.Result, kind, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func randomPaletteColor() string {
	palette := []string{
		"#2563eb", // blue-600
		"#7c3aed", // violet-600
		"#dc2626", // red-600
		"#059669", // green-600
		"#ea580c", // orange-600
		"#d97706", // amber-600
		"#0ea5e9", // sky-500
	}
	return palette[rand.Intn(len(palette))]
}
