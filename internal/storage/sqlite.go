package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

// SQLiteStorage handles all database operations for tasks and executions.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage wraps an open database handle. The path is kept for the
// migration tool and backups, which need their own connections.
func NewSQLiteStorage(db *sql.DB, path string) *SQLiteStorage {
	return &SQLiteStorage{db: db, path: path}
}

// DB exposes the underlying handle for health checks.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// IsForeignKeyViolation reports whether err is a SQLite foreign key
// constraint failure.
func IsForeignKeyViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// InsertTask inserts a new task. DeletedAt starts NULL; CreatedAt is stamped
// here so callers observe the same value the row carries.
func (s *SQLiteStorage) InsertTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("%w: task id cannot be empty", ErrInvalidInput)
	}
	if len(task.Payload) == 0 {
		task.Payload = []byte("{}")
	}
	task.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO tasks (id, name, task_type, trigger_at, interval_seconds, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var interval interface{}
	if task.IntervalSeconds != nil {
		interval = *task.IntervalSeconds
	}
	_, err := s.db.ExecContext(ctx, query,
		task.ID, task.Name, string(task.Type), task.TriggerAt.UTC(),
		interval, string(task.Payload), task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert task: %w", err)
	}
	return nil
}

const taskColumns = `id, name, task_type, trigger_at, interval_seconds, payload, deleted_at, created_at`

// GetTask retrieves a task by id, retired or not.
func (s *SQLiteStorage) GetTask(ctx context.Context, id string) (*Task, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: task %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// SoftDeleteTask retires a task by stamping deleted_at. Returns the number
// of rows affected; repeated calls affect zero rows but are otherwise
// harmless, and deleted_at is never cleared.
func (s *SQLiteStorage) SoftDeleteTask(ctx context.Context, id string) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to soft delete task: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}

// GetNextPending returns the live task with the smallest trigger_at, or nil
// when no live task exists. The query deliberately does not filter on
// due-ness: a future task is returned and the dispatcher sleeps toward it.
// Ties break on insertion order.
func (s *SQLiteStorage) GetNextPending(ctx context.Context) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		WHERE deleted_at IS NULL
		ORDER BY trigger_at ASC, rowid ASC
		LIMIT 1
	`)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next pending task: %w", err)
	}
	return task, nil
}

// ListTasks returns every task, retired included, newest first.
func (s *SQLiteStorage) ListTasks(ctx context.Context) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+`
		FROM tasks
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tasks: %w", err)
	}
	return tasks, nil
}

// ListExecutions returns the execution history of a task, newest first.
func (s *SQLiteStorage) ListExecutions(ctx context.Context, taskID string) ([]*Execution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, executed_at, output, status
		FROM executions
		WHERE task_id = ?
		ORDER BY executed_at DESC, rowid DESC
	`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		var e Execution
		var output, status string
		if err := rows.Scan(&e.ID, &e.TaskID, &e.ExecutedAt, &output, &status); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		e.Output = []byte(output)
		e.Status = ExecutionStatus(status)
		execs = append(execs, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return execs, nil
}

// Stats holds aggregate counts over tasks and executions.
type Stats struct {
	ActiveTasks   int64     `json:"active_tasks"`
	RetiredTasks  int64     `json:"retired_tasks"`
	Executions    int64     `json:"executions"`
	SucceededRuns int64     `json:"succeeded"`
	FailedRuns    int64     `json:"failed"`
	CollectedAt   time.Time `json:"collected_at"`
}

// GetStats retrieves aggregate counts, one pass per table.
func (s *SQLiteStorage) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{CollectedAt: time.Now().UTC()}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN deleted_at IS NULL THEN 1 END),
			COUNT(CASE WHEN deleted_at IS NOT NULL THEN 1 END)
		FROM tasks
	`).Scan(&stats.ActiveTasks, &stats.RetiredTasks)
	if err != nil {
		return nil, fmt.Errorf("failed to get task stats: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COUNT(CASE WHEN status = 'success' THEN 1 END),
			COUNT(CASE WHEN status = 'failure' THEN 1 END)
		FROM executions
	`).Scan(&stats.Executions, &stats.SucceededRuns, &stats.FailedRuns)
	if err != nil {
		return nil, fmt.Errorf("failed to get execution stats: %w", err)
	}

	return stats, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTask(row rowScanner) (*Task, error) {
	var task Task
	var taskType, payload string
	var interval sql.NullInt64
	var deletedAt sql.NullTime

	err := row.Scan(&task.ID, &task.Name, &taskType, &task.TriggerAt,
		&interval, &payload, &deletedAt, &task.CreatedAt)
	if err != nil {
		return nil, err
	}

	task.Type = TaskType(taskType)
	task.Payload = []byte(payload)
	if interval.Valid {
		v := interval.Int64
		task.IntervalSeconds = &v
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		task.DeletedAt = &t
	}
	return &task, nil
}
