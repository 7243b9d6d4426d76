package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrTransactionClosed = errors.New("transaction is already closed")

// Transaction scopes the mutations of a single process_task sequence so the
// execution insert and the retire/reschedule commit or roll back together.
type Transaction struct {
	tx     *sql.Tx
	closed bool
}

// BeginTx starts a new database transaction.
func (s *SQLiteStorage) BeginTx(ctx context.Context) (*Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx}, nil
}

// Commit commits the transaction.
func (t *Transaction) Commit() error {
	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Transaction) Rollback() error {
	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true
	return t.tx.Rollback()
}

// InsertExecution inserts an execution record within the transaction.
// Fails with a foreign key violation if the referenced task row is gone.
func (t *Transaction) InsertExecution(exec *Execution) error {
	if t.closed {
		return ErrTransactionClosed
	}
	if len(exec.Output) == 0 {
		exec.Output = []byte("{}")
	}
	query := `
		INSERT INTO executions (id, task_id, executed_at, output, status)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := t.tx.Exec(query,
		exec.ID, exec.TaskID, exec.ExecutedAt.UTC(), string(exec.Output), string(exec.Status))
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// SoftDeleteTask retires a task within the transaction.
func (t *Transaction) SoftDeleteTask(id string) (int64, error) {
	if t.closed {
		return 0, ErrTransactionClosed
	}
	result, err := t.tx.Exec(
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

// UpdateTrigger overwrites a task's trigger_at within the transaction.
func (t *Transaction) UpdateTrigger(id string, newTriggerAt time.Time) (int64, error) {
	if t.closed {
		return 0, ErrTransactionClosed
	}
	result, err := t.tx.Exec(
		`UPDATE tasks SET trigger_at = ? WHERE id = ?`,
		newTriggerAt.UTC(), id)
	if err != nil {
		return 0, fmt.Errorf("failed to update trigger: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows, nil
}
