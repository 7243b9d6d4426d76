package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
)

// backupTables are copied in dependency order so the snapshot is
// self-consistent with respect to the executions foreign key.
var backupTables = []string{"schema_migrations", "tasks", "executions"}

// Backup writes a consistent snapshot of the database to backupPath.
// The copies run inside one transaction on the source so concurrent
// dispatch cannot tear the snapshot. ATTACH and DETACH sit outside that
// transaction; SQLite refuses to detach a database modified by a
// transaction that is still open.
func (s *SQLiteStorage) Backup(ctx context.Context, backupPath string) error {
	backupDir := filepath.Dir(backupPath)
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("failed to create backup directory: %w", err)
	}

	// Pin a single connection: ATTACH is per-connection state.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, fmt.Sprintf(`
		ATTACH DATABASE '%s' AS backup;

		BEGIN;
		CREATE TABLE backup.schema_migrations AS SELECT * FROM schema_migrations;
		CREATE TABLE backup.tasks AS SELECT * FROM tasks;
		CREATE TABLE backup.executions AS SELECT * FROM executions;

		CREATE INDEX backup.idx_tasks_pending ON tasks(trigger_at) WHERE deleted_at IS NULL;
		CREATE INDEX backup.idx_executions_task_id ON executions(task_id);
		COMMIT;

		DETACH DATABASE backup;
	`, backupPath))
	if err != nil {
		os.Remove(backupPath)
		return fmt.Errorf("failed to backup database: %w", err)
	}

	if err := s.verifyBackup(ctx, backupPath); err != nil {
		os.Remove(backupPath)
		return fmt.Errorf("backup verification failed: %w", err)
	}

	return nil
}

// verifyBackup compares row counts between the source and the backup.
func (s *SQLiteStorage) verifyBackup(ctx context.Context, backupPath string) error {
	backupDB, err := sql.Open("sqlite3", backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup database: %w", err)
	}
	defer backupDB.Close()

	for _, table := range backupTables {
		var sourceCount, backupCount int64

		err := s.db.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&sourceCount)
		if err != nil {
			return fmt.Errorf("failed to get source count for table %s: %w", table, err)
		}

		err = backupDB.QueryRowContext(ctx,
			fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&backupCount)
		if err != nil {
			return fmt.Errorf("failed to get backup count for table %s: %w", table, err)
		}

		if sourceCount != backupCount {
			return fmt.Errorf("row count mismatch for table %s: source=%d, backup=%d",
				table, sourceCount, backupCount)
		}
	}

	return nil
}
