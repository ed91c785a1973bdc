// Package sqlite provides a SQLite-backed todo storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/todolist/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
	"github.com/louisbranch/todolist/internal/services/todo/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

const dsnPragmas = "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"

// Store persists todos in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite todo store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path)+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(context.Background(), sqlDB, migrations.FS, ""); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping reports whether the database answers.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	return s.sqlDB.PingContext(ctx)
}

// ListTodos returns the owner's todos, newest first. Rows created in the same
// millisecond fall back to insertion order.
func (s *Store) ListTodos(ctx context.Context, ownerID string) ([]storage.Todo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("owner id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, owner_id, title, completed, created_at
		   FROM todos
		  WHERE owner_id = ?
		  ORDER BY created_at DESC, rowid DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	todos := make([]storage.Todo, 0)
	for rows.Next() {
		var todo storage.Todo
		var createdAt int64
		if err := rows.Scan(&todo.ID, &todo.OwnerID, &todo.Title, &todo.Completed, &createdAt); err != nil {
			return nil, fmt.Errorf("list todos: %w", err)
		}
		todo.CreatedAt = fromMillis(createdAt)
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// CreateTodo inserts one todo.
func (s *Store) CreateTodo(ctx context.Context, todo storage.Todo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	todoID := strings.TrimSpace(todo.ID)
	ownerID := strings.TrimSpace(todo.OwnerID)
	if todoID == "" {
		return fmt.Errorf("todo id is required")
	}
	if ownerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(todo.Title) == "" {
		return fmt.Errorf("title is required")
	}
	createdAt := todo.CreatedAt.UTC()
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO todos (id, owner_id, title, completed, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		todoID,
		ownerID,
		todo.Title,
		todo.Completed,
		toMillis(createdAt),
	)
	if err != nil {
		if isTodoUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create todo: %w", err)
	}
	return nil
}

// SetTodoCompleted updates the completion flag of one owned todo.
func (s *Store) SetTodoCompleted(ctx context.Context, ownerID string, todoID string, completed bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	todoID = strings.TrimSpace(todoID)
	if ownerID == "" || todoID == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE todos SET completed = ? WHERE id = ? AND owner_id = ?`,
		completed,
		todoID,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("set todo completed: %w", err)
	}
	return requireOneRow(result, "set todo completed")
}

// DeleteTodo removes one owned todo.
func (s *Store) DeleteTodo(ctx context.Context, ownerID string, todoID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	ownerID = strings.TrimSpace(ownerID)
	todoID = strings.TrimSpace(todoID)
	if ownerID == "" || todoID == "" {
		return storage.ErrNotFound
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`DELETE FROM todos WHERE id = ? AND owner_id = ?`,
		todoID,
		ownerID,
	)
	if err != nil {
		return fmt.Errorf("delete todo: %w", err)
	}
	return requireOneRow(result, "delete todo")
}

func requireOneRow(result sql.Result, op string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func isTodoUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "unique constraint failed") &&
		strings.Contains(message, "todos.id")
}

var _ storage.TodoStore = (*Store)(nil)
