// Package storage defines persistence contracts for todo items.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no row matched both the todo id and its owner.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a todo id collided with an existing row.
	ErrAlreadyExists = errors.New("record already exists")
)

// Todo stores one to-do item owned by exactly one user.
type Todo struct {
	ID        string
	OwnerID   string
	Title     string
	Completed bool
	CreatedAt time.Time
}

// TodoStore persists todo items. Every method is scoped by owner so callers
// never see or touch rows belonging to someone else.
type TodoStore interface {
	// ListTodos returns the owner's todos, newest first.
	ListTodos(ctx context.Context, ownerID string) ([]Todo, error)
	CreateTodo(ctx context.Context, todo Todo) error
	// SetTodoCompleted returns ErrNotFound when no owned row matched.
	SetTodoCompleted(ctx context.Context, ownerID string, todoID string, completed bool) error
	// DeleteTodo returns ErrNotFound when no owned row matched.
	DeleteTodo(ctx context.Context, ownerID string, todoID string) error
}
