// Package todos implements the owner-scoped to-do operations shared by the
// JSON API and the web pages.
package todos

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/louisbranch/todolist/internal/platform/errors"
	"github.com/louisbranch/todolist/internal/platform/id"
	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/louisbranch/todolist/internal/services/todo/todos"

// Client-facing messages.
const (
	MessageUnauthorized  = "Unauthorized"
	MessageTitleRequired = "Title is required"
	MessageNotFound      = "Todo not found"
)

// Op names the mutation reported to observers.
type Op string

const (
	OpCreated Op = "created"
	OpUpdated Op = "updated"
	OpDeleted Op = "deleted"
)

// Change describes one successful mutation of an owner's list.
type Change struct {
	OwnerID string
	TodoID  string
	Op      Op
}

// Observer is notified after a mutation commits.
type Observer interface {
	TodosChanged(ctx context.Context, change Change)
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the creation timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides todo id generation.
func WithIDGenerator(generate func() (string, error)) Option {
	return func(s *Service) {
		if generate != nil {
			s.idGenerator = generate
		}
	}
}

// WithObserver registers the mutation observer.
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		s.observer = observer
	}
}

// Service exposes todo operations for one authenticated caller at a time.
type Service struct {
	store       storage.TodoStore
	clock       func() time.Time
	idGenerator func() (string, error)
	observer    Observer
	tracer      trace.Tracer
}

// NewService creates a todo service backed by store.
func NewService(store storage.TodoStore, opts ...Option) *Service {
	s := &Service{
		store:       store,
		clock:       time.Now,
		idGenerator: id.NewID,
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// List returns the caller's todos, newest first.
func (s *Service) List(ctx context.Context, caller requestctx.Identity) (todos []storage.Todo, err error) {
	ctx, span := s.start(ctx, "todos.List", caller)
	defer func() { finish(span, err) }()

	if err := s.authorize(caller); err != nil {
		return nil, err
	}
	todos, err = s.store.ListTodos(ctx, caller.ID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindUnknown, "list todos", err)
	}
	if todos == nil {
		todos = []storage.Todo{}
	}
	span.SetAttributes(attribute.Int("todo.count", len(todos)))
	return todos, nil
}

// Create adds a new incomplete todo owned by the caller.
func (s *Service) Create(ctx context.Context, caller requestctx.Identity, title string) (todo storage.Todo, err error) {
	ctx, span := s.start(ctx, "todos.Create", caller)
	defer func() { finish(span, err) }()

	if err := s.authorize(caller); err != nil {
		return storage.Todo{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return storage.Todo{}, apperrors.E(apperrors.KindInvalidInput, MessageTitleRequired)
	}
	todoID, err := s.idGenerator()
	if err != nil {
		return storage.Todo{}, apperrors.Wrap(apperrors.KindUnknown, "generate todo id", err)
	}
	todo = storage.Todo{
		ID:        todoID,
		OwnerID:   caller.ID,
		Title:     title,
		Completed: false,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.store.CreateTodo(ctx, todo); err != nil {
		return storage.Todo{}, apperrors.Wrap(apperrors.KindUnknown, "create todo", err)
	}
	span.SetAttributes(attribute.String("todo.id", todo.ID))
	s.notify(ctx, Change{OwnerID: caller.ID, TodoID: todo.ID, Op: OpCreated})
	return todo, nil
}

// SetCompleted stores an explicit completion value on one owned todo.
func (s *Service) SetCompleted(ctx context.Context, caller requestctx.Identity, todoID string, completed bool) (err error) {
	ctx, span := s.start(ctx, "todos.SetCompleted", caller)
	defer func() { finish(span, err) }()
	span.SetAttributes(attribute.String("todo.id", todoID), attribute.Bool("todo.completed", completed))

	if err := s.authorize(caller); err != nil {
		return err
	}
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return apperrors.E(apperrors.KindNotFound, MessageNotFound)
	}
	if err := s.store.SetTodoCompleted(ctx, caller.ID, todoID, completed); err != nil {
		return storeError("set todo completed", err)
	}
	s.notify(ctx, Change{OwnerID: caller.ID, TodoID: todoID, Op: OpUpdated})
	return nil
}

// Toggle flips a todo from the completion value the caller last saw and
// returns the value now stored.
func (s *Service) Toggle(ctx context.Context, caller requestctx.Identity, todoID string, previous bool) (bool, error) {
	completed := !previous
	if err := s.SetCompleted(ctx, caller, todoID, completed); err != nil {
		return previous, err
	}
	return completed, nil
}

// Delete removes one owned todo.
func (s *Service) Delete(ctx context.Context, caller requestctx.Identity, todoID string) (err error) {
	ctx, span := s.start(ctx, "todos.Delete", caller)
	defer func() { finish(span, err) }()
	span.SetAttributes(attribute.String("todo.id", todoID))

	if err := s.authorize(caller); err != nil {
		return err
	}
	todoID = strings.TrimSpace(todoID)
	if todoID == "" {
		return apperrors.E(apperrors.KindNotFound, MessageNotFound)
	}
	if err := s.store.DeleteTodo(ctx, caller.ID, todoID); err != nil {
		return storeError("delete todo", err)
	}
	s.notify(ctx, Change{OwnerID: caller.ID, TodoID: todoID, Op: OpDeleted})
	return nil
}

func (s *Service) authorize(caller requestctx.Identity) error {
	if !caller.Authenticated() {
		return apperrors.E(apperrors.KindUnauthorized, MessageUnauthorized)
	}
	if s == nil || s.store == nil {
		return apperrors.E(apperrors.KindUnknown, "todo store is not configured")
	}
	return nil
}

func (s *Service) notify(ctx context.Context, change Change) {
	if s.observer == nil {
		return
	}
	s.observer.TodosChanged(ctx, change)
}

func (s *Service) start(ctx context.Context, name string, caller requestctx.Identity) (context.Context, trace.Span) {
	tracer := otel.Tracer(tracerName)
	if s != nil && s.tracer != nil {
		tracer = s.tracer
	}
	ctx, span := tracer.Start(ctx, name)
	if caller.Authenticated() {
		span.SetAttributes(attribute.String("todo.owner_id", caller.ID))
	}
	return ctx, span
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(apperrors.KindOf(err)))
	}
	span.End()
}

func storeError(op string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Wrap(apperrors.KindNotFound, MessageNotFound, err)
	}
	return apperrors.Wrap(apperrors.KindUnknown, op, err)
}
