// Package httpapi exposes the todo service as a JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	apperrors "github.com/louisbranch/todolist/internal/platform/errors"
	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/httpx"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
	"github.com/louisbranch/todolist/internal/services/todo/todos"
)

const messageInvalidBody = "Invalid request body"

// TodoService is the subset of the todo service the API calls.
type TodoService interface {
	List(ctx context.Context, caller requestctx.Identity) ([]storage.Todo, error)
	Create(ctx context.Context, caller requestctx.Identity, title string) (storage.Todo, error)
	SetCompleted(ctx context.Context, caller requestctx.Identity, todoID string, completed bool) error
	Delete(ctx context.Context, caller requestctx.Identity, todoID string) error
}

// Todo is the wire representation of a todo.
type Todo struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

type createTodoRequest struct {
	Title any `json:"title"`
}

// title returns the requested title. Absent, null, false and 0 all read as
// an empty title; any other non-string value is not a title.
func (in createTodoRequest) title() (string, bool) {
	switch value := in.Title.(type) {
	case string:
		return value, true
	case nil:
		return "", true
	case bool:
		return "", !value
	case float64:
		return "", value == 0
	default:
		return "", false
	}
}

type updateTodoRequest struct {
	Completed bool `json:"completed"`
}

type successResponse struct {
	Success bool `json:"success"`
}

// Handler serves the JSON routes.
type Handler struct {
	service TodoService
	schemas requestSchemas
}

// NewHandler compiles the request schemas and returns the API handler.
func NewHandler(service TodoService) (*Handler, error) {
	if service == nil {
		return nil, errors.New("todo service is required")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	return &Handler{service: service, schemas: schemas}, nil
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /todos", h.listTodos)
	mux.HandleFunc("POST /todos", h.createTodo)
	mux.HandleFunc("PATCH /todos/{id}", h.updateTodo)
	mux.HandleFunc("DELETE /todos/{id}", h.deleteTodo)
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	records, err := h.service.List(r.Context(), caller)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	out := make([]Todo, 0, len(records))
	for _, record := range records {
		out = append(out, todoToWire(record))
	}
	_ = httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var in createTodoRequest
	if err := decodeBody(w, r, h.schemas.createTodo, &in); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, messageInvalidBody)
		return
	}
	title, ok := in.title()
	if !ok {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, messageInvalidBody)
		return
	}
	record, err := h.service.Create(r.Context(), caller, title)
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, todoToWire(record))
}

func (h *Handler) updateTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	var in updateTodoRequest
	if err := decodeBody(w, r, h.schemas.updateTodo, &in); err != nil {
		_ = httpx.WriteJSONError(w, http.StatusBadRequest, messageInvalidBody)
		return
	}
	if err := h.service.SetCompleted(r.Context(), caller, r.PathValue("id"), in.Completed); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller, r.PathValue("id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, successResponse{Success: true})
}

// requireCaller rejects signed-out requests before any body is read.
func requireCaller(w http.ResponseWriter, r *http.Request) (requestctx.Identity, bool) {
	caller, ok := requestctx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, r, apperrors.E(apperrors.KindUnauthorized, todos.MessageUnauthorized))
		return requestctx.Identity{}, false
	}
	return caller, true
}

func todoToWire(record storage.Todo) Todo {
	return Todo{
		ID:        record.ID,
		OwnerID:   record.OwnerID,
		Title:     record.Title,
		Completed: record.Completed,
		CreatedAt: record.CreatedAt.UTC(),
	}
}
