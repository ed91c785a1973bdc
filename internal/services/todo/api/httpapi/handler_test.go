package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
	"github.com/louisbranch/todolist/internal/services/todo/storage/sqlite"
	"github.com/louisbranch/todolist/internal/services/todo/todos"
)

type countingStore struct {
	storage.TodoStore
	calls atomic.Int64
}

func (c *countingStore) ListTodos(ctx context.Context, ownerID string) ([]storage.Todo, error) {
	c.calls.Add(1)
	return c.TodoStore.ListTodos(ctx, ownerID)
}

func (c *countingStore) CreateTodo(ctx context.Context, todo storage.Todo) error {
	c.calls.Add(1)
	return c.TodoStore.CreateTodo(ctx, todo)
}

func (c *countingStore) SetTodoCompleted(ctx context.Context, ownerID string, todoID string, completed bool) error {
	c.calls.Add(1)
	return c.TodoStore.SetTodoCompleted(ctx, ownerID, todoID, completed)
}

func (c *countingStore) DeleteTodo(ctx context.Context, ownerID string, todoID string) error {
	c.calls.Add(1)
	return c.TodoStore.DeleteTodo(ctx, ownerID, todoID)
}

type apiFixture struct {
	mux   *http.ServeMux
	store *countingStore
}

func newAPIFixture(t *testing.T) apiFixture {
	t.Helper()
	sqlStore, err := sqlite.Open(filepath.Join(t.TempDir(), "todo.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = sqlStore.Close() })

	store := &countingStore{TodoStore: sqlStore}
	handler, err := NewHandler(todos.NewService(store))
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.Register(mux)
	return apiFixture{mux: mux, store: store}
}

func (f apiFixture) do(t *testing.T, caller string, method string, target string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req = req.WithContext(requestctx.WithIdentity(req.Context(), requestctx.Identity{ID: caller}))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func assertJSONError(t *testing.T, rec *httptest.ResponseRecorder, status int, message string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != message {
		t.Fatalf("error = %q, want %q", body["error"], message)
	}
}

func decodeTodos(t *testing.T, rec *httptest.ResponseRecorder) []Todo {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var out []Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode todos: %v", err)
	}
	return out
}

func TestTodoLifecycle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)

	if got := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", "")); len(got) != 0 {
		t.Fatalf("initial todos = %+v, want empty", got)
	}
	if body := strings.TrimSpace(f.do(t, "user-a", http.MethodGet, "/todos", "").Body.String()); body != "[]" {
		t.Fatalf("empty list body = %q, want []", body)
	}

	rec := f.do(t, "user-a", http.MethodPost, "/todos", `{"title":"  Buy milk  "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	if created.Title != "Buy milk" || created.OwnerID != "user-a" || created.Completed || created.ID == "" {
		t.Fatalf("created = %+v", created)
	}

	list := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", ""))
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list = %+v", list)
	}

	rec = f.do(t, "user-a", http.MethodPatch, "/todos/"+created.ID, `{"completed":true}`)
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("patch = %d %s", rec.Code, rec.Body.String())
	}
	if list = decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", "")); !list[0].Completed {
		t.Fatal("expected completed todo after patch")
	}

	rec = f.do(t, "user-a", http.MethodDelete, "/todos/"+created.ID, "")
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"success":true}` {
		t.Fatalf("delete = %d %s", rec.Code, rec.Body.String())
	}
	if list = decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", "")); len(list) != 0 {
		t.Fatalf("list after delete = %+v", list)
	}
}

func TestListIsNewestFirst(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	for _, title := range []string{"first", "second", "third"} {
		if rec := f.do(t, "user-a", http.MethodPost, "/todos", `{"title":"`+title+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("create %s: %d", title, rec.Code)
		}
	}
	list := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", ""))
	if len(list) != 3 || list[0].Title != "third" || list[2].Title != "first" {
		t.Fatalf("list = %+v", list)
	}
}

func TestUnauthenticatedRequestsNeverTouchStore(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	requests := []struct {
		method string
		target string
		body   string
	}{
		{method: http.MethodGet, target: "/todos"},
		{method: http.MethodPost, target: "/todos", body: `{"title":"x"}`},
		{method: http.MethodPost, target: "/todos", body: `not json`},
		{method: http.MethodPatch, target: "/todos/abc", body: `{"completed":true}`},
		{method: http.MethodDelete, target: "/todos/abc"},
	}
	for _, tc := range requests {
		rec := f.do(t, "", tc.method, tc.target, tc.body)
		assertJSONError(t, rec, http.StatusUnauthorized, "Unauthorized")
	}
	if calls := f.store.calls.Load(); calls != 0 {
		t.Fatalf("store calls = %d, want 0", calls)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{name: "missing title", body: `{}`, message: "Title is required"},
		{name: "empty title", body: `{"title":""}`, message: "Title is required"},
		{name: "whitespace title", body: `{"title":"   "}`, message: "Title is required"},
		{name: "null title", body: `{"title":null}`, message: "Title is required"},
		{name: "false title", body: `{"title":false}`, message: "Title is required"},
		{name: "zero title", body: `{"title":0}`, message: "Title is required"},
		{name: "true title", body: `{"title":true}`, message: "Invalid request body"},
		{name: "object title", body: `{"title":{"text":"a"}}`, message: "Invalid request body"},
		{name: "malformed json", body: `{"title":`, message: "Invalid request body"},
		{name: "wrong type", body: `{"title":42}`, message: "Invalid request body"},
		{name: "not an object", body: `["title"]`, message: "Invalid request body"},
		{name: "trailing document", body: `{"title":"a"}{"title":"b"}`, message: "Invalid request body"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertJSONError(t, f.do(t, "user-a", http.MethodPost, "/todos", tc.body), http.StatusBadRequest, tc.message)
		})
	}
	if list := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", "")); len(list) != 0 {
		t.Fatalf("validation failures created todos: %+v", list)
	}
}

func TestCreateAcceptsLongTitle(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	title := strings.Repeat("x", 5000)
	rec := f.do(t, "user-a", http.MethodPost, "/todos", `{"title":"`+title+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	list := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", ""))
	if len(list) != 1 {
		t.Fatalf("list = %d todos, want 1", len(list))
	}
	if list[0].Title != title {
		t.Fatalf("stored title length = %d, want %d", len(list[0].Title), len(title))
	}
}

func TestCreateRejectsOversizedBody(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	body := `{"title":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	assertJSONError(t, f.do(t, "user-a", http.MethodPost, "/todos", body), http.StatusBadRequest, "Invalid request body")
}

func TestPatchValidation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	for _, body := range []string{`{}`, `{"completed":"yes"}`, `{"completed":null}`, `nope`} {
		assertJSONError(t, f.do(t, "user-a", http.MethodPatch, "/todos/abc", body), http.StatusBadRequest, "Invalid request body")
	}
	if calls := f.store.calls.Load(); calls != 0 {
		t.Fatalf("store calls = %d, want 0", calls)
	}
}

func TestOwnershipIsolation(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	rec := f.do(t, "user-a", http.MethodPost, "/todos", `{"title":"private"}`)
	var created Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}

	if list := decodeTodos(t, f.do(t, "user-b", http.MethodGet, "/todos", "")); len(list) != 0 {
		t.Fatalf("user-b list = %+v, want empty", list)
	}
	assertJSONError(t, f.do(t, "user-b", http.MethodPatch, "/todos/"+created.ID, `{"completed":true}`), http.StatusNotFound, "Todo not found")
	assertJSONError(t, f.do(t, "user-b", http.MethodDelete, "/todos/"+created.ID, ""), http.StatusNotFound, "Todo not found")

	list := decodeTodos(t, f.do(t, "user-a", http.MethodGet, "/todos", ""))
	if len(list) != 1 || list[0].Completed {
		t.Fatalf("user-a list = %+v, want untouched todo", list)
	}
}

func TestPatchSameValueTwiceSucceeds(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	rec := f.do(t, "user-a", http.MethodPost, "/todos", `{"title":"twice"}`)
	var created Todo
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode created: %v", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		if rec := f.do(t, "user-a", http.MethodPatch, "/todos/"+created.ID, `{"completed":true}`); rec.Code != http.StatusOK {
			t.Fatalf("patch attempt %d status = %d", attempt, rec.Code)
		}
	}
}

func TestUnknownIDIsNotFound(t *testing.T) {
	t.Parallel()

	f := newAPIFixture(t)
	assertJSONError(t, f.do(t, "user-a", http.MethodPatch, "/todos/missing", `{"completed":false}`), http.StatusNotFound, "Todo not found")
	assertJSONError(t, f.do(t, "user-a", http.MethodDelete, "/todos/missing", ""), http.StatusNotFound, "Todo not found")
}

func TestNewHandlerRequiresService(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(nil); err == nil {
		t.Fatal("expected missing service error")
	}
}
