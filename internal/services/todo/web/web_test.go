package web

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	apperrors "github.com/louisbranch/todolist/internal/platform/errors"
	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/sessioncookie"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
)

type toggleCall struct {
	id       string
	previous bool
}

type fakeService struct {
	todos   []storage.Todo
	calls   int
	created []string
	toggled []toggleCall
	deleted []string
	err     error
}

func (f *fakeService) List(_ context.Context, _ requestctx.Identity) ([]storage.Todo, error) {
	f.calls++
	return f.todos, f.err
}

func (f *fakeService) Create(_ context.Context, caller requestctx.Identity, title string) (storage.Todo, error) {
	f.calls++
	if strings.TrimSpace(title) == "" {
		return storage.Todo{}, apperrors.E(apperrors.KindInvalidInput, "Title is required")
	}
	f.created = append(f.created, title)
	return storage.Todo{ID: "new", OwnerID: caller.ID, Title: title}, f.err
}

func (f *fakeService) Toggle(_ context.Context, _ requestctx.Identity, todoID string, previous bool) (bool, error) {
	f.calls++
	f.toggled = append(f.toggled, toggleCall{id: todoID, previous: previous})
	return !previous, f.err
}

func (f *fakeService) Delete(_ context.Context, _ requestctx.Identity, todoID string) error {
	f.calls++
	f.deleted = append(f.deleted, todoID)
	return f.err
}

type fakeVerifier struct {
	valid map[string]requestctx.Identity
}

func (f fakeVerifier) Verify(token string) (requestctx.Identity, error) {
	identity, ok := f.valid[token]
	if !ok {
		return requestctx.Identity{}, apperrors.E(apperrors.KindUnauthorized, "session is invalid")
	}
	return identity, nil
}

var alice = requestctx.Identity{ID: "user-alice", Name: "Alice"}

type webFixture struct {
	mux     *http.ServeMux
	service *fakeService
	logs    *bytes.Buffer
}

func newWebFixture(t *testing.T) webFixture {
	t.Helper()
	service := &fakeService{}
	logs := &bytes.Buffer{}
	handler, err := NewHandler(Config{
		Service:  service,
		Verifier: fakeVerifier{valid: map[string]requestctx.Identity{"good-token": alice}},
		Logger:   log.New(logs, "", 0),
		LiveFeed: true,
	})
	if err != nil {
		t.Fatalf("new handler: %v", err)
	}
	mux := http.NewServeMux()
	handler.Register(mux)
	return webFixture{mux: mux, service: service, logs: logs}
}

func (f webFixture) get(caller *requestctx.Identity, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return f.serve(caller, req)
}

func (f webFixture) post(caller *requestctx.Identity, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return f.serve(caller, req)
}

func (f webFixture) serve(caller *requestctx.Identity, req *http.Request) *httptest.ResponseRecorder {
	if caller != nil {
		req = req.WithContext(requestctx.WithIdentity(req.Context(), *caller))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func assertRedirect(t *testing.T, rec *httptest.ResponseRecorder, status int, location string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d", rec.Code, status)
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("location = %q, want %q", got, location)
	}
}

func TestHomeRedirectsSignedOutToLogin(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	assertRedirect(t, f.get(nil, "/"), http.StatusFound, "/login")
	if f.service.calls != 0 {
		t.Fatalf("service calls = %d, want 0", f.service.calls)
	}
}

func TestHomeRendersListForCaller(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.service.todos = []storage.Todo{
		{ID: "todo-2", OwnerID: alice.ID, Title: "Walk dog", Completed: true, CreatedAt: time.Now()},
		{ID: "todo-1", OwnerID: alice.ID, Title: "Buy milk"},
	}
	rec := f.get(&alice, "/")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Fatalf("content type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Welcome, Alice", "Walk dog", "Buy milk", `action="/logout"`, "/todos/events"} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q", want)
		}
	}
	if strings.Index(body, "Walk dog") > strings.Index(body, "Buy milk") {
		t.Fatal("expected service order to be preserved")
	}
}

func TestHomeFallsBackToEmailThenID(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	byEmail := requestctx.Identity{ID: "user-2", Email: "bob@example.com"}
	if body := f.get(&byEmail, "/").Body.String(); !strings.Contains(body, "Welcome, bob@example.com") {
		t.Fatalf("expected email greeting, got %s", body)
	}
	byID := requestctx.Identity{ID: "user-3"}
	if body := f.get(&byID, "/").Body.String(); !strings.Contains(body, "Welcome, user-3") {
		t.Fatalf("expected id greeting, got %s", body)
	}
}

func TestHomeLocalizesCopy(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "tr-TR,tr;q=0.9")
	body := f.serve(&alice, req).Body.String()
	if !strings.Contains(body, "Hoş geldin, Alice") || !strings.Contains(body, `lang="tr-TR"`) {
		t.Fatalf("expected turkish page, got %s", body)
	}
}

func TestHomeListFailureIsServerError(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	f.service.err = errors.New("disk full")
	if rec := f.get(&alice, "/"); rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(f.logs.String(), "disk full") {
		t.Fatalf("expected logged failure, got %q", f.logs.String())
	}
}

func TestFormPostsRedirectHome(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	assertRedirect(t, f.post(&alice, "/todos/add", url.Values{"title": {"Buy milk"}}), http.StatusSeeOther, "/")
	assertRedirect(t, f.post(&alice, "/todos/toggle", url.Values{"id": {"todo-1"}, "completed": {"true"}}), http.StatusSeeOther, "/")
	assertRedirect(t, f.post(&alice, "/todos/toggle", url.Values{"id": {"todo-1"}, "completed": {"false"}}), http.StatusSeeOther, "/")
	assertRedirect(t, f.post(&alice, "/todos/delete", url.Values{"id": {"todo-1"}}), http.StatusSeeOther, "/")

	if len(f.service.created) != 1 || f.service.created[0] != "Buy milk" {
		t.Fatalf("created = %v", f.service.created)
	}
	wantToggles := []toggleCall{{id: "todo-1", previous: true}, {id: "todo-1", previous: false}}
	if len(f.service.toggled) != 2 || f.service.toggled[0] != wantToggles[0] || f.service.toggled[1] != wantToggles[1] {
		t.Fatalf("toggled = %+v, want %+v", f.service.toggled, wantToggles)
	}
	if len(f.service.deleted) != 1 || f.service.deleted[0] != "todo-1" {
		t.Fatalf("deleted = %v", f.service.deleted)
	}
}

func TestFormErrorsAreSilentAndLogged(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	assertRedirect(t, f.post(&alice, "/todos/add", url.Values{"title": {"   "}}), http.StatusSeeOther, "/")
	if !strings.Contains(f.logs.String(), "add todo failed") {
		t.Fatalf("expected logged add failure, got %q", f.logs.String())
	}

	f.service.err = apperrors.E(apperrors.KindNotFound, "Todo not found")
	assertRedirect(t, f.post(&alice, "/todos/delete", url.Values{"id": {"missing"}}), http.StatusSeeOther, "/")
	if !strings.Contains(f.logs.String(), "delete todo failed") {
		t.Fatalf("expected logged delete failure, got %q", f.logs.String())
	}
}

func TestSignedOutFormPostsGoToLogin(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	for _, target := range []string{"/todos/add", "/todos/toggle", "/todos/delete"} {
		assertRedirect(t, f.post(nil, target, url.Values{"id": {"x"}, "title": {"x"}}), http.StatusSeeOther, "/login")
	}
	if f.service.calls != 0 {
		t.Fatalf("service calls = %d, want 0", f.service.calls)
	}
}

func TestLoginWithValidTokenSetsCookie(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	rec := f.post(nil, "/login", url.Values{"token": {" good-token "}})
	assertRedirect(t, rec, http.StatusSeeOther, "/")

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessioncookie.Name || cookies[0].Value != "good-token" {
		t.Fatalf("cookies = %+v", cookies)
	}
	if !cookies[0].HttpOnly || cookies[0].SameSite != http.SameSiteLaxMode {
		t.Fatalf("cookie attributes = %+v", cookies[0])
	}
}

func TestLoginWithInvalidTokenRerendersForm(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	rec := f.post(nil, "/login", url.Values{"token": {"forged"}})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatal("invalid login must not set a cookie")
	}
	if !strings.Contains(rec.Body.String(), "That session token is not valid.") {
		t.Fatalf("body = %s", rec.Body.String())
	}
}

func TestLoginFormRedirectsSignedInCaller(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	assertRedirect(t, f.get(&alice, "/login"), http.StatusFound, "/")

	rec := f.get(nil, "/login")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `name="token"`) {
		t.Fatalf("login form = %d %s", rec.Code, rec.Body.String())
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	rec := f.post(&alice, "/logout", nil)
	assertRedirect(t, rec, http.StatusSeeOther, "/login")
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessioncookie.Name || cookies[0].MaxAge >= 0 {
		t.Fatalf("cookies = %+v, want expired session cookie", cookies)
	}
}

func TestUnknownPathIsNotFound(t *testing.T) {
	t.Parallel()

	f := newWebFixture(t)
	if rec := f.get(&alice, "/nope"); rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestNewHandlerValidatesDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewHandler(Config{Verifier: fakeVerifier{}}); err == nil {
		t.Fatal("expected missing service error")
	}
	if _, err := NewHandler(Config{Service: &fakeService{}}); err == nil {
		t.Fatal("expected missing verifier error")
	}
}
