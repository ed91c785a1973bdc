// Package web serves the server-rendered todo pages and their form posts.
package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/a-h/templ"
	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/httpx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/i18n"
	"github.com/louisbranch/todolist/internal/services/todo/platform/requestmeta"
	"github.com/louisbranch/todolist/internal/services/todo/platform/sessioncookie"
	"github.com/louisbranch/todolist/internal/services/todo/storage"
	"github.com/louisbranch/todolist/internal/services/todo/templates"
)

const (
	homePath  = "/"
	loginPath = "/login"

	maxFormBytes = 64 << 10
)

// TodoService is the subset of the todo service the pages call.
type TodoService interface {
	List(ctx context.Context, caller requestctx.Identity) ([]storage.Todo, error)
	Create(ctx context.Context, caller requestctx.Identity, title string) (storage.Todo, error)
	Toggle(ctx context.Context, caller requestctx.Identity, todoID string, previous bool) (bool, error)
	Delete(ctx context.Context, caller requestctx.Identity, todoID string) error
}

// TokenVerifier validates a pasted session token.
type TokenVerifier interface {
	Verify(token string) (requestctx.Identity, error)
}

// Config wires the page handlers.
type Config struct {
	Service  TodoService
	Verifier TokenVerifier
	Catalog  *i18n.Catalog
	Policy   requestmeta.Policy
	LiveFeed bool
	Logger   *log.Logger
}

// Handler serves the HTML routes.
type Handler struct {
	service  TodoService
	verifier TokenVerifier
	catalog  *i18n.Catalog
	policy   requestmeta.Policy
	liveFeed bool
	logger   *log.Logger
}

// NewHandler validates cfg and returns the page handler.
func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("todo service is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("session verifier is required")
	}
	if cfg.Catalog == nil {
		catalog, err := i18n.LoadEmbedded()
		if err != nil {
			return nil, err
		}
		cfg.Catalog = catalog
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Handler{
		service:  cfg.Service,
		verifier: cfg.Verifier,
		catalog:  cfg.Catalog,
		policy:   cfg.Policy,
		liveFeed: cfg.LiveFeed,
		logger:   cfg.Logger,
	}, nil
}

// Register mounts the page routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.home)
	mux.HandleFunc("GET /login", h.loginForm)
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /logout", h.logout)
	mux.HandleFunc("POST /todos/add", h.addTodo)
	mux.HandleFunc("POST /todos/toggle", h.toggleTodo)
	mux.HandleFunc("POST /todos/delete", h.deleteTodo)
}

func (h *Handler) home(w http.ResponseWriter, r *http.Request) {
	caller, ok := requestctx.IdentityFromContext(r.Context())
	if !ok {
		http.Redirect(w, r, loginPath, http.StatusFound)
		return
	}
	records, err := h.service.List(r.Context(), caller)
	if err != nil {
		h.logger.Printf("web: list todos failed user_id=%s request_id=%s err=%v", caller.ID, httpx.RequestIDFrom(r), err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	items := make([]templates.TodoItem, 0, len(records))
	for _, record := range records {
		items = append(items, templates.TodoItem{ID: record.ID, Title: record.Title, Completed: record.Completed})
	}
	loc := h.catalog.Localizer(r)
	h.render(w, r, http.StatusOK, templates.LayoutData{
		Title:    loc.T("page.title"),
		Loc:      loc,
		LiveFeed: h.liveFeed,
	}, templates.TodoPage(templates.TodoPageData{
		Loc:         loc,
		DisplayName: caller.DisplayName(),
		Todos:       items,
	}))
}

func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := requestctx.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, homePath, http.StatusFound)
		return
	}
	h.renderLogin(w, r, http.StatusOK, false)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		h.renderLogin(w, r, http.StatusBadRequest, true)
		return
	}
	token := strings.TrimSpace(r.PostFormValue("token"))
	identity, err := h.verifier.Verify(token)
	if err != nil {
		h.logger.Printf("web: login rejected request_id=%s err=%v", httpx.RequestIDFrom(r), err)
		h.renderLogin(w, r, http.StatusUnauthorized, true)
		return
	}
	sessioncookie.Write(w, r, h.policy, token, time.Time{})
	h.logger.Printf("web: login user_id=%s request_id=%s", identity.ID, httpx.RequestIDFrom(r))
	httpx.SeeOther(w, r, homePath)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	sessioncookie.Clear(w, r, h.policy)
	httpx.SeeOther(w, r, loginPath)
}

func (h *Handler) addTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.formCaller(w, r)
	if !ok {
		return
	}
	if _, err := h.service.Create(r.Context(), caller, r.PostFormValue("title")); err != nil {
		h.logFormError(r, "add", caller, err)
	}
	httpx.SeeOther(w, r, homePath)
}

func (h *Handler) toggleTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.formCaller(w, r)
	if !ok {
		return
	}
	previous, _ := strconv.ParseBool(strings.TrimSpace(r.PostFormValue("completed")))
	if _, err := h.service.Toggle(r.Context(), caller, r.PostFormValue("id"), previous); err != nil {
		h.logFormError(r, "toggle", caller, err)
	}
	httpx.SeeOther(w, r, homePath)
}

func (h *Handler) deleteTodo(w http.ResponseWriter, r *http.Request) {
	caller, ok := h.formCaller(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), caller, r.PostFormValue("id")); err != nil {
		h.logFormError(r, "delete", caller, err)
	}
	httpx.SeeOther(w, r, homePath)
}

// formCaller sends signed-out posts to the login page and parses the form
// for everyone else. Unparseable forms fall back to the list.
func (h *Handler) formCaller(w http.ResponseWriter, r *http.Request) (requestctx.Identity, bool) {
	caller, ok := requestctx.IdentityFromContext(r.Context())
	if !ok {
		httpx.SeeOther(w, r, loginPath)
		return requestctx.Identity{}, false
	}
	if !h.parseForm(w, r) {
		httpx.SeeOther(w, r, homePath)
		return requestctx.Identity{}, false
	}
	return caller, true
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		h.logger.Printf("web: parse form failed path=%s request_id=%s err=%v", r.URL.Path, httpx.RequestIDFrom(r), err)
		return false
	}
	return true
}

func (h *Handler) logFormError(r *http.Request, action string, caller requestctx.Identity, err error) {
	h.logger.Printf("web: %s todo failed user_id=%s request_id=%s err=%v", action, caller.ID, httpx.RequestIDFrom(r), err)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, invalid bool) {
	loc := h.catalog.Localizer(r)
	h.render(w, r, status, templates.LayoutData{
		Title: loc.T("login.title"),
		Loc:   loc,
	}, templates.LoginPage(templates.LoginPageData{Loc: loc, Invalid: invalid}))
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, layout templates.LayoutData, body templ.Component) {
	templ.Handler(
		templates.Page(layout, body),
		templ.WithStatus(status),
		templ.WithErrorHandler(func(r *http.Request, err error) http.Handler {
			h.logger.Printf("web: render failed path=%s request_id=%s err=%v", r.URL.Path, httpx.RequestIDFrom(r), err)
			return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			})
		}),
	).ServeHTTP(w, r)
}
