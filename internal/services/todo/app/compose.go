// Package app composes the todo HTTP surface and owns its lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/services/todo/api/httpapi"
	"github.com/louisbranch/todolist/internal/services/todo/livefeed"
	"github.com/louisbranch/todolist/internal/services/todo/platform/httpx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/i18n"
	"github.com/louisbranch/todolist/internal/services/todo/platform/observability"
	"github.com/louisbranch/todolist/internal/services/todo/platform/requestmeta"
	"github.com/louisbranch/todolist/internal/services/todo/platform/sessioncookie"
	"github.com/louisbranch/todolist/internal/services/todo/web"
	"go.opentelemetry.io/otel/trace"
)

// TodoService is everything the JSON API and the pages call.
type TodoService interface {
	httpapi.TodoService
	web.TodoService
}

// Authenticator resolves and verifies session tokens.
type Authenticator interface {
	Resolve(r *http.Request) (requestctx.Identity, bool)
	Verify(token string) (requestctx.Identity, error)
}

// HandlerConfig carries the collaborators of the root handler.
type HandlerConfig struct {
	Service       TodoService
	Authenticator Authenticator
	Hub           *livefeed.Hub
	Catalog       *i18n.Catalog
	Policy        requestmeta.Policy
	Health        func(context.Context) error
	Logger        *log.Logger
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// NewHandler builds the root handler with its middleware chain.
func NewHandler(cfg HandlerConfig) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, errors.New("todo service is required")
	}
	if cfg.Authenticator == nil {
		return nil, errors.New("authenticator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	api, err := httpapi.NewHandler(cfg.Service)
	if err != nil {
		return nil, fmt.Errorf("compose json api: %w", err)
	}
	pages, err := web.NewHandler(web.Config{
		Service:  cfg.Service,
		Verifier: cfg.Authenticator,
		Catalog:  cfg.Catalog,
		Policy:   cfg.Policy,
		LiveFeed: cfg.Hub != nil,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("compose web pages: %w", err)
	}

	mux := http.NewServeMux()
	api.Register(mux)
	pages.Register(mux)
	if cfg.Hub != nil {
		mux.Handle("GET /todos/events", livefeed.Handler(cfg.Hub, cfg.Policy))
	}
	mux.HandleFunc("GET /healthz", healthHandler(cfg.Health))

	return httpx.Chain(observability.RecordRoute(mux),
		httpx.RecoverPanic(),
		httpx.RequestID(),
		observability.TracingWith(cfg.TracerProvider),
		observability.RequestLogger(cfg.Logger),
		authenticate(cfg.Authenticator),
		requireCookieSessionSameOrigin(cfg.Policy),
	), nil
}

// authenticate stores the resolved caller in the request context. Requests
// without a valid token continue signed out.
func authenticate(auth Authenticator) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := auth.Resolve(r)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestctx.WithIdentity(r.Context(), identity)))
		})
	}
}

// requireCookieSessionSameOrigin rejects cookie-authenticated mutations that
// cannot prove they came from this origin.
func requireCookieSessionSameOrigin(policy requestmeta.Policy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isMutationMethod(r) || !hasSessionCookie(r) || hasBearerToken(r) {
				next.ServeHTTP(w, r)
				return
			}
			if !policy.SameOrigin(r) {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isMutationMethod(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func hasSessionCookie(r *http.Request) bool {
	_, ok := sessioncookie.Read(r)
	return ok
}

func hasBearerToken(r *http.Request) bool {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	return ok && strings.EqualFold(scheme, "Bearer") && strings.TrimSpace(token) != ""
}

func healthHandler(check func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(r.Context()); err != nil {
				log.Printf("health check failed err=%v", err)
				_ = httpx.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
