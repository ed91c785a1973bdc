package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/todolist/internal/platform/timeouts"
	"github.com/louisbranch/todolist/internal/services/todo/livefeed"
	"github.com/louisbranch/todolist/internal/services/todo/platform/i18n"
	"github.com/louisbranch/todolist/internal/services/todo/platform/requestmeta"
	"github.com/louisbranch/todolist/internal/services/todo/session"
	todosqlite "github.com/louisbranch/todolist/internal/services/todo/storage/sqlite"
	"github.com/louisbranch/todolist/internal/services/todo/todos"
)

// Config defines startup inputs for the todo server.
type Config struct {
	HTTPAddr            string
	DBPath              string
	TrustForwardedProto bool
	Session             session.Config
}

// Server hosts the todo HTTP surface, its store and the live feed.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	listener   net.Listener
	store      *todosqlite.Store
	hub        *livefeed.Hub
}

// NewServer opens storage, composes the handler and binds the listener.
func NewServer(_ context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	verifier, err := session.NewVerifier(cfg.Session)
	if err != nil {
		return nil, err
	}
	catalog, err := i18n.LoadEmbedded()
	if err != nil {
		return nil, fmt.Errorf("load ui catalogs: %w", err)
	}
	store, err := openTodoStore(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	hub := livefeed.NewHub()
	handler, err := NewHandler(HandlerConfig{
		Service:       todos.NewService(store, todos.WithObserver(hub)),
		Authenticator: verifier,
		Hub:           hub,
		Catalog:       catalog,
		Policy:        requestmeta.Policy{TrustForwardedProto: cfg.TrustForwardedProto},
		Health:        store.Ping,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("compose todo handler: %w", err)
	}

	listener, err := net.Listen("tcp", httpAddr)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("listen on %s: %w", httpAddr, err)
	}
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
			IdleTimeout:       timeouts.Idle,
		},
		listener: listener,
		store:    store,
		hub:      hub,
	}, nil
}

// Addr returns the bound listener address.
func (s *Server) Addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// ListenAndServe serves HTTP traffic until context cancellation or server stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("todo server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}
	defer s.Close()

	log.Printf("todo server listening at %s", s.Addr())
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(s.listener)
	}()

	select {
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown todo http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve todo http: %w", err)
	}
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.httpServer != nil {
		_ = s.httpServer.Close()
	}
	if s.listener != nil {
		_ = s.listener.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close todo store: %v", err)
		}
	}
}

func openTodoStore(path string) (*todosqlite.Store, error) {
	if strings.TrimSpace(path) == "" {
		path = filepath.Join("data", "todo.db")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := todosqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open todo sqlite store: %w", err)
	}
	return store, nil
}
