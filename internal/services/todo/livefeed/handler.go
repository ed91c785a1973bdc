package livefeed

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/louisbranch/todolist/internal/platform/requestctx"
	"github.com/louisbranch/todolist/internal/platform/timeouts"
	"github.com/louisbranch/todolist/internal/services/todo/platform/httpx"
	"github.com/louisbranch/todolist/internal/services/todo/platform/requestmeta"
	"golang.org/x/net/websocket"
)

// Handler upgrades authenticated requests to a change feed. The caller
// identity must already be in the request context.
func Handler(hub *Hub, policy requestmeta.Policy) http.Handler {
	server := websocket.Server{
		Handshake: func(_ *websocket.Config, r *http.Request) error {
			if !policy.SameOrigin(r) {
				return errors.New("cross-origin websocket rejected")
			}
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			serveConn(conn, hub)
		},
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requestctx.IdentityFromContext(r.Context()); !ok {
			_ = httpx.WriteJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		server.ServeHTTP(w, r)
	})
}

func serveConn(conn *websocket.Conn, hub *Hub) {
	defer func() {
		_ = conn.Close()
	}()
	ownerID := requestctx.UserIDFromContext(conn.Request().Context())
	events, cancel := hub.Subscribe(ownerID)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		_, _ = io.Copy(io.Discard, conn)
	}()

	encoder := json.NewEncoder(conn)
	write := func(event Event) error {
		if err := conn.SetWriteDeadline(time.Now().Add(timeouts.LiveFeedWrite)); err != nil {
			return err
		}
		return encoder.Encode(event)
	}
	if err := write(Event{Type: EventTypeReady}); err != nil {
		return
	}
	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := write(event); err != nil {
				log.Printf("livefeed: write failed owner=%s err=%v", ownerID, err)
				return
			}
		}
	}
}
