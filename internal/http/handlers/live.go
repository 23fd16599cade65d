package handlers

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"

	"github.com/sr22fit/checkout-web/internal/checkout"
	"github.com/sr22fit/checkout-web/pkg/logging"
)

// LiveMessage is what the page sends over the live channel.
type LiveMessage struct {
	Type  string `json:"type"` // "phone", "name", "view", "ping"
	Phone string `json:"phone,omitempty"`
	Name  string `json:"name,omitempty"`
}

// LiveFrame is what the server pushes to the page.
type LiveFrame struct {
	Type      string                 `json:"type"` // "view", "searching", "pong", "error"
	Outcome   checkout.LookupOutcome `json:"outcome,omitempty"`
	Searching bool                   `json:"searching,omitempty"`
	View      *checkout.View         `json:"view,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

// LiveHandler streams phone edits from the page and pushes the form state
// back. Each edit runs its lookup concurrently; only the newest edit can
// change the form, so a slow older lookup never overwrites a newer one.
type LiveHandler struct {
	registry *Registry
	logger   *logging.Logger
}

// NewLiveHandler creates the live channel handler.
func NewLiveHandler(registry *Registry, logger *logging.Logger) *LiveHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &LiveHandler{registry: registry, logger: logger}
}

// ServeHTTP upgrades GET /checkout/live to a websocket.
func (h *LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

// liveConn serializes writes to one socket. The view is read inside the
// write lock so the last frame sent always carries the current state.
type liveConn struct {
	conn *websocket.Conn
	sess *checkout.Session
	mu   sync.Mutex
}

func (c *liveConn) send(frame LiveFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (frame.Type == "view" || frame.Type == "searching") && c.sess != nil {
		view := c.sess.View()
		frame.View = &view
	}
	return websocket.JSON.Send(c.conn, frame)
}

func (h *LiveHandler) serveWS(conn *websocket.Conn, r *http.Request) {
	id, sess, ok := sessionFromRequest(r, h.registry)
	lc := &liveConn{conn: conn, sess: sess}
	if !ok {
		_ = lc.send(LiveFrame{Type: "error", Error: "session not found"})
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
	}()

	if err := lc.send(LiveFrame{Type: "view"}); err != nil {
		return
	}
	h.logger.Debug("live channel opened")

	for {
		var msg LiveMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("live channel closed", "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = lc.send(LiveFrame{Type: "pong"})
		case "view":
			_ = lc.send(LiveFrame{Type: "view"})
		case "name":
			if err := sess.SetName(msg.Name); err != nil {
				_ = lc.send(LiveFrame{Type: "error", Error: err.Error()})
			}
			h.registry.Persist(ctx, id, sess)
			_ = lc.send(LiveFrame{Type: "view"})
		case "phone":
			// Edits are applied here, in arrival order; only the lookup
			// itself runs concurrently.
			change := sess.BeginPhoneChange(ctx, msg.Phone)
			if !change.Pending() {
				h.registry.Persist(ctx, id, sess)
				_ = lc.send(LiveFrame{Type: "view", Outcome: sess.Settle(change)})
				continue
			}
			_ = lc.send(LiveFrame{Type: "searching", Searching: true})
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcome := sess.Settle(change)
				if outcome == checkout.LookupStale {
					return
				}
				h.registry.Persist(context.WithoutCancel(ctx), id, sess)
				_ = lc.send(LiveFrame{Type: "view", Outcome: outcome})
			}()
		default:
			_ = lc.send(LiveFrame{Type: "error", Error: "unknown message type"})
		}
	}
}
