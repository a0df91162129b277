package command

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hub tracks open streaming connections per agent and fans out a
// lightweight "you have pending commands" notification, per spec §4.6's
// optional streaming path: "the server pushes new pending commands
// immediately on this channel." The channel carries only a wake-up
// signal; the agent still fetches the actual commands via Poll, so a
// missed or dropped notification never loses a command (polling is the
// source of truth, streaming only cuts latency).
type Hub struct {
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu    sync.Mutex
	conns map[string][]*connection
}

type connection struct {
	agentID string
	ws      *websocket.Conn
	send    chan struct{}
}

// NewHub creates a Hub. originChecker, if non-nil, is passed through to
// the underlying websocket.Upgrader.CheckOrigin.
func NewHub(logger *slog.Logger, originChecker func(*http.Request) bool) *Hub {
	h := &Hub{
		logger: logger,
		conns:  make(map[string][]*connection),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker,
	}
	return h
}

// Serve upgrades the request to a WebSocket and blocks until the agent
// disconnects, relaying wake-up notifications as they arrive. onWake is
// called once up front and again on every notification so the caller
// (the HTTP handler) can push the actual claimed commands as JSON frames.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, agentID string, onWake func(*websocket.Conn) error) error {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	conn := &connection{agentID: agentID, ws: ws, send: make(chan struct{}, 1)}
	h.register(conn)
	defer h.unregister(conn)

	// Reconciliation fetch immediately on connect, since any command
	// enqueued between the agent's last poll and this connection would
	// otherwise wait for the next Notify.
	if err := onWake(ws); err != nil {
		return err
	}

	// Drain client-originated control/close frames in the background so
	// the connection's read deadline doesn't trip; results are submitted
	// over the regular HTTP result endpoint, not this channel, matching
	// spec §4.6's note that streaming changes latency, not semantics.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return nil
		case <-conn.send:
			if err := onWake(ws); err != nil {
				return err
			}
		case <-ping.C:
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return err
			}
		}
	}
}

func (h *Hub) register(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.agentID] = append(h.conns[c.agentID], c)
}

func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.conns[c.agentID]
	for i, existing := range conns {
		if existing == c {
			h.conns[c.agentID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[c.agentID]) == 0 {
		delete(h.conns, c.agentID)
	}
}

// Notify wakes every open stream connection for agentID, if any. It is a
// best-effort nudge: on channel loss, outstanding delivered commands are
// reclaimed by the agent's next poll or reconnect, per spec §4.6.
func (h *Hub) Notify(agentID string) {
	h.mu.Lock()
	conns := h.conns[agentID]
	h.mu.Unlock()

	for _, c := range conns {
		select {
		case c.send <- struct{}{}:
		default:
			// Already has a pending wake-up queued; coalescing is fine
			// since onWake always fetches the full current state.
		}
	}
}
