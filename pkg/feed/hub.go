// Package feed broadcasts agent status and transcript appends to read-only
// websocket observers.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/sipeed/polychat/pkg/attachments"
	"github.com/sipeed/polychat/pkg/logger"
	"github.com/sipeed/polychat/pkg/status"
	"github.com/sipeed/polychat/pkg/transcript"
)

const (
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = pongTimeout * 9 / 10
)

type client struct {
	conn *websocket.Conn
	send chan Event
	once sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to every connected observer. A client that falls
// sendBuffer events behind is disconnected.
type Hub struct {
	transcript *transcript.Store
	status     *status.Register
	previews   *attachments.PreviewStore
	upgrader   websocket.Upgrader
	now        func() time.Time

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	cancels []func()
	server  *http.Server
}

// NewHub observes ts and reg. previews may be nil, in which case
// /previews/{id} always answers 404.
func NewHub(ts *transcript.Store, reg *status.Register, previews *attachments.PreviewStore) *Hub {
	h := &Hub{
		transcript: ts,
		status:     reg,
		previews:   previews,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
	h.cancels = append(h.cancels,
		reg.OnChange(func(prev, next status.Status) {
			h.broadcast(Event{Type: EventStatus, Status: next, Previous: prev})
		}),
		ts.OnAppend(func(m transcript.Message) {
			wire := forWire(m)
			h.broadcast(Event{Type: EventMessage, Message: &wire})
		}),
	)
	return h
}

func (h *Hub) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/ws", h.handleWS)
	r.Get("/healthz", h.handleHealth)
	r.Get("/messages", h.handleMessages)
	r.Get("/previews/{id}", h.handlePreview)
	return r
}

// handlePreview serves the bytes behind a live preview handle. Released
// handles are gone for good.
func (h *Hub) handlePreview(w http.ResponseWriter, r *http.Request) {
	if h.previews == nil {
		http.NotFound(w, r)
		return
	}
	rec, data, err := h.previews.Open(attachments.PreviewScheme + chi.URLParam(r, "id"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if rec.MIMEType != "" {
		w.Header().Set("Content-Type", rec.MIMEType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Hub) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"agent":   h.status.Get(),
		"clients": h.Clients(),
	})
}

// handleMessages serves the transcript for observers that do not want a
// websocket.
func (h *Hub) handleMessages(w http.ResponseWriter, r *http.Request) {
	msgs := h.transcript.Messages()
	for i := range msgs {
		msgs[i] = forWire(msgs[i])
	}
	writeJSON(w, http.StatusOK, msgs)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.DebugCF("feed", "Response write failed", map[string]interface{}{"error": err.Error()})
	}
}

// Clients reports how many observers are connected.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ListenAndServe serves the feed on addr until ctx ends or Close is called.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: h.Handler(), ReadHeaderTimeout: 10 * time.Second}
	h.mu.Lock()
	h.server = srv
	h.mu.Unlock()

	logger.InfoCF("feed", "Feed listening", map[string]interface{}{"addr": ln.Addr().String()})

	go func() {
		<-ctx.Done()
		h.Close()
	}()

	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Close detaches from the stores and disconnects every observer.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
	srv := h.server
	h.mu.Unlock()

	for _, cancel := range h.cancels {
		cancel()
	}
	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("feed", "Websocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}

	c := &client{conn: conn, send: make(chan Event, sendBuffer)}

	// The snapshot is taken under the hub lock so no broadcast lands between
	// it and registration. An append racing the snapshot may arrive twice;
	// observers dedupe by message id.
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close()
		return
	}
	msgs := h.transcript.Messages()
	for i := range msgs {
		msgs[i] = forWire(msgs[i])
	}
	c.send <- h.stamp(Event{Type: EventSnapshot, Status: h.status.Get(), Messages: msgs})
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	logger.DebugCF("feed", "Observer connected", map[string]interface{}{"remote": r.RemoteAddr, "clients": n})

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) broadcast(ev Event) {
	ev = h.stamp(ev)
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
		default:
			logger.WarnCF("feed", "Dropping slow observer",
				map[string]interface{}{"remote": c.conn.RemoteAddr().String()})
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) stamp(ev Event) Event {
	ev.Time = h.now().UnixMilli()
	return ev
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
	h.mu.Unlock()
}

// readPump discards inbound frames; the feed is read-only. It returns when
// the peer goes away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				logger.DebugCF("feed", "Observer write failed", map[string]interface{}{"error": err.Error()})
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
