// Package feed broadcasts monitor events to local websocket subscribers.
package feed

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"stereoguard/internal/domain"
	"stereoguard/internal/metrics"
)

const (
	clientQueueSize = 32
	writeTimeout    = 2 * time.Second
)

// Message is one JSON frame on the feed.
type Message struct {
	Type     string            `json:"type"`
	Time     time.Time         `json:"time"`
	State    *domain.StateView `json:"state,omitempty"`
	Previous string            `json:"previous,omitempty"`
	Current  string            `json:"current,omitempty"`
	Message  string            `json:"message,omitempty"`
	Device   string            `json:"device,omitempty"`
	Error    string            `json:"error,omitempty"`
}

const (
	TypeState     = "state"
	TypeMode      = "mode_changed"
	TypeError     = "error"
	TypeStopped   = "stopped"
	TypeReconnect = "reconnect"
)

// Hub implements ports.EventSink by fanning JSON frames out to every
// connected websocket client. A client that falls behind is dropped.
type Hub struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Recorder
	log      zerolog.Logger
	now      func() time.Time

	mu        sync.Mutex
	clients   map[*client]struct{}
	lastState []byte
}

func NewHub(rec *metrics.Recorder, log zerolog.Logger) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		metrics: rec,
		log:     log,
		now:     time.Now,
		clients: make(map[*client]struct{}),
	}
}

func (h *Hub) StateUpdated(view domain.StateView) {
	payload, ok := h.encode(Message{Type: TypeState, State: &view})
	if !ok {
		return
	}
	h.mu.Lock()
	h.lastState = payload
	h.mu.Unlock()
	h.broadcast(payload)
}

func (h *Hub) ModeChanged(previous domain.AudioMode, current domain.AudioMode) {
	h.send(Message{Type: TypeMode, Previous: previous.String(), Current: current.String()})
}

func (h *Hub) MonitorError(message string) {
	h.send(Message{Type: TypeError, Message: message})
}

func (h *Hub) MonitorStopped() {
	h.send(Message{Type: TypeStopped})
}

func (h *Hub) ReconnectFinished(device string, err error) {
	msg := Message{Type: TypeReconnect, Device: device}
	if err != nil {
		msg.Error = err.Error()
	}
	h.send(msg)
}

// ServeHTTP upgrades the request and replays the latest state to the new client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientQueueSize),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	h.clients[c] = struct{}{}
	if h.lastState != nil {
		c.send <- h.lastState
	}
	h.mu.Unlock()
	h.metrics.FeedClientsChanged(1)
	h.log.Debug().Str("remote", r.RemoteAddr).Msg("feed client connected")

	go c.writeLoop()
	go c.readLoop()
}

// ClientCount reports connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// Serve listens on addr and serves the feed at /events until ctx ends.
func (h *Hub) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/events", h)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		h.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.log.Info().Str("addr", addr).Msg("event feed listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (h *Hub) send(msg Message) {
	if payload, ok := h.encode(msg); ok {
		h.broadcast(payload)
	}
}

func (h *Hub) encode(msg Message) ([]byte, bool) {
	msg.Time = h.now()
	payload, err := sonic.Marshal(msg)
	if err != nil {
		h.log.Warn().Err(err).Str("type", msg.Type).Msg("could not encode feed message")
		return nil, false
	}
	return payload, true
}

func (h *Hub) broadcast(payload []byte) {
	var slow []*client
	h.mu.Lock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()

	for _, c := range slow {
		h.log.Warn().Msg("dropping slow feed client")
		go c.close()
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		h.metrics.FeedClientsChanged(-1)
	}
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func (c *client) writeLoop() {
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.logErr(err)
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop only exists to notice the peer going away.
func (c *client) readLoop() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			c.logErr(err)
			c.close()
			return
		}
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.hub.remove(c)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeTimeout))
		_ = c.conn.Close()
	})
}

func (c *client) logErr(err error) {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) || errors.Is(err, net.ErrClosed) {
		return
	}
	c.hub.log.Debug().Err(err).Msg("feed client error")
}
