package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skypro1111/live-caption-service/internal/metrics"
	"github.com/skypro1111/live-caption-service/internal/transcript"
)

const (
	// wsWriteTimeout bounds a single websocket write; a client that cannot
	// keep up is disconnected rather than allowed to stall the feed.
	wsWriteTimeout = 5 * time.Second

	wsReadLimit = 512
)

// historyMessage is the first frame sent to a newly connected client.
type historyMessage struct {
	Type     string                         `json:"type"`
	Segments []transcript.TranscriptSegment `json:"segments"`
}

// CaptionHub serves the live caption websocket feed. Every client receives
// the transcript history on connect, then a stream of merge events.
type CaptionHub struct {
	merger   *transcript.Merger
	metrics  *metrics.Metrics
	logger   *slog.Logger
	upgrader websocket.Upgrader

	clients map[*websocket.Conn]func()
	closed  bool
	mu      sync.Mutex
}

// NewCaptionHub creates a caption hub bound to the given merger.
func NewCaptionHub(merger *transcript.Merger, m *metrics.Metrics, logger *slog.Logger) *CaptionHub {
	return &CaptionHub{
		merger:  merger,
		metrics: m,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]func()),
	}
}

// HandleWebsocket upgrades the request and starts serving the caption feed.
func (hub *CaptionHub) HandleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Warn("Websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	events, cancel := hub.merger.Subscribe()

	hub.mu.Lock()
	if hub.closed {
		hub.mu.Unlock()
		cancel()
		conn.Close()
		return
	}
	hub.clients[conn] = cancel
	hub.mu.Unlock()

	if hub.metrics != nil {
		hub.metrics.WebsocketClients.Inc()
	}

	hub.logger.Info("Caption client connected",
		slog.String("remote_addr", r.RemoteAddr),
	)

	go hub.readPump(conn, cancel)
	go hub.writePump(conn, events, r.RemoteAddr)
}

// readPump consumes client frames so close handshakes are processed. Any
// read error ends the subscription, which in turn ends the write pump.
func (hub *CaptionHub) readPump(conn *websocket.Conn, cancel func()) {
	defer cancel()

	conn.SetReadLimit(wsReadLimit)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump replays the history, then forwards merge events until the
// subscription channel closes or a write fails.
func (hub *CaptionHub) writePump(conn *websocket.Conn, events <-chan transcript.Event, remoteAddr string) {
	defer hub.dropClient(conn, remoteAddr)

	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(historyMessage{
		Type:     "history",
		Segments: hub.merger.History(),
	}); err != nil {
		return
	}

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}

// dropClient unregisters and closes a client connection.
func (hub *CaptionHub) dropClient(conn *websocket.Conn, remoteAddr string) {
	hub.mu.Lock()
	cancel, ok := hub.clients[conn]
	if ok {
		delete(hub.clients, conn)
	}
	hub.mu.Unlock()

	if !ok {
		return
	}

	cancel()
	conn.Close()

	if hub.metrics != nil {
		hub.metrics.WebsocketClients.Dec()
	}

	hub.logger.Info("Caption client disconnected",
		slog.String("remote_addr", remoteAddr),
	)
}

// ClientCount returns the number of connected caption clients.
func (hub *CaptionHub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// Close disconnects all clients. New connections are rejected afterwards.
func (hub *CaptionHub) Close() {
	hub.mu.Lock()
	hub.closed = true
	conns := make([]*websocket.Conn, 0, len(hub.clients))
	for conn := range hub.clients {
		conns = append(conns, conn)
	}
	hub.mu.Unlock()

	for _, conn := range conns {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		conn.Close()
	}
}
