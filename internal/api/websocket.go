package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/events"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// Ping interval, must be shorter than pongWait.
	pingPeriod = 54 * time.Second

	// Maximum inbound message size; clients only send control frames.
	maxMessageSize = 512

	// Per-client send buffer. A client that falls this far behind
	// starts losing events rather than blocking publication.
	clientBuffer = 64
)

// StreamMessage is the envelope written to websocket clients.
type StreamMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      any       `json:"data"`
}

// EventStream fans published events out to websocket clients. Events are
// delivered best effort: slow clients drop messages, and a dead client is
// removed on its next failed write or missed pong.
type EventStream struct {
	upgrader    websocket.Upgrader
	logger      *logging.Logger
	unsubscribe func()

	mu      sync.RWMutex
	clients map[*websocket.Conn]chan []byte
	closed  bool
}

// NewEventStream subscribes to all events on the bus and returns a stream
// ready to accept websocket connections.
func NewEventStream(bus events.Publisher, logger *logging.Logger) *EventStream {
	stream := &EventStream{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(*http.Request) bool {
				// The server binds to loopback by default; origin
				// enforcement is left to a fronting proxy.
				return true
			},
		},
		logger:  logger.WithComponent("event_stream"),
		clients: make(map[*websocket.Conn]chan []byte),
	}
	stream.unsubscribe = bus.SubscribeAll(stream.broadcast)
	return stream
}

// Serve upgrades the request and streams events until the client
// disconnects or the stream shuts down.
func (es *EventStream) Serve(w http.ResponseWriter, r *http.Request) {
	conn, err := es.upgrader.Upgrade(w, r, nil)
	if err != nil {
		es.logger.Error("Websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
		return
	}

	send := make(chan []byte, clientBuffer)

	es.mu.Lock()
	if es.closed {
		es.mu.Unlock()
		_ = conn.Close()
		return
	}
	es.clients[conn] = send
	count := len(es.clients)
	es.mu.Unlock()

	es.logger.Info("Websocket client connected", "remote_addr", r.RemoteAddr, "clients", count)

	go es.writePump(conn, send)
	es.readPump(conn)
}

// broadcast marshals one event and queues it on every client.
func (es *EventStream) broadcast(event events.Event) {
	message := StreamMessage{
		Type:      string(event.Kind()),
		Timestamp: event.OccurredAt(),
		Source:    event.Origin(),
		Data:      event,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		es.logger.Error("Failed to marshal event", "error", err, "event_type", event.Kind())
		metrics.Counter(metrics.MetricEventErrors, metrics.Labels{
			metrics.LabelEventType: string(event.Kind()),
		})
		return
	}

	es.mu.RLock()
	defer es.mu.RUnlock()
	for _, send := range es.clients {
		select {
		case send <- payload:
		default:
			// Client buffer full; drop rather than stall the bus.
		}
	}
}

func (es *EventStream) writePump(conn *websocket.Conn, send chan []byte) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		es.remove(conn)
	}()

	for {
		select {
		case payload, ok := <-send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; its job is pong handling and
// disconnect detection.
func (es *EventStream) readPump(conn *websocket.Conn) {
	defer es.remove(conn)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (es *EventStream) remove(conn *websocket.Conn) {
	es.mu.Lock()
	if _, ok := es.clients[conn]; ok {
		delete(es.clients, conn)
	}
	es.mu.Unlock()
	_ = conn.Close()
}

// ClientCount returns the number of connected clients.
func (es *EventStream) ClientCount() int {
	es.mu.RLock()
	defer es.mu.RUnlock()
	return len(es.clients)
}

// Shutdown unsubscribes from the bus and disconnects every client.
func (es *EventStream) Shutdown() {
	es.unsubscribe()

	es.mu.Lock()
	defer es.mu.Unlock()
	if es.closed {
		return
	}
	es.closed = true
	for conn := range es.clients {
		_ = conn.Close()
		delete(es.clients, conn)
	}
}
