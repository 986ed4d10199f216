package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"udisecli/internal/config"
	"udisecli/internal/infrastructure"
	"udisecli/pkg/contracts/events"
)

// Message types pushed over the event stream, re-exported from the wire
// contract so hub callers don't import two packages.
const (
	TypeConnection      = events.TypeConnection
	TypeDatasetReloaded = events.TypeDatasetReloaded
	TypeError           = events.TypeError
)

// Hub maintains the set of active clients and broadcasts dataset events to
// them. It implements services.WebSocketHub.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu     sync.RWMutex
	logger *slog.Logger

	// Business metrics; nil disables the client gauge
	metrics *infrastructure.BusinessMetrics

	// Timing settings handed to clients
	pingPeriod time.Duration
	pongWait   time.Duration

	quit    chan struct{}
	running bool
}

// NewHub creates a new Hub. cfg may be nil, in which case the built-in
// keepalive defaults apply.
func NewHub(cfg *config.WebSocketConfig, metrics *infrastructure.BusinessMetrics, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	pingPeriod := config.WebSocketPingPeriod
	pongWait := config.WebSocketPongWait
	if cfg != nil {
		if cfg.PingPeriod > 0 {
			pingPeriod = cfg.PingPeriod
		}
		if cfg.PongWait > 0 {
			pongWait = cfg.PongWait
		}
	}

	return &Hub{
		broadcast:  make(chan []byte, 16),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		metrics:    metrics,
		pingPeriod: pingPeriod,
		pongWait:   pongWait,
		quit:       make(chan struct{}),
	}
}

// Start starts the hub's main loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.Run()
}

// Run processes register, unregister and broadcast events until Stop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()

			ctx := h.clientContext(client)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			infrastructure.RecordWebSocketClientChange(ctx, h.metrics, 1)

			h.sendWelcome(ctx, client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; !ok {
				h.mu.Unlock()
				continue
			}
			delete(h.clients, client)
			close(client.send)
			count := len(h.clients)
			h.mu.Unlock()

			ctx := h.clientContext(client)
			h.logger.InfoContext(ctx, "Client unregistered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

			infrastructure.RecordWebSocketClientChange(ctx, h.metrics, -1)

		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

// deliver fans a message out to every registered client. Clients whose send
// buffer is full are disconnected rather than allowed to stall the hub.
// Sends happen under the read lock so Stop cannot close a channel mid-send.
func (h *Hub) deliver(message []byte) {
	h.mu.RLock()
	var slow []*Client
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	delivered := len(h.clients) - len(slow)
	h.mu.RUnlock()

	for _, client := range slow {
		h.mu.Lock()
		_, ok := h.clients[client]
		if ok {
			delete(h.clients, client)
			close(client.send)
		}
		h.mu.Unlock()
		if !ok {
			continue
		}

		ctx := h.clientContext(client)
		h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		infrastructure.RecordWebSocketClientChange(ctx, h.metrics, -1)
	}

	if len(slow) > 0 {
		h.logger.Warn("Some clients missed a broadcast",
			slog.Int("delivered", delivered),
			slog.Int("dropped", len(slow)))
	}
}

// sendWelcome tells a fresh client it is connected and which id it got
func (h *Hub) sendWelcome(ctx context.Context, client *Client) {
	msg := events.NewEnvelope(TypeConnection, events.ConnectionAck{
		Status:   "connected",
		Message:  "Connected to the dashboard event stream",
		ClientID: client.id,
	})
	msg.TraceID = client.traceID

	jsonData, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling connection message",
			slog.String("error", err.Error()))
		return
	}

	select {
	case client.send <- jsonData:
	default:
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

// Broadcast sends a typed event to all connected clients. This is the
// surface the dashboard service publishes snapshot changes through.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	jsonData, err := json.Marshal(events.NewEnvelope(messageType, data))
	if err != nil {
		h.logger.Error("Error marshaling broadcast message",
			slog.String("error", err.Error()),
			slog.String("message_type", messageType))
		return
	}

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
	}
}

// BroadcastError pushes a structured error event, used when a reload fails
// so dashboards that saw no snapshot change know why.
func (h *Hub) BroadcastError(code, message string) {
	h.Broadcast(TypeError, events.ErrorEvent{Code: code, Message: message})
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Stop gracefully stops the hub and closes every client send channel
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

// clientContext builds a context carrying the client's trace id, so hub
// logs correlate with the upgrading HTTP request.
func (h *Hub) clientContext(client *Client) context.Context {
	ctx := context.Background()
	if client.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, client.traceID)
	}
	return ctx
}
