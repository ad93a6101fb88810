package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"ferroci/internal/infrastructure"
	"ferroci/pkg/contracts/events"
)

// DefaultHistorySize is used when the hub is created without a history size
const DefaultHistorySize = 200

// HubOptions configures a Hub
type HubOptions struct {
	// HistorySize is the number of status log messages replayed to a client
	// that connects after they were sent
	HistorySize int

	// Metrics is optional
	Metrics *OTelMetrics
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan []byte

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe operations
	mu sync.RWMutex

	logger  *slog.Logger
	metrics *OTelMetrics

	// Status log ring buffer
	history     [][]byte
	historySize int

	totalConnections int64
	messagesSent     int64
	droppedClients   int64

	// Control
	quit     chan struct{}
	stopOnce sync.Once
	running  bool
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, opts HubOptions) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}

	return &Hub{
		broadcast:   make(chan []byte, sendBufferSize),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      infrastructure.WithComponent(logger, "websocket.hub"),
		metrics:     opts.Metrics,
		historySize: opts.HistorySize,
		quit:        make(chan struct{}),
	}
}

// Start starts the hub's goroutine
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

// Stop ends the hub loop and closes every client
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.Lock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
		h.running = false
		h.mu.Unlock()
	})
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

func (h *Hub) registerClient(c *Client) {
	select {
	case h.register <- c:
	case <-h.quit:
		close(c.send)
	}
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.quit:
	}
}

func (h *Hub) addClient(client *Client) {
	connMsg, err := encode(events.MessageTypeConnect, map[string]interface{}{
		"status":    "connected",
		"client_id": client.id,
	}, client.traceID)

	// Sends happen under the lock so Stop cannot close the channel midway.
	// Stop closes quit before it takes the lock, so a client that arrives
	// after the sweep is closed here instead of being kept forever.
	h.mu.Lock()
	select {
	case <-h.quit:
		h.mu.Unlock()
		close(client.send)
		return
	default:
	}
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	replay := h.history
	if err == nil {
		replay = append([][]byte{connMsg}, replay...)
	}
	replayed := 0
	for _, msg := range replay {
		select {
		case client.send <- msg:
			replayed++
		default:
		}
	}
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.Int("replayed", replayed),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))
	h.metrics.recordConnect(ctx)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.Duration("connection_duration", time.Since(client.connectedAt)))
	h.metrics.recordDisconnect(ctx)
}

func (h *Hub) fanOut(message []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
			atomic.AddInt64(&h.messagesSent, 1)
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		// Client's send channel is full, close it
		h.mu.Lock()
		if _, ok := h.clients[client]; ok {
			close(client.send)
			delete(h.clients, client)
			h.droppedClients++
		}
		h.mu.Unlock()

		ctx := client.context()
		h.logger.WarnContext(ctx, "Client send buffer full, disconnecting",
			slog.String("client_id", client.id))
		h.metrics.recordDropped(ctx)
		h.metrics.recordDisconnect(ctx)
	}
}

func encode(msgType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	return json.Marshal(events.WebSocketMessage{
		BaseMessage: events.BaseMessage{
			ID:        uuid.New().String(),
			Type:      msgType,
			Timestamp: time.Now().UTC(),
			TraceID:   traceID,
		},
		Data: data,
	})
}

// Broadcast sends a typed message to every connected client. Status log
// messages are also kept for replay.
func (h *Hub) Broadcast(msgType events.MessageType, data interface{}, traceID string) {
	ctx := context.Background()
	if traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, traceID)
	}

	jsonData, err := encode(msgType, data, traceID)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msgType)))
		return
	}

	if msgType == events.MessageTypeStatusLog {
		h.mu.Lock()
		h.history = append(h.history, jsonData)
		if over := len(h.history) - h.historySize; over > 0 {
			h.history = append([][]byte(nil), h.history[over:]...)
		}
		h.mu.Unlock()
	}

	h.metrics.recordBroadcast(ctx, string(msgType))

	select {
	case h.broadcast <- jsonData:
	case <-h.quit:
	}
}

// Report broadcasts a status log entry. It lets the hub receive the
// processor's status lines directly.
func (h *Hub) Report(ctx context.Context, entry events.StatusEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if entry.TraceID == "" {
		entry.TraceID = infrastructure.GetTraceID(ctx)
	}
	h.Broadcast(events.MessageTypeStatusLog, entry, entry.TraceID)
}

// BroadcastResults tells clients to reload the results of a directory
func (h *Hub) BroadcastResults(ctx context.Context, update events.ResultsUpdated) {
	h.Broadcast(events.MessageTypeResultsUpdated, update, infrastructure.GetTraceID(ctx))
}

// History returns the replayable status log, oldest first
func (h *Hub) History() []json.RawMessage {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]json.RawMessage, len(h.history))
	for i, msg := range h.history {
		out[i] = json.RawMessage(msg)
	}
	return out
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetHubMetrics returns current hub metrics
func (h *Hub) GetHubMetrics() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_connections": len(h.clients),
		"total_connections":  h.totalConnections,
		"messages_sent":      atomic.LoadInt64(&h.messagesSent),
		"dropped_clients":    h.droppedClients,
		"history_size":       len(h.history),
		"running":            h.running,
	}
}
