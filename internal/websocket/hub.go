package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gokulwholesaleinc-web/zamutints-sub000/internal/license"
	"github.com/gokulwholesaleinc-web/zamutints-sub000/pkg/contracts/events"
)

const broadcastQueueSize = 16

// Disconnect reasons recorded in metrics.
const (
	reasonClosed   = "closed"
	reasonSlow     = "slow_consumer"
	reasonShutdown = "shutdown"
)

// StatusFunc reports the current license status; it is sent to every client
// on connect.
type StatusFunc func() license.Status

// Hub pushes license status changes to connected admin dashboards.
type Hub struct {
	// Registered clients
	clients map[*Client]struct{}

	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	// mu guards clients and running
	mu      sync.RWMutex
	running bool

	status  StatusFunc
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics replaces the metrics recorded on the global meter.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a hub. status may be nil, in which case the connect message
// carries no license state.
func NewHub(status StatusFunc, logger *slog.Logger, opts ...HubOption) *Hub {
	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		status:     status,
		logger:     logger.With(slog.String("component", "websocket.hub")),
		now:        time.Now,
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.metrics == nil {
		h.metrics = defaultMetrics()
	}
	return h
}

// Start runs the hub loop in its own goroutine. Calling Start twice is a no-op.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	select {
	case <-h.quit:
		return
	default:
	}
	h.running = true
	go h.run()
}

// Stop ends the hub loop and closes every client's send queue.
func (h *Hub) Stop() {
	h.mu.RLock()
	running := h.running
	h.mu.RUnlock()

	h.once.Do(func() { close(h.quit) })
	if running {
		<-h.done
	}
}

func (h *Hub) run() {
	defer close(h.done)
	ctx := context.Background()

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				h.drop(ctx, client, reasonShutdown)
			}
			h.running = false
			h.mu.Unlock()
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			h.metrics.recordConnection(ctx)
			h.logger.InfoContext(client.ctx(), "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(client)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(ctx, client, reasonClosed)
			}
			count := len(h.clients)
			h.mu.Unlock()

			h.logger.InfoContext(client.ctx(), "Client unregistered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.Duration("connection_duration", time.Since(client.connectedAt)))

		case message := <-h.broadcast:
			h.mu.Lock()
			sent := 0
			for client := range h.clients {
				select {
				case client.send <- message:
					sent++
				default:
					h.drop(ctx, client, reasonSlow)
					h.logger.WarnContext(client.ctx(), "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
				}
			}
			h.mu.Unlock()

			h.metrics.recordSent(ctx, string(events.MessageTypeLicenseStatus), sent)
			h.logger.Debug("Broadcast license status",
				slog.Int("client_count", sent),
				slog.Int("message_size", len(message)))
		}
	}
}

// drop removes client and closes its queue. Caller holds h.mu.
func (h *Hub) drop(ctx context.Context, client *Client, reason string) {
	delete(h.clients, client)
	close(client.send)
	h.metrics.recordDisconnection(ctx, time.Since(client.connectedAt), reason)
}

// greet queues the connect message carrying the current license status.
func (h *Hub) greet(client *Client) {
	data := events.LicenseStatusData{ClientID: client.id, At: h.now()}
	if h.status != nil {
		st := h.status()
		data.Valid = st.Valid
		data.State = st.State.String()
		data.Error = st.Error
		data.Mode = st.Mode
	}

	payload, err := h.encode(events.MessageTypeConnect, data, client.traceID)
	if err != nil {
		return
	}

	select {
	case client.send <- payload:
		h.metrics.recordSent(context.Background(), string(events.MessageTypeConnect), 1)
	default:
		h.logger.WarnContext(client.ctx(), "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

// OnLicenseEvent broadcasts ev to every client. It never blocks, so it can be
// registered directly as a license.StatusListener; when the broadcast queue
// is full the event is dropped.
func (h *Hub) OnLicenseEvent(ev license.StatusEvent) {
	payload, err := h.encode(events.MessageTypeLicenseStatus, events.LicenseStatusData{
		Valid:  ev.Status.Valid,
		State:  ev.Status.State.String(),
		Error:  ev.Status.Error,
		Mode:   ev.Status.Mode,
		Reason: ev.Reason,
		At:     ev.At,
	}, "")
	if err != nil {
		return
	}

	select {
	case <-h.quit:
	case h.broadcast <- payload:
	default:
		h.metrics.recordDropped(context.Background(), "broadcast_queue_full")
		h.logger.Warn("License status broadcast dropped, queue full",
			slog.String("reason", ev.Reason),
			slog.String("state", ev.Status.State.String()))
	}
}

func (h *Hub) encode(msgType events.MessageType, data interface{}, traceID string) ([]byte, error) {
	payload, err := json.Marshal(events.WebSocketMessage{
		Type:      msgType,
		Data:      data,
		Timestamp: h.now().UTC(),
		TraceID:   traceID,
	})
	if err != nil {
		h.logger.Error("Error marshaling message",
			slog.String("message_type", string(msgType)),
			slog.String("error", err.Error()))
	}
	return payload, err
}

// Register adds a client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client; unknown clients are ignored.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
