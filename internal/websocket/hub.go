package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"rejectcli/internal/infrastructure"
	"rejectcli/pkg/contracts/events"
)

const (
	defaultPongWait = 60 * time.Second
	broadcastQueue  = 64
)

type outbound struct {
	messageType string
	payload     []byte
}

// Hub fans analysis notifications out to every connected client. Broadcast
// never blocks the caller: when the queue is full the message is dropped.
type Hub struct {
	clients map[*Client]struct{}

	broadcast  chan outbound
	register   chan *Client
	unregister chan *Client
	quit       chan struct{}
	done       chan struct{}

	mu      sync.RWMutex
	running bool

	pongWait   time.Duration
	pingPeriod time.Duration

	metrics *Metrics
	logger  *slog.Logger
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithKeepalive sets the ping period and pong deadline. pingPeriod must be
// shorter than pongWait.
func WithKeepalive(pingPeriod, pongWait time.Duration) HubOption {
	return func(h *Hub) {
		if pongWait > 0 {
			h.pongWait = pongWait
		}
		if pingPeriod > 0 && pingPeriod < h.pongWait {
			h.pingPeriod = pingPeriod
		} else {
			h.pingPeriod = h.pongWait * 9 / 10
		}
	}
}

// WithMetrics records connection and delivery metrics.
func WithMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// NewHub creates a new Hub. Call Start before registering clients.
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	h := &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan outbound, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		pongWait:   defaultPongWait,
		pingPeriod: defaultPongWait * 9 / 10,
		logger:     logger.With(slog.String("component", "websocket.hub")),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Start runs the hub loop in its own goroutine.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running {
		return
	}
	h.running = true
	go h.run()
}

// Stop disconnects every client and waits for the hub loop to exit.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.quit)
	<-h.done
}

func (h *Hub) run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			h.logger.Info("Hub shut down")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()

			ctx := client.context()
			h.metrics.recordConnect(ctx)
			h.logger.InfoContext(ctx, "Client registered",
				slog.Int("total_clients", count),
				slog.String("client_id", client.id),
				slog.String("remote_addr", client.remoteAddr))

			h.greet(client)

		case client := <-h.unregister:
			h.drop(client, "closed")

		case msg := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- msg.payload:
					h.metrics.recordMessage(context.Background(), msg.messageType)
				default:
					h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
						slog.String("client_id", client.id))
					h.metrics.recordDropped(context.Background(), "client")
					h.drop(client, "slow")
				}
			}

			h.logger.Debug("Broadcast delivered",
				slog.String("type", msg.messageType),
				slog.Int("client_count", len(clients)),
				slog.Int("payload_size", len(msg.payload)))
		}
	}
}

// drop removes client and closes its send channel. Only the hub loop calls it.
func (h *Hub) drop(client *Client, reason string) {
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
	connected := time.Since(client.connectedAt)
	h.metrics.recordDisconnect(ctx, connected, reason)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", connected))
}

func (h *Hub) greet(client *Client) {
	payload, err := json.Marshal(events.Message{
		Type:      events.MessageTypeConnect,
		Timestamp: time.Now().UTC(),
		TraceID:   client.traceID,
		Data: map[string]string{
			"status":    "connected",
			"client_id": client.id,
		},
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

// Broadcast queues data for every client. An events.Message is sent as is;
// anything else is wrapped in one of type messageType.
func (h *Hub) Broadcast(messageType string, data interface{}) {
	msg, ok := data.(events.Message)
	if !ok {
		msg = events.Message{
			Type:      events.MessageType(messageType),
			Timestamp: time.Now().UTC(),
			Data:      data,
		}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error marshaling broadcast",
			slog.String("type", messageType),
			slog.String("error", err.Error()))
		return
	}

	select {
	case h.broadcast <- outbound{messageType: messageType, payload: payload}:
	default:
		h.metrics.recordDropped(context.Background(), "hub")
		h.logger.Warn("Broadcast queue full, dropping message", slog.String("type", messageType))
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.quit:
		client.conn.Close()
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
