package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"
	"aviatorServer/publisher"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Snapshotter provides the state a client receives right after subscribing.
type Snapshotter interface {
	State() game.StatePayload
	History() game.HistoryPayload
}

// CommandHandler executes player commands received over the socket.
type CommandHandler interface {
	PlaceBet(ctx context.Context, req game.BetRequest) (game.BetResult, error)
	Cashout(ctx context.Context, req game.CashoutRequest) (game.CashoutResult, error)
}

// ClientMessage is what clients send.
type ClientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type subscription struct {
	Channel string `json:"channel"`
}

type outbound struct {
	channel string
	data    []byte
}

// Hub fans engine events out to WebSocket clients by channel subscription.
type Hub struct {
	snapshots Snapshotter
	commands  CommandHandler
	logger    *zap.Logger
	upgrader  websocket.Upgrader

	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]bool

	nextID atomic.Int64
}

func NewHub(snapshots Snapshotter, commands CommandHandler, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		snapshots: snapshots,
		commands:  commands,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.WSReadBufferSize,
			WriteBufferSize: config.WSWriteBufferSize,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan outbound, 100),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
	}
}

// Bind attaches the snapshot source and command handler. It must be called
// before Run; the hub is usually built before the machine it serves.
func (h *Hub) Bind(snapshots Snapshotter, commands CommandHandler) {
	h.snapshots = snapshots
	h.commands = commands
}

// Run is the central dispatcher. It returns when ctx is done and closes
// every client.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("🚀 Event hub started")
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			h.logger.Info("🛑 Event hub stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("✅ Client registered", zap.String("client", c.id), zap.Int("total", total))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("👋 Client unregistered", zap.String("client", c.id), zap.Int("total", total))

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribed(msg.channel) {
			continue
		}
		select {
		case c.send <- msg.data:
		default:
			h.logger.Warn("⚠️ Client send buffer full, skipping message", zap.String("client", c.id))
		}
	}
}

// ClientCount reports the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

/* =========================
   PUBLISHER
========================= */

func (h *Hub) enqueue(ctx context.Context, channel, kind string, data any) error {
	payload, err := json.Marshal(publisher.Envelope{Type: kind, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}
	select {
	case h.broadcast <- outbound{channel: channel, data: payload}:
		return nil
	case <-h.done:
		return fmt.Errorf("hub stopped")
	case <-ctx.Done():
		return fmt.Errorf("hub broadcast %s: %w", channel, ctx.Err())
	}
}

func (h *Hub) PublishState(ctx context.Context, p game.StatePayload) error {
	return h.enqueue(ctx, config.ChannelState, publisher.TypeState, p)
}

func (h *Hub) PublishHistory(ctx context.Context, p game.HistoryPayload) error {
	return h.enqueue(ctx, config.ChannelHistory, publisher.TypeHistory, p)
}

func (h *Hub) PublishBetResult(ctx context.Context, r game.BetResult) error {
	return h.enqueue(ctx, config.ChannelBet, publisher.TypeBetResult, r)
}

func (h *Hub) PublishCashoutResult(ctx context.Context, r game.CashoutResult) error {
	return h.enqueue(ctx, config.ChannelCashout, publisher.TypeCashoutResult, r)
}

/* =========================
   CONNECTIONS
========================= */

// ServeHTTP upgrades the request and starts the client pumps.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("❌ WebSocket upgrade failed", zap.Error(err))
		return
	}

	c := &Client{
		id:            fmt.Sprintf("%d-%d", time.Now().Unix(), h.nextID.Add(1)),
		hub:           h,
		conn:          conn,
		subscriptions: make(map[string]bool),
		send:          make(chan []byte, config.WSSendBuffer),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
