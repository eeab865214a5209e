package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"aviatorServer/config"
	"aviatorServer/game"
	"aviatorServer/publisher"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one connected socket and its channel subscriptions.
type Client struct {
	id            string
	hub           *Hub
	conn          *websocket.Conn
	mu            sync.RWMutex
	subscriptions map[string]bool
	send          chan []byte
}

func (c *Client) subscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscriptions[channel]
}

// reply queues a direct message to this client only.
func (c *Client) reply(kind string, data any) {
	payload, err := json.Marshal(publisher.Envelope{Type: kind, Data: data})
	if err != nil {
		c.hub.logger.Error("❌ Failed to marshal reply", zap.String("type", kind), zap.Error(err))
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
		c.hub.logger.Warn("⚠️ Client send buffer full, dropping reply", zap.String("client", c.id))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(config.WSPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Debug("❌ Write error", zap.String("client", c.id), zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(config.WSWriteDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(config.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(config.WSReadDeadline))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("❌ Read error", zap.String("client", c.id), zap.Error(err))
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.reply("error", map[string]string{"error": "invalid message"})
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg ClientMessage) {
	switch msg.Type {
	case "subscribe", "unsubscribe":
		var sub subscription
		if err := json.Unmarshal(msg.Data, &sub); err != nil || !knownChannel(sub.Channel) {
			c.reply("error", map[string]string{"error": "unknown channel"})
			return
		}
		c.mu.Lock()
		if msg.Type == "subscribe" {
			c.subscriptions[sub.Channel] = true
		} else {
			delete(c.subscriptions, sub.Channel)
		}
		c.mu.Unlock()
		c.hub.logger.Debug("📡 Subscription changed",
			zap.String("client", c.id), zap.String("type", msg.Type), zap.String("channel", sub.Channel))
		if msg.Type == "subscribe" {
			c.sendInitialData(sub.Channel)
		}

	case "place_bet":
		var req game.BetRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply("error", map[string]string{"error": "invalid bet"})
			return
		}
		c.runCommand(func(ctx context.Context) {
			res, _ := c.hub.commands.PlaceBet(ctx, req)
			c.reply(publisher.TypeBetResult, res)
		})

	case "cashout":
		var req game.CashoutRequest
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			c.reply("error", map[string]string{"error": "invalid cashout"})
			return
		}
		c.runCommand(func(ctx context.Context) {
			res, _ := c.hub.commands.Cashout(ctx, req)
			c.reply(publisher.TypeCashoutResult, res)
		})

	default:
		c.hub.logger.Debug("⚠️ Unknown message type", zap.String("client", c.id), zap.String("type", msg.Type))
		c.reply("error", map[string]string{"error": "unknown message type"})
	}
}

func (c *Client) runCommand(fn func(ctx context.Context)) {
	if c.hub.commands == nil {
		c.reply("error", map[string]string{"error": "commands unavailable"})
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), config.SettlementTimeout)
	defer cancel()
	fn(ctx)
}

// sendInitialData gives a new subscriber the current snapshot so it does not
// wait for the next broadcast.
func (c *Client) sendInitialData(channel string) {
	if c.hub.snapshots == nil {
		return
	}
	switch channel {
	case config.ChannelState:
		c.reply(publisher.TypeState, c.hub.snapshots.State())
	case config.ChannelHistory:
		c.reply(publisher.TypeHistory, c.hub.snapshots.History())
	}
}

func knownChannel(channel string) bool {
	switch channel {
	case config.ChannelState, config.ChannelHistory, config.ChannelBet, config.ChannelCashout:
		return true
	}
	return false
}
