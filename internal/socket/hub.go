// server/internal/socket/hub.go
package socket

import (
	"encoding/json"
	"sync"
	"time"

	"journey-risk-api-server/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// pongWait is the maximum time to wait for the next message or pong from the peer.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Channel prefixes
const (
	RouteUpdatePrefix   = "route_update_"
	VehicleUpdatePrefix = "vehicle_update_"
	WeatherUpdatePrefix = "weather_update_"
)

func RouteChannel(routeID string) string     { return RouteUpdatePrefix + routeID }
func VehicleChannel(vehicleID string) string { return VehicleUpdatePrefix + vehicleID }
func WeatherChannel(routeID string) string   { return WeatherUpdatePrefix + routeID }

// Message is the frame pushed to subscribers.
type Message struct {
	Channel string      `json:"channel"`
	Data    interface{} `json:"data"`
}

// command is what clients send to change subscriptions.
type command struct {
	Action  string `json:"action"` // "subscribe" | "unsubscribe"
	Channel string `json:"channel"`
}

// Publisher is the side of the hub the pipeline, scheduler and handlers use.
type Publisher interface {
	Publish(channel string, data interface{})
}

// Hub fans messages out to the clients subscribed to a channel.
type Hub struct {
	logger  *zap.Logger
	metrics *metrics.Registry

	mu       sync.RWMutex
	clients  map[*Client]struct{}
	channels map[string]map[*Client]struct{}
}

func NewHub(logger *zap.Logger, m *metrics.Registry) *Hub {
	return &Hub{
		logger:   logger,
		metrics:  m,
		clients:  make(map[*Client]struct{}),
		channels: make(map[string]map[*Client]struct{}),
	}
}

// Publish delivers data to every subscriber of channel. Slow clients are dropped.
func (h *Hub) Publish(channel string, data interface{}) {
	payload, err := json.Marshal(Message{Channel: channel, Data: data})
	if err != nil {
		h.logger.Error("failed to marshal push message", zap.String("channel", channel), zap.Error(err))
		return
	}

	// Sends happen under the read lock so Unregister cannot close a queue mid-send.
	var slow []*Client
	h.mu.RLock()
	for c := range h.channels[channel] {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("websocket client too slow, disconnecting", zap.String("user_id", c.userID))
		h.Unregister(c)
	}
}

// Register adds c to the hub. Subscriptions are added with Subscribe.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebSocketClients(n)
	h.logger.Info("websocket client registered", zap.String("user_id", c.userID), zap.Int("total_clients", n))
}

// Unregister removes c from every channel and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for ch := range c.channels {
		if subs, ok := h.channels[ch]; ok {
			delete(subs, c)
			if len(subs) == 0 {
				delete(h.channels, ch)
			}
		}
	}
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetWebSocketClients(n)
	h.logger.Info("websocket client unregistered", zap.String("user_id", c.userID), zap.Int("total_clients", n))
}

func (h *Hub) Subscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Client]struct{})
		h.channels[channel] = subs
	}
	subs[c] = struct{}{}
	c.channels[channel] = struct{}{}
}

func (h *Hub) Unsubscribe(c *Client, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(c.channels, channel)
	if subs, ok := h.channels[channel]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Subscribers returns how many clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Client is one websocket connection. channels is guarded by the hub mutex.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	channels map[string]struct{}

	// allow decides whether the client may subscribe to a channel.
	allow func(channel string) bool
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, allow func(channel string) bool) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		userID:   userID,
		channels: make(map[string]struct{}),
		allow:    allow,
	}
}

// ReadPump handles subscribe/unsubscribe commands and keeps the read deadline alive.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("unexpected websocket close", zap.String("user_id", c.userID), zap.Error(err))
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		var cmd command
		if err := json.Unmarshal(raw, &cmd); err != nil || cmd.Channel == "" {
			continue
		}
		switch cmd.Action {
		case "subscribe":
			if c.allow == nil || c.allow(cmd.Channel) {
				c.hub.Subscribe(c, cmd.Channel)
			}
		case "unsubscribe":
			c.hub.Unsubscribe(c, cmd.Channel)
		}
	}
}

// WritePump drains the send queue and pings the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
