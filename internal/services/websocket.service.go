package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"raspimon/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	DefaultHeartbeatInterval = 30 * time.Second

	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
	welcomeMessage = "Connected to Raspberry Pi Monitor"
)

// Client is one live subscriber connection
type Client struct {
	ID          string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu       sync.Mutex
	channels map[string]bool
	alive    bool
}

// Alive reports whether the client answered the last heartbeat
func (c *Client) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

func (c *Client) setAlive(v bool) {
	c.mu.Lock()
	c.alive = v
	c.mu.Unlock()
}

// Channels returns the subscribed channels, sorted
func (c *Client) Channels() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// wants reports whether a broadcast on channel reaches this client.
// An empty subscription set means every channel.
func (c *Client) wants(channel string) bool {
	if channel == models.ChannelAll {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels) == 0 || c.channels[models.ChannelAll] || c.channels[channel]
}

func (c *Client) write(msg []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	return nil
}

func (c *Client) ping() error {
	if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	return nil
}

// BroadcastHub owns the connection table and fans events out to subscribers
type BroadcastHub struct {
	log       *slog.Logger
	now       func() time.Time
	heartbeat *RepeatingTask

	mu      sync.RWMutex
	clients map[string]*Client
}

func NewBroadcastHub(log *slog.Logger, heartbeatInterval time.Duration) *BroadcastHub {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	h := &BroadcastHub{
		log:     log,
		now:     time.Now,
		clients: make(map[string]*Client),
	}
	h.heartbeat = NewRepeatingTask("heartbeat", heartbeatInterval, func(context.Context) {
		h.Heartbeat()
	}, log)
	return h
}

// Start arms the heartbeat
func (h *BroadcastHub) Start(ctx context.Context) {
	h.heartbeat.Start(ctx)
}

// Serve registers conn, greets it and reads client frames until the
// connection fails. It blocks for the lifetime of the connection.
func (h *BroadcastHub) Serve(conn *websocket.Conn, remoteAddr, userAgent string) {
	c := h.Register(conn, remoteAddr, userAgent)
	defer h.remove(c, "disconnected")

	conn.SetReadLimit(maxMessageSize)
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				h.log.Warn("ws: read error", "id", c.ID, "error", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		h.HandleMessage(c, raw)
	}
}

// Register adds conn to the connection table and sends the welcome frame
func (h *BroadcastHub) Register(conn *websocket.Conn, remoteAddr, userAgent string) *Client {
	c := &Client{
		ID:          uuid.NewString(),
		RemoteAddr:  remoteAddr,
		UserAgent:   userAgent,
		ConnectedAt: h.now().UTC(),
		conn:        conn,
		channels:    make(map[string]bool),
		alive:       true,
	}
	conn.SetPongHandler(func(string) error {
		c.setAlive(true)
		return nil
	})

	h.mu.Lock()
	h.clients[c.ID] = c
	total := len(h.clients)
	h.mu.Unlock()
	h.log.Info("ws: client connected", "id", c.ID, "remote", remoteAddr, "total", total)

	h.sendTo(c, models.MessageWelcome, models.WelcomePayload{
		ClientID:  c.ID,
		Timestamp: h.now().UTC(),
		Message:   welcomeMessage,
	})
	return c
}

// HandleMessage answers one inbound frame. Malformed frames get an error
// frame and leave the connection open.
func (h *BroadcastHub) HandleMessage(c *Client, raw []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.log.Debug("ws: bad frame", "id", c.ID, "error", fmt.Errorf("%w: %v", ErrProtocol, err))
		h.sendTo(c, models.MessageError, models.ErrorPayload{Message: "Invalid message format"})
		return
	}

	switch msg.Type {
	case models.MessagePing:
		h.sendTo(c, models.MessagePong, models.PongPayload{Timestamp: h.now().UTC(), ClientID: c.ID})

	case models.MessageSubscribe, models.MessageUnsubscribe:
		var p models.ChannelsPayload
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				h.sendTo(c, models.MessageError, models.ErrorPayload{Message: "Invalid message format"})
				return
			}
		}
		if msg.Type == models.MessageSubscribe {
			h.subscribe(c, p.Channels)
			h.sendTo(c, models.MessageSubscriptionConfirmed, models.ChannelsPayload{Channels: c.Channels()})
			return
		}
		h.unsubscribe(c, p.Channels)
		if p.Channels == nil {
			p.Channels = []string{}
		}
		h.sendTo(c, models.MessageUnsubscriptionConfirmed, p)

	case models.MessageRequestMetrics:
		var p models.MetricsRequestPayload
		if len(msg.Data) > 0 {
			_ = json.Unmarshal(msg.Data, &p)
		}
		h.sendTo(c, models.MessageMetricsRequestReceived, models.MetricsRequestAck{
			RequestID: p.RequestID,
			Timestamp: h.now().UTC(),
		})

	default:
		h.sendTo(c, models.MessageError, models.ErrorPayload{Message: "Unknown message type", Type: string(msg.Type)})
	}
}

func (h *BroadcastHub) subscribe(c *Client, channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		if ch != "" {
			c.channels[ch] = true
		}
	}
	c.mu.Unlock()
	h.log.Info("ws: client subscribed", "id", c.ID, "channels", c.Channels())
}

func (h *BroadcastHub) unsubscribe(c *Client, channels []string) {
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.channels, ch)
	}
	c.mu.Unlock()
	h.log.Info("ws: client unsubscribed", "id", c.ID, "channels", channels)
}

// Broadcast sends one envelope to every client whose subscriptions match
// channel and returns the number of successful deliveries. A failed send
// evicts only that client.
func (h *BroadcastHub) Broadcast(msgType models.MessageType, data any, channel string) int {
	if channel == "" {
		channel = models.ChannelAll
	}
	msg, err := h.encode(msgType, data)
	if err != nil {
		h.log.Error("ws: failed to encode broadcast", "type", msgType, "error", err)
		return 0
	}

	sent := 0
	for _, c := range h.snapshot() {
		if !c.wants(channel) {
			continue
		}
		if err := c.write(msg); err != nil {
			h.log.Warn("ws: broadcast failed, dropping client", "id", c.ID, "error", err)
			h.remove(c, "send failed")
			continue
		}
		sent++
	}
	return sent
}

// HandleEvent routes bus events to their broadcast channel
func (h *BroadcastHub) HandleEvent(ev Event) {
	switch ev.Topic {
	case TopicMetrics:
		h.Broadcast(models.MessageMetrics, ev.Payload, "metrics")
	case TopicAlert:
		h.Broadcast(models.MessageAlert, ev.Payload, "alerts")
	}
}

// Heartbeat runs one liveness round: clients that missed the previous ping
// are evicted, the others are pinged and marked pending
func (h *BroadcastHub) Heartbeat() {
	for _, c := range h.snapshot() {
		if !c.Alive() {
			h.log.Info("ws: client missed heartbeat", "id", c.ID)
			h.remove(c, "heartbeat timeout")
			continue
		}
		c.setAlive(false)
		if err := c.ping(); err != nil {
			h.log.Warn("ws: ping failed", "id", c.ID, "error", err)
			h.remove(c, "ping failed")
		}
	}
}

// Count returns the number of live connections
func (h *BroadcastHub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats describes the connection table
func (h *BroadcastHub) Stats() models.HubStats {
	clients := h.snapshot()
	stats := models.HubStats{
		TotalClients:          len(clients),
		ClientsBySubscription: make(map[string]int),
	}
	for _, c := range clients {
		channels := c.Channels()
		if len(channels) == 0 {
			channels = []string{models.ChannelAll}
		}
		for _, ch := range channels {
			stats.ClientsBySubscription[ch]++
		}
		at := c.ConnectedAt
		if stats.OldestConnection == nil || at.Before(*stats.OldestConnection) {
			stats.OldestConnection = &at
		}
		if stats.NewestConnection == nil || at.After(*stats.NewestConnection) {
			stats.NewestConnection = &at
		}
	}
	return stats
}

// Shutdown stops the heartbeat and closes every connection with a normal closure
func (h *BroadcastHub) Shutdown() {
	h.heartbeat.Stop()

	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "Server shutting down")
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage, closeMsg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	}
	h.log.Info("ws: hub shut down", "closed", len(clients))
}

func (h *BroadcastHub) sendTo(c *Client, msgType models.MessageType, data any) {
	msg, err := h.encode(msgType, data)
	if err != nil {
		h.log.Error("ws: failed to encode frame", "type", msgType, "error", err)
		return
	}
	if err := c.write(msg); err != nil {
		h.log.Warn("ws: send failed, dropping client", "id", c.ID, "error", err)
		h.remove(c, "send failed")
	}
}

func (h *BroadcastHub) encode(msgType models.MessageType, data any) ([]byte, error) {
	return json.Marshal(models.Envelope{Type: msgType, Data: data, Timestamp: h.now().UTC()})
}

func (h *BroadcastHub) snapshot() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		out = append(out, c)
	}
	return out
}

func (h *BroadcastHub) remove(c *Client, reason string) {
	h.mu.Lock()
	_, ok := h.clients[c.ID]
	delete(h.clients, c.ID)
	total := len(h.clients)
	h.mu.Unlock()
	if !ok {
		return
	}
	_ = c.conn.Close()
	h.log.Info("ws: client disconnected", "id", c.ID, "reason", reason, "total", total)
}
