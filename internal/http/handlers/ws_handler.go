package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/rentchain/escrow/internal/auth"
	"github.com/rentchain/escrow/internal/config"
	"github.com/rentchain/escrow/internal/events"
	"github.com/rentchain/escrow/internal/models"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// wsClient serializes writes to one socket.
type wsClient struct {
	mu sync.Mutex
	w  messageWriter
}

func (c *wsClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w.WriteMessage(websocket.TextMessage, data)
}

// WSHub pushes payment events to the parties involved. The operator sees
// every event.
type WSHub struct {
	cfg         *config.Config
	subscriber  events.Subscriber
	log         *zap.Logger
	mu          sync.RWMutex
	connections map[models.Address][]*wsClient
}

func NewWSHub(cfg *config.Config, subscriber events.Subscriber, log *zap.Logger) *WSHub {
	if log == nil {
		log = zap.NewNop()
	}
	return &WSHub{
		cfg:         cfg,
		subscriber:  subscriber,
		log:         log,
		connections: make(map[models.Address][]*wsClient),
	}
}

func (h *WSHub) Start(ctx context.Context) error {
	for _, stream := range []string{events.StreamPayments, events.StreamNotify} {
		if err := h.subscriber.Subscribe(ctx, stream, h.dispatch); err != nil {
			return err
		}
	}
	return nil
}

// Recipients returns the addresses an event is delivered to.
func (h *WSHub) Recipients(event events.Event) []models.Address {
	out := event.Parties()
	op := h.cfg.OperatorAddress
	for _, a := range out {
		if a == op {
			return out
		}
	}
	return append(out, op)
}

func (h *WSHub) dispatch(event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal ws event", zap.Error(err))
		return
	}
	for _, addr := range h.Recipients(event) {
		h.send(addr, data)
	}
}

func (h *WSHub) SendTo(addr models.Address, event events.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	h.send(addr, data)
}

func (h *WSHub) send(addr models.Address, data []byte) {
	h.mu.RLock()
	clients := append([]*wsClient(nil), h.connections[addr]...)
	h.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(data); err != nil {
			h.log.Debug("ws write failed", zap.String("address", addr.String()), zap.Error(err))
		}
	}
}

func (h *WSHub) register(addr models.Address, w messageWriter) *wsClient {
	c := &wsClient{w: w}
	h.mu.Lock()
	h.connections[addr] = append(h.connections[addr], c)
	h.mu.Unlock()
	return c
}

func (h *WSHub) unregister(addr models.Address, c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := h.connections[addr]
	for i, x := range conns {
		if x == c {
			h.connections[addr] = append(conns[:i:i], conns[i+1:]...)
			break
		}
	}
	if len(h.connections[addr]) == 0 {
		delete(h.connections, addr)
	}
}

// Connected reports how many sockets addr has open.
func (h *WSHub) Connected(addr models.Address) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[addr])
}

// WSUpgradeMiddleware checks for websocket upgrade
func WSUpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

func (h *WSHub) HandleWS(conn *websocket.Conn) {
	// Extract token from query
	tokenStr := conn.Query("token")
	if tokenStr == "" {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"missing token"}`))
		conn.Close()
		return
	}

	claims, err := auth.ParseJWT(h.cfg.JWTSecret, tokenStr)
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"invalid token"}`))
		conn.Close()
		return
	}

	addr := claims.Address

	client := h.register(addr, conn)
	defer func() {
		h.unregister(addr, client)
		conn.Close()
	}()

	// Read loop (keep alive / pings)
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}
