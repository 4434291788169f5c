package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/thereceipt/thermal-bridge/internal/battery"
	"github.com/thereceipt/thermal-bridge/internal/gateway"
)

// EventBattery is the event of battery broadcasts
const EventBattery = "battery"

// WSRequest is a call sent by a WebSocket client. ID is echoed on every
// reply to the call.
type WSRequest struct {
	ID     any            `json:"id"`
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

// WSReply is one reply to a WSRequest
type WSReply struct {
	ID any `json:"id,omitempty"`
	gateway.Reply
}

// WSBattery is a battery broadcast
type WSBattery struct {
	Event   string        `json:"event"`
	Battery battery.Event `json:"battery"`
	Low     bool          `json:"low"`
}

// WSClient represents a connected WebSocket client
type WSClient struct {
	conn   *websocket.Conn
	send   chan any
	server *Server
	ctx    context.Context
	cancel context.CancelFunc
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &WSClient{
		conn:   conn,
		send:   make(chan any, 256),
		server: s,
		ctx:    ctx,
		cancel: cancel,
	}

	s.addClient(client)
	slog.Info("websocket client connected", "remote", conn.RemoteAddr().String())

	go client.readPump()
	go client.writePump()
}

func (c *WSClient) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case msg := <-c.send:
			if err := c.conn.WriteJSON(msg); err != nil {
				slog.Warn("websocket write failed", "error", err)
				c.cancel()
				return
			}
		}
	}
}

func (c *WSClient) readPump() {
	defer func() {
		c.server.removeClient(c)
		c.cancel()
		slog.Info("websocket client disconnected")
	}()

	for {
		var req WSRequest
		err := c.conn.ReadJSON(&req)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read failed", "error", err)
			}
			return
		}

		c.handleRequest(req)
	}
}

func (c *WSClient) handleRequest(req WSRequest) {
	if req.Method == "" {
		c.enqueue(WSReply{ID: req.ID, Reply: gateway.Reply{
			Event:   gateway.EventError,
			Code:    gateway.CodeArgument,
			Message: "method is required",
		}})
		return
	}

	id := req.ID
	c.server.gateway.Handle(c.ctx, gateway.Call{Method: req.Method, Args: req.Args},
		gateway.ResultFunc(func(r gateway.Reply) {
			c.enqueue(WSReply{ID: id, Reply: r})
		}))
}

// enqueue hands msg to the writer; it gives up once the client is gone
func (c *WSClient) enqueue(msg any) {
	select {
	case c.send <- msg:
	case <-c.ctx.Done():
	}
}

func (s *Server) addClient(client *WSClient) {
	s.clientsMu.Lock()
	s.clients[client] = true
	s.clientsMu.Unlock()
}

func (s *Server) removeClient(client *WSClient) {
	s.clientsMu.Lock()
	delete(s.clients, client)
	s.clientsMu.Unlock()
}

// Clients returns the number of connected WebSocket clients
func (s *Server) Clients() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	return len(s.clients)
}

// BroadcastBattery sends a battery event to all connected clients
func (s *Server) BroadcastBattery(ev battery.Event) {
	low, _ := ev.Low()
	message := WSBattery{
		Event:   EventBattery,
		Battery: ev,
		Low:     low,
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		select {
		case client.send <- message:
		default:
			// Client send buffer full, skip
		}
	}
}
