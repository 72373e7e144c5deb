package realtime

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBuffer     = 64
)

// Client is one observer connection.
type Client struct {
	ID   string
	hub  *Hub
	conn *websocket.Conn
	Send chan []byte

	logger *zap.Logger
}

// inboundMessage is what observers may send: room subscription and
// catch-up requests.
type inboundMessage struct {
	Type          string `json:"type"`
	Room          string `json:"room,omitempty"`
	LastTimestamp string `json:"lastTimestamp,omitempty"`
}

// ServeWS upgrades an HTTP request and attaches the connection to the hub.
func ServeWS(hub *Hub, upgrader websocket.Upgrader, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		c := &Client{
			ID:     uuid.NewString(),
			hub:    hub,
			conn:   conn,
			Send:   make(chan []byte, sendBuffer),
			logger: logger,
		}
		hub.Register(c)
		go c.writePump()
		go c.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Warn("websocket read error", zap.String("client", c.ID), zap.Error(err))
			}
			return
		}
		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("bad observer message", zap.String("client", c.ID), zap.Error(err))
			continue
		}
		switch msg.Type {
		case "subscribe":
			if msg.Room != "" {
				c.hub.Join(c, msg.Room)
			}
		case "requestMissedData":
			since, err := time.Parse(time.RFC3339, msg.LastTimestamp)
			if err != nil {
				c.logger.Warn("bad catch-up timestamp",
					zap.String("client", c.ID), zap.String("lastTimestamp", msg.LastTimestamp))
				continue
			}
			c.hub.CatchUp(c, since)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload, ok := <-c.Send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
