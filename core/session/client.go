package session

import (
	"context"
	"encoding/json"
	"time"

	"pulsefm/logger"
	"pulsefm/model"

	"github.com/gorilla/websocket"
)

// Client is one live WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn

	// Send is the per-connection outbound buffer; a full buffer marks
	// the client too slow and gets it unregistered.
	Send chan []byte

	APIKey       string
	ConnectionID string
}

// NewClient pairs a connection with the hub.
func NewClient(hub *Hub, conn *websocket.Conn, apiKey, connectionID string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		Send:         make(chan []byte, 256),
		APIKey:       apiKey,
		ConnectionID: connectionID,
	}
}

// ReadPump consumes inbound frames until the connection dies. The only
// inbound traffic the station understands is the keep-alive ping; onPing
// is called for each one so presence can be refreshed.
func (c *Client) ReadPump(ctx context.Context, onPing func(apiKey string)) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, message, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					logger.Warn("websocket read error",
						logger.String("connectionId", c.ConnectionID),
						logger.ErrorField(err))
				}
				return
			}

			var msg model.WSMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				logger.Warn("invalid session message",
					logger.String("connectionId", c.ConnectionID),
					logger.ErrorField(err))
				continue
			}

			if msg.Action == model.ActionPing {
				c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
				if onPing != nil {
					onPing(c.APIKey)
				}
				if data, err := json.Marshal(&model.WSMessage{Action: model.ActionPong, Type: model.TypeResponse}); err == nil {
					select {
					case c.Send <- data:
					default:
					}
				}
			}
		}
	}
}

// WritePump pushes queued messages and protocol pings to the peer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Drain whatever else queued up while we held the writer.
			n := len(c.Send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.Send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
