package wsgateway

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/wippy-systems/relay/topic"
	"github.com/wippy-systems/relay/transport"
)

// client is one accepted WebSocket connection.
type client struct {
	id   transport.ClientID
	conn *websocket.Conn
	send chan []byte
	gw   *Gateway
}

// readPump forwards every inbound text frame as ws.message to whatever
// hub currently owns this connection, and synthesizes ws.leave on
// close or read error.
func (c *client) readPump() {
	defer func() {
		c.gw.unregister(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		body := make([]byte, len(data))
		copy(body, data)
		c.gw.routeFor(c.id).Dispatch(topic.Message, c.id, body)
	}
}

// writePump drains c.send to the socket and keeps the connection alive
// with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
