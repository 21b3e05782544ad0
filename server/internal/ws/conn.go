package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	// idleTimeout closes a connection that has sent nothing, not even a
	// pong, for this long.
	idleTimeout = 60 * time.Second

	// pingEvery keeps a healthy peer inside idleTimeout.
	pingEvery = idleTimeout * 9 / 10

	writeTimeout = 10 * time.Second
	sendBufSize  = 8
	maxInbound   = 512
)

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func newClient(conn *websocket.Conn) *client {
	return &client{conn: conn, send: make(chan []byte, sendBufSize)}
}

// write sends one frame under writeTimeout.
func (c *client) write(kind int, payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(kind, payload)
}

// writeLoop drains send and pings the peer. A closed send channel ends the
// connection with a close frame.
func (c *client) writeLoop() {
	keepalive := time.NewTicker(pingEvery)
	defer keepalive.Stop()
	defer c.conn.Close()

	for {
		var err error
		select {
		case msg, open := <-c.send:
			if !open {
				_ = c.write(websocket.CloseMessage, nil)
				return
			}
			err = c.write(websocket.TextMessage, msg)
		case <-keepalive.C:
			err = c.write(websocket.PingMessage, nil)
		}
		if err != nil {
			return
		}
	}
}

// readLoop discards inbound frames. It returns when the peer goes away or
// stays silent past idleTimeout.
func (c *client) readLoop() {
	defer c.conn.Close()

	extend := func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	c.conn.SetReadLimit(maxInbound)
	c.conn.SetPongHandler(extend)
	if extend("") != nil {
		return
	}
	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			return
		}
	}
}
