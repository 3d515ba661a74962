package gateway

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linkora-dex/backend/internal/registry"
)

// errSendBufferFull is returned by Client.Send when the outbound buffer
// cannot absorb another message without blocking the broadcaster.
var errSendBufferFull = errors.New("gateway: client send buffer full")

const sendBuffer = 32

// Client adapts one upgraded WebSocket connection to registry.Sender, with a
// buffered send channel and a dedicated WritePump goroutine so a single slow
// reader can never block Registry.Broadcast for every other subscriber.
//
// Grounded on internal/gateway/client.go's writePump/readPump split and
// write-coalescing via NextWriter, generalized from the teacher's
// multi-channel SUBSCRIBE/UNSUBSCRIBE indicator protocol down to this
// spec's single-kind candles|orderbook subscription fixed at connect time
// (SPEC_FULL.md §6).
type Client struct {
	conn *websocket.Conn
	send chan []byte

	pongTimeout time.Duration
}

// NewClient wires conn to a fixed-capacity send channel.
func NewClient(conn *websocket.Conn, pongTimeout time.Duration) *Client {
	return &Client{conn: conn, send: make(chan []byte, sendBuffer), pongTimeout: pongTimeout}
}

// Send implements registry.Sender. It never blocks: a full buffer means the
// client is too slow to keep up, so the message is dropped and the caller
// (Registry.Broadcast) marks the subscription dead rather than stall every
// other subscriber behind one laggard.
func (c *Client) Send(data []byte) error {
	select {
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

var _ registry.Sender = (*Client)(nil)

// WritePump drains the send channel onto the socket, coalescing any
// messages already queued at the moment of a write into one frame
// (newline-joined) exactly as the teacher's client.go does for broadcast
// throughput. Returns when the channel is closed or a write fails.
func (c *Client) WritePump() {
	defer c.conn.Close()

	for msg := range c.send {
		w, err := c.conn.NextWriter(websocket.TextMessage)
		if err != nil {
			return
		}
		w.Write(msg)

		n := len(c.send)
		for i := 0; i < n; i++ {
			w.Write([]byte("\n"))
			w.Write(<-c.send)
		}
		if err := w.Close(); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Close causes WritePump to drain and exit.
func (c *Client) Close() { close(c.send) }

type clientMsg struct {
	Type string `json:"type"`
}

// ReadPump reads client frames until the connection closes or the read
// deadline lapses. The only inbound message the wire contract defines is
// {"type":"pong"} (SPEC_FULL.md §6), which resets the deadline and marks
// onPong; anything else is ignored rather than rejected.
func (c *Client) ReadPump(onPong func()) {
	defer c.conn.Close()
	c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMsg
		if json.Unmarshal(data, &msg) == nil && msg.Type == "pong" {
			c.conn.SetReadDeadline(time.Now().Add(c.pongTimeout))
			onPong()
		}
	}
}
