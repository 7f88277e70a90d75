package main

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// Bytes requested per client read.
const readBufferSize = 2048

type client struct {
	id       uuid.UUID
	conn     net.Conn
	send     chan []byte
	accepted time.Time

	// Owned by the hub goroutine.
	handshake bool
	buf       []byte
	closed    bool
}

func newClient(conn net.Conn, sendQueue int, now time.Time) *client {
	return &client{
		id:       uuid.New(),
		conn:     conn,
		send:     make(chan []byte, sendQueue),
		accepted: now,
	}
}

func (c *client) remote() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// queue hands msg to the writer without blocking.
func (c *client) queue(msg []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	c.conn.Close()
}

// reader forwards everything read from the connection to the hub until the
// peer goes away.
func (c *client) reader(h *hub) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			incr("conn.recv", 1)
			data := make([]byte, n)
			copy(data, buf[:n])
			if !h.enqueue(command{cmd: RECEIVE, conn: c, text: data}) {
				return
			}
		}
		if err != nil {
			h.enqueue(command{cmd: UNSUBSCRIBE, conn: c})
			return
		}
	}
}

// writer drains the send queue. Write errors are counted and otherwise
// ignored; only the reader decides when a client is gone.
func (c *client) writer() {
	for message := range c.send {
		if _, err := c.conn.Write(message); err != nil {
			incr("conn.send.errors", 1)
			continue
		}
		incr("conn.send", 1)
	}
}
