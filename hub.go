package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// Length of the admin payload preview written to the log.
const payloadPreview = 200

type hub struct {
	queue    queue
	registry *registry
	clock    clockwork.Clock
	ticker   *mTicker
	admins   *adminConns
	done     chan struct{}

	sendQueue        int
	maxHeaderBytes   int
	handshakeTimeout time.Duration
}

func newHub(cfg *Config, clock clockwork.Clock) *hub {
	return &hub{
		queue:            make(queue, 16),
		registry:         newRegistry(),
		clock:            clock,
		admins:           newAdminConns(),
		done:             make(chan struct{}),
		sendQueue:        cfg.SendQueue,
		maxHeaderBytes:   cfg.MaxHeaderBytes,
		handshakeTimeout: cfg.HandshakeTimeout,
	}
}

// run owns the registry until ctx is cancelled. Every registry mutation
// happens here.
func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	defer h.registry.closeAll()

	var tick <-chan time.Time
	if h.ticker != nil {
		sub := h.ticker.subscribe()
		defer h.ticker.unsubscribe(sub)
		tick = sub.tick
	}

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.queue:
			h.dispatch(cmd)
		case now, ok := <-tick:
			if !ok {
				tick = nil
				continue
			}
			h.sweep(now)
		}
	}
}

// enqueue hands cmd to the run loop. It reports false once the loop has
// stopped.
func (h *hub) enqueue(cmd command) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.queue <- cmd:
		return true
	case <-h.done:
		return false
	}
}

func (h *hub) dispatch(cmd command) {
	switch cmd.cmd {
	case SUBSCRIBE:
		h.subscribe(cmd.conn)
	case RECEIVE:
		h.receive(cmd.conn, cmd.text)
	case UNSUBSCRIBE:
		h.unsubscribe(cmd.conn)
	case PUBLISH:
		h.publish(cmd.text)
	case STATS:
		cmd.reply <- h.registry.stats()
	default:
		panic(fmt.Sprintf("unexpected hub cmd: %v\n", cmd))
	}
}

func (h *hub) subscribe(c *client) {
	h.registry.add(c)
	slog.Debug("client connected", "client", c.id, "remote", c.remote())
}

func (h *hub) unsubscribe(c *client) {
	if h.registry.remove(c) {
		slog.Debug("client disconnected", "client", c.id)
	}
}

func (h *hub) receive(c *client, data []byte) {
	if !h.registry.has(c) {
		return
	}
	if c.handshake {
		// Clients have nothing to say to the relay; decode and drop.
		if _, err := decodeClientFrame(data); err != nil {
			slog.Debug("discarding undecodable client frame", "client", c.id, "error", err)
		}
		return
	}
	c.buf = append(c.buf, data...)
	h.handshake(c)
}

func (h *hub) handshake(c *client) {
	key, err := parseHandshake(c.buf)
	if errors.Is(err, errIncompleteHandshake) {
		if h.maxHeaderBytes > 0 && len(c.buf) > h.maxHeaderBytes {
			h.reject(c, "handshake headers too large")
		}
		return
	}
	if err != nil {
		h.reject(c, err.Error())
		return
	}
	if !c.queue(handshakeResponse(acceptKey(key))) {
		h.reject(c, "send queue unavailable")
		return
	}
	c.handshake = true
	c.buf = nil
	incr("handshakes", 1)
	incr("clients.handshaken", 1)
	slog.Info("handshake done", "client", c.id, "remote", c.remote())
}

func (h *hub) reject(c *client, reason string) {
	incr("handshake.failures", 1)
	h.registry.remove(c)
	slog.Info("handshake failed", "client", c.id, "reason", reason)
}

func (h *hub) publish(payload []byte) {
	if len(payload) == 0 {
		return
	}
	preview := payload
	if len(preview) > payloadPreview {
		preview = preview[:payloadPreview]
	}
	slog.Info("admin payload received", "bytes", len(payload), "preview", string(preview))

	sent, dropped := h.registry.broadcast(encodeTextFrame(payload))
	incr("broadcasts", 1)
	if dropped > 0 {
		mark("drops", int64(dropped))
	}
	slog.Debug("broadcast", "sent", sent, "dropped", dropped)
}

// sweep closes clients that have not finished the handshake in time.
func (h *hub) sweep(now time.Time) {
	if h.handshakeTimeout <= 0 {
		return
	}
	var stale []*client
	h.registry.each(func(c *client) {
		if !c.handshake && now.Sub(c.accepted) > h.handshakeTimeout {
			stale = append(stale, c)
		}
	})
	for _, c := range stale {
		h.reject(c, "handshake timeout")
	}
}

// stats asks the run loop for a registry snapshot.
func (h *hub) stats(ctx context.Context) (registryStats, error) {
	reply := make(chan registryStats, 1)
	if !h.enqueue(command{cmd: STATS, reply: reply}) {
		return registryStats{}, errHubStopped
	}
	select {
	case s := <-reply:
		return s, nil
	case <-h.done:
		return registryStats{}, errHubStopped
	case <-ctx.Done():
		return registryStats{}, ctx.Err()
	}
}
