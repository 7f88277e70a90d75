package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
)

// adminConns tracks open admin connections so shutdown can close them.
type adminConns struct {
	mu     sync.Mutex
	conns  map[io.Closer]struct{}
	closed bool
	wg     sync.WaitGroup
}

func newAdminConns() *adminConns {
	return &adminConns{conns: make(map[io.Closer]struct{})}
}

// add reports false once closeAll has run.
func (a *adminConns) add(c io.Closer) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return false
	}
	a.conns[c] = struct{}{}
	a.wg.Add(1)
	return true
}

func (a *adminConns) remove(c io.Closer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.conns[c]; !ok {
		return
	}
	delete(a.conns, c)
	a.wg.Done()
}

func (a *adminConns) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.conns)
}

// closeAll closes every open admin connection and waits for their readers.
func (a *adminConns) closeAll() {
	a.mu.Lock()
	a.closed = true
	for c := range a.conns {
		c.Close()
	}
	a.mu.Unlock()
	a.wg.Wait()
}

func (h *hub) acceptAdmin(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if listenerClosed(ctx, err) {
				return nil
			}
			incr("accept.errors", 1)
			slog.Warn("admin accept failed", "error", err)
			h.clock.Sleep(acceptBackoff)
			continue
		}
		if !h.admins.add(conn) {
			conn.Close()
			continue
		}
		incr("admin.conns", 1)
		slog.Debug("admin connection", "remote", conn.RemoteAddr().String())
		go func() {
			defer h.admins.remove(conn)
			h.relayAdmin(conn)
		}()
	}
}

// relayAdmin reads one message from an admin connection and publishes it.
// The connection is always closed, whatever was read.
func (h *hub) relayAdmin(conn io.ReadCloser) {
	payload, err := io.ReadAll(conn)
	conn.Close()
	if err != nil {
		// A read error ends the message like EOF does.
		slog.Debug("admin read ended early", "error", err)
	}
	payload = trimPayload(payload)
	if len(payload) == 0 {
		return
	}
	h.enqueue(command{cmd: PUBLISH, text: payload})
}

func trimPayload(p []byte) []byte {
	return bytes.Trim(p, trimCutset)
}
