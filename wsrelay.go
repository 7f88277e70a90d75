// Command wsrelay is a one-way broadcast relay over websockets.
//
//	wsrelay -addr=0.0.0.0:8080 -admin-addr=127.0.0.1:9000
//
// Browsers connect to the client address and complete a websocket
// handshake on any path. Anything written to the admin address, up to the
// moment the writer closes its connection, is trimmed and sent to every
// connected client as one text frame.
//
//	printf 'Hello' | nc -q0 127.0.0.1 9000
//
// Nothing is stored. A client that connects after a message was sent never
// sees it. The admin port answers nothing and checks nothing; keep it on
// loopback.
//
// Text sent by clients is read and discarded.
//
// With -debug-addr set, an HTTP listener serves /healthz, /metrics and a
// POST /publish that behaves like the admin port.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

type cmdType int

const (
	SUBSCRIBE cmdType = iota
	RECEIVE
	UNSUBSCRIBE
	PUBLISH
	STATS
)

type command struct {
	cmd   cmdType
	conn  *client
	text  []byte
	reply chan registryStats
}

type queue chan command

// Pause after a failed Accept before trying again.
const acceptBackoff = 100 * time.Millisecond

var errHubStopped = errors.New("hub stopped")

type relay struct {
	cfg      *Config
	clock    clockwork.Clock
	hub      *hub
	clientLn net.Listener
	adminLn  net.Listener
	debugLn  net.Listener
}

// listen binds every configured address. Nothing is left open on error.
func listen(cfg *Config, clock clockwork.Clock) (*relay, error) {
	r := &relay{cfg: cfg, clock: clock, hub: newHub(cfg, clock)}
	var err error
	if r.clientLn, err = net.Listen("tcp", cfg.ClientAddr); err != nil {
		return nil, fmt.Errorf("listen on client address %s: %w", cfg.ClientAddr, err)
	}
	if r.adminLn, err = net.Listen("tcp", cfg.AdminAddr); err != nil {
		r.clientLn.Close()
		return nil, fmt.Errorf("listen on admin address %s: %w", cfg.AdminAddr, err)
	}
	if cfg.DebugAddr != "" {
		if r.debugLn, err = net.Listen("tcp", cfg.DebugAddr); err != nil {
			r.clientLn.Close()
			r.adminLn.Close()
			return nil, fmt.Errorf("listen on debug address %s: %w", cfg.DebugAddr, err)
		}
	}
	return r, nil
}

// serve runs the relay until ctx is cancelled.
func (r *relay) serve(ctx context.Context) error {
	r.hub.ticker = newMTicker(r.clock, r.cfg.PollInterval)
	defer r.hub.ticker.stop()

	slog.Info("websocket server listening", "addr", r.clientLn.Addr().String())
	slog.Info("admin notifier listening", "addr", r.adminLn.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.hub.run(ctx)
		return nil
	})
	g.Go(func() error {
		return r.hub.acceptClients(ctx, r.clientLn)
	})
	g.Go(func() error {
		return r.hub.acceptAdmin(ctx, r.adminLn)
	})

	var debug *http.Server
	if r.debugLn != nil {
		debug = &http.Server{
			Handler:           newDebugHandler(r.hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		slog.Info("debug server listening", "addr", r.debugLn.Addr().String())
		g.Go(func() error {
			if err := debug.Serve(r.debugLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
	}

	if r.cfg.MetricsTick > 0 {
		g.Go(func() error {
			m.run(ctx, r.clock, r.cfg.MetricsTick)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		r.clientLn.Close()
		r.adminLn.Close()
		r.hub.admins.closeAll()
		if debug != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			debug.Shutdown(shutdownCtx)
		}
		return nil
	})

	return g.Wait()
}

// acceptClients registers every accepted connection with the hub before
// its reader starts, so registration always precedes the client's reads.
func (h *hub) acceptClients(ctx context.Context, ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if listenerClosed(ctx, err) {
				return nil
			}
			incr("accept.errors", 1)
			slog.Warn("client accept failed", "error", err)
			h.clock.Sleep(acceptBackoff)
			continue
		}
		c := newClient(conn, h.sendQueue, h.clock.Now())
		if !h.enqueue(command{cmd: SUBSCRIBE, conn: c}) {
			conn.Close()
			return nil
		}
		go c.writer()
		go c.reader(h)
	}
}

func listenerClosed(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, net.ErrClosed)
}
