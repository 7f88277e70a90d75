package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	gometrics "github.com/rcrowley/go-metrics"
)

type metrics struct {
	log io.Writer
	reg gometrics.Registry
}

var m = &metrics{
	log: os.Stderr,
	reg: gometrics.NewRegistry(),
}

func incr(name string, i int64) {
	m.incr(name, i)
}

func decr(name string, i int64) {
	m.decr(name, i)
}

func mark(name string, i int64) {
	m.mark(name, i)
}

// run writes the registry every tick, and once more when ctx is done.
func (m *metrics) run(ctx context.Context, clock clockwork.Clock, tick time.Duration) {
	t := newMTicker(clock, tick)
	defer t.stop()
	sub := t.subscribe()
	defer m.writeOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-sub.tick:
			if !ok {
				return
			}
			m.writeOnce()
		}
	}
}

func (m *metrics) writeOnce() {
	gometrics.WriteJSONOnce(m.reg, m.log)
}

func (m *metrics) incr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Inc(i)
}

func (m *metrics) decr(name string, i int64) {
	gometrics.GetOrRegisterCounter(name, m.reg).Dec(i)
}

func (m *metrics) mark(name string, i int64) {
	gometrics.GetOrRegisterMeter(name, m.reg).Mark(i)
}
