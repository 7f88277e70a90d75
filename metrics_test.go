package main

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	gometrics "github.com/rcrowley/go-metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func count(name string) int64 {
	return gometrics.GetOrRegisterCounter(name, m.reg).Count()
}

func newTestMetrics() (*metrics, *syncBuffer) {
	out := &syncBuffer{}
	return &metrics{log: out, reg: gometrics.NewRegistry()}, out
}

func TestCounters(t *testing.T) {
	before := count("accept.errors")
	drops := gometrics.GetOrRegisterMeter("drops", m.reg).Count()

	incr("accept.errors", 3)
	decr("accept.errors", 1)
	mark("drops", 2)

	assert.Equal(t, before+2, count("accept.errors"))
	assert.Equal(t, drops+2, gometrics.GetOrRegisterMeter("drops", m.reg).Count())
}

func TestWriteOnce(t *testing.T) {
	mt, out := newTestMetrics()
	mt.incr("broadcasts", 1)

	mt.writeOnce()

	var report map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(out.String()), &report))
	assert.EqualValues(t, 1, report["broadcasts"]["count"])
}

func TestMetricsRun(t *testing.T) {
	mt, out := newTestMetrics()
	mt.incr("handshakes", 1)
	clock := clockwork.NewFakeClock()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		mt.run(ctx, clock, time.Minute)
		close(stopped)
	}()

	assert.Eventually(t, func() bool {
		clock.Advance(time.Minute)
		return bytes.Contains([]byte(out.String()), []byte("handshakes"))
	}, 2*time.Second, 10*time.Millisecond)

	before := len(out.String())
	cancel()
	<-stopped
	assert.Greater(t, len(out.String()), before, "a final report is written on shutdown")
}
