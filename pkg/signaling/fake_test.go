package signaling

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network/websocket"
)

var errBrokenPipe = errors.New("broken pipe")

// fakeConn is an in-memory peer connection.
type fakeConn struct {
	addr string
	in   chan []byte

	mu        sync.Mutex
	out       [][]byte
	kinds     []int
	failWrite bool
	readErr   error
	panics    bool

	closed chan struct{}
	once   sync.Once
}

func newFakeConn(addr string) *fakeConn {
	return &fakeConn{addr: addr, in: make(chan []byte, 10), closed: make(chan struct{})}
}

func (c *fakeConn) Read() (int, []byte, error) {
	c.mu.Lock()
	err, panics := c.readErr, c.panics
	c.mu.Unlock()
	if panics {
		panic("read exploded")
	}
	if err != nil {
		return 0, nil, err
	}
	select {
	case m := <-c.in:
		return websocket.TextMessage, m, nil
	case <-c.closed:
		return 0, nil, fmt.Errorf("%w: fake", websocket.ErrClosed)
	}
}

func (c *fakeConn) Write(kind int, m []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrite {
		return errBrokenPipe
	}
	c.out = append(c.out, m)
	c.kinds = append(c.kinds, kind)
	return nil
}

func (c *fakeConn) Close() error       { c.once.Do(func() { close(c.closed) }); return nil }
func (c *fakeConn) RemoteAddr() string { return c.addr }

func (c *fakeConn) written() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s []string
	for _, m := range c.out {
		s = append(s, string(m))
	}
	return s
}

func (c *fakeConn) writtenKinds() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]int(nil), c.kinds...)
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func newTestMetrics() *Metrics { return NewMetrics(prometheus.NewRegistry()) }

func newTestPeer(addr string) (*Peer, *fakeConn) {
	c := newFakeConn(addr)
	return NewPeer(c, logger.NewNop()), c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %v", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
