package signaling

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network/websocket"
)

func newTestHub() (*Hub, *Metrics) {
	m := newTestMetrics()
	return NewHub(websocket.Options{}, m, logger.NewNop()), m
}

func TestSessionID(t *testing.T) {
	tests := []struct {
		path string
		id   string
		ok   bool
	}{
		{path: "/v1/ooo/abc", id: "abc", ok: true},
		{path: "/v1/ooo/", id: "", ok: true},
		{path: "/v1/ooo/a/b/c", id: "a/b/c", ok: true},
		{path: "/v1/ooo/v1/ooo/x", id: "v1/ooo/x", ok: true},
		{path: "/v1/ooo/abc?x=1", id: "abc?x=1", ok: true},
		{path: "/v1/ooo/a%2Fb", id: "a%2Fb", ok: true},
		{path: "/v1%2Fooo/zz", ok: false},
		{path: "/v1/ooo", ok: false},
		{path: "/other/path", ok: false},
		{path: "/V1/OOO/abc", ok: false},
		{path: "", ok: false},
	}
	for _, test := range tests {
		id, ok := SessionID(test.path)
		if ok != test.ok || id != test.id {
			t.Errorf("%q: expected %q %v, got %q %v", test.path, test.id, test.ok, id, ok)
		}
	}
}

func TestStartSessionMessage(t *testing.T) {
	var m map[string]any
	if err := json.Unmarshal(startSessionMessage, &m); err != nil {
		t.Fatal(err)
	}
	if len(m) != 1 || m["type"] != "start_session" {
		t.Errorf("unexpected start message %s", startSessionMessage)
	}
	if ParseMessage([]byte("not json")).Type != "" {
		t.Errorf("garbage has a type")
	}
}

func TestHandleRejected(t *testing.T) {
	hub, m := newTestHub()
	c := newFakeConn("x")

	hub.Handle(c, "/other/path")

	if !c.isClosed() {
		t.Errorf("rejected connection is open")
	}
	if hub.Registry().Len() != 0 {
		t.Errorf("rejected connection has touched the registry")
	}
	if n := testutil.ToFloat64(m.rejected); n != 1 {
		t.Errorf("expected 1 rejected, got %v", n)
	}
}

func TestHandleRelay(t *testing.T) {
	hub, _ := newTestHub()
	x, y := newFakeConn("x"), newFakeConn("y")

	xDone, yDone := make(chan struct{}), make(chan struct{})
	go func() { hub.Handle(x, "/v1/ooo/abc"); close(xDone) }()
	waitFor(t, "x joined", func() bool { v, ok := hub.Registry().Session("abc"); return ok && v.Peers == 1 })

	go func() { hub.Handle(y, "/v1/ooo/abc"); close(yDone) }()
	waitFor(t, "start signal", func() bool { return len(x.written()) == 1 })
	if got := x.written()[0]; got != string(startSessionMessage) {
		t.Errorf("expected start signal, got %v", got)
	}

	x.in <- []byte("offer-data")
	waitFor(t, "relay", func() bool { return len(y.written()) == 1 })
	if got := y.written(); got[0] != "offer-data" {
		t.Errorf("Y got %v", got)
	}

	_ = y.Close()
	<-yDone
	if v, ok := hub.Registry().Session("abc"); !ok || v.Peers != 1 {
		t.Errorf("expected 1 peer after Y left, %+v", v)
	}
	if len(x.written()) != 1 {
		t.Errorf("X got more than the start signal %v", x.written())
	}

	_ = x.Close()
	<-xDone
	if hub.Registry().Len() != 0 {
		t.Errorf("session is still there")
	}
}

func TestHandleCleansUpOnErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(c *fakeConn)
	}{
		{name: "unexpected error", setup: func(c *fakeConn) { c.readErr = errors.New("boom") }},
		{name: "panic", setup: func(c *fakeConn) { c.panics = true }},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			hub, _ := newTestHub()
			other := newFakeConn("other")
			done := make(chan struct{})
			go func() { hub.Handle(other, "/v1/ooo/s"); close(done) }()
			waitFor(t, "other joined", func() bool { return hub.Registry().Len() == 1 })

			c := newFakeConn("bad")
			test.setup(c)
			hub.Handle(c, "/v1/ooo/s")

			if !c.isClosed() {
				t.Errorf("connection is not closed")
			}
			if v, _ := hub.Registry().Session("s"); v.Peers != 1 {
				t.Errorf("failed peer is still in the session, %+v", v)
			}
			_ = other.Close()
			<-done
			if hub.Registry().Len() != 0 {
				t.Errorf("session is still there")
			}
		})
	}
}

func TestHubShutdown(t *testing.T) {
	hub, _ := newTestHub()
	conns := []*fakeConn{newFakeConn("a"), newFakeConn("b"), newFakeConn("c")}
	done := make(chan struct{}, len(conns))
	for _, c := range conns {
		go func(c *fakeConn) { hub.Handle(c, "/v1/ooo/s"); done <- struct{}{} }(c)
	}
	waitFor(t, "all joined", func() bool { v, _ := hub.Registry().Session("s"); return v.Peers == len(conns) })

	if err := hub.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	for range conns {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("handler didn't stop")
		}
	}
	if hub.Registry().Len() != 0 {
		t.Errorf("sessions left after shutdown")
	}
}

// end-to-end over real websockets

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/ooo"
}

func dialTest(t *testing.T, srv *httptest.Server, session string) *Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := Dial(ctx, wsURL(srv), session)
	if err != nil {
		t.Fatalf("couldn't connect, %v", err)
	}
	return c
}

func recv(t *testing.T, c *Client) string {
	t.Helper()
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() { _, data, err := c.Recv(); ch <- result{data, err} }()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("recv failed, %v", r.err)
		}
		return string(r.data)
	case <-time.After(5 * time.Second):
		t.Fatal("recv timeout")
	}
	return ""
}

func TestRelayOverWebsocket(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	x := dialTest(t, srv, "abc")
	waitFor(t, "x joined", func() bool { v, _ := hub.Registry().Session("abc"); return v.Peers == 1 })

	y := dialTest(t, srv, "abc")
	// Y talks right away, X has to see the start signal first
	if err := y.SendRaw(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatal(err)
	}
	if m := recv(t, x); ParseMessage([]byte(m)).Type != StartSession {
		t.Fatalf("expected start signal first, got %v", m)
	}
	if m := recv(t, x); m != "hello" {
		t.Fatalf("expected hello, got %v", m)
	}

	if err := x.Send(Message{Type: Offer, Sdp: "v=0"}); err != nil {
		t.Fatal(err)
	}
	m, _, err := y.Recv()
	if err != nil {
		t.Fatal(err)
	}
	if m.Type != Offer || m.Sdp != "v=0" {
		t.Errorf("unexpected offer %+v", m)
	}

	// another session is not affected
	z := dialTest(t, srv, "ABC")
	defer func() { _ = z.Close() }()
	waitFor(t, "z joined", func() bool { return hub.Registry().Len() == 2 })

	_ = y.Close()
	waitFor(t, "y left", func() bool { v, _ := hub.Registry().Session("abc"); return v.Peers == 1 })
	_ = x.Close()
	waitFor(t, "abc deleted", func() bool { _, ok := hub.Registry().Session("abc"); return !ok })
}

func TestRelayRejectsOtherPaths(t *testing.T) {
	hub, m := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/other/path", websocket.Options{}); err == nil {
		t.Errorf("expected handshake error")
	}
	if hub.Registry().Len() != 0 {
		t.Errorf("registry was touched")
	}
	if n := testutil.ToFloat64(m.rejected); n != 1 {
		t.Errorf("expected 1 rejected, got %v", n)
	}
}

func TestStatsEndpoint(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeStats))
	defer srv.Close()

	p, _ := newTestPeer("a")
	hub.Registry().Join("s", p)

	rs, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = rs.Body.Close() }()
	body, _ := io.ReadAll(rs.Body)

	var st Stats
	if err = json.Unmarshal(body, &st); err != nil {
		t.Fatal(err)
	}
	if st != (Stats{Sessions: 1, Peers: 1}) {
		t.Errorf("unexpected stats %s", body)
	}
}

func TestRelayKeepsRawTarget(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ids := []string{"abc", "abc?x=1", "a/b", "a%2Fb"}
	for _, id := range ids {
		c := dialTest(t, srv, id)
		defer func() { _ = c.Close() }()
	}
	waitFor(t, "all joined", func() bool { return hub.Registry().Len() == len(ids) })

	for _, id := range ids {
		if v, ok := hub.Registry().Session(id); !ok || v.Peers != 1 {
			t.Errorf("session %q: expected 1 peer, got %+v %v", id, v, ok)
		}
	}
}

func TestRelayRejectsEscapedPrefix(t *testing.T) {
	hub, m := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1%2Fooo/zz", websocket.Options{}); err == nil {
		t.Errorf("expected handshake error")
	}
	if hub.Registry().Len() != 0 {
		t.Errorf("registry was touched")
	}
	if n := testutil.ToFloat64(m.rejected); n != 1 {
		t.Errorf("expected 1 rejected, got %v", n)
	}
}

func TestRelayBinaryOverWebsocket(t *testing.T) {
	hub, _ := newTestHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()

	x := dialTest(t, srv, "bin")
	defer func() { _ = x.Close() }()
	waitFor(t, "x joined", func() bool { return hub.Registry().Len() == 1 })
	y := dialTest(t, srv, "bin")
	defer func() { _ = y.Close() }()

	if m := recv(t, x); ParseMessage([]byte(m)).Type != StartSession {
		t.Fatalf("expected start signal first, got %v", m)
	}
	data := []byte{0xff, 0x00, 0xfe}
	if err := y.SendRaw(websocket.BinaryMessage, data); err != nil {
		t.Fatal(err)
	}
	kind, got, err := x.RecvRaw()
	if err != nil {
		t.Fatal(err)
	}
	if kind != websocket.BinaryMessage || string(got) != string(data) {
		t.Errorf("expected binary %x, got %v %x", data, kind, got)
	}
}
