package websocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed marks reads that ended because the connection was closed,
// either by the remote side (cleanly or not) or locally.
var ErrClosed = errors.New("connection closed")

const closeWait = time.Second

// Data message types, as in RFC 6455.
const (
	TextMessage   = websocket.TextMessage
	BinaryMessage = websocket.BinaryMessage
)

// Options are optional connection policies. Zero values turn them off.
type Options struct {
	// MaxMessageSize limits the size of a single inbound message.
	MaxMessageSize int64
	// PingInterval enables keep-alive pings, a peer that doesn't answer
	// them within the interval (+10%) is considered gone.
	PingInterval time.Duration
	// WriteTimeout bounds every single write.
	WriteTimeout time.Duration
}

func (o Options) pongWait() time.Duration { return o.PingInterval * 10 / 9 }

type Upgrader struct {
	websocket.Upgrader
	opts Options
}

// NewUpgrader makes an upgrader that accepts any origin,
// clients are not only browsers.
func NewUpgrader(opts Options) *Upgrader {
	return &Upgrader{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			WriteBufferPool: &sync.Pool{},
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		opts: opts,
	}
}

func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	sock, err := u.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(sock, u.opts), nil
}

// Dial connects to a websocket server at the address.
func Dial(ctx context.Context, address string, opts Options) (*Conn, error) {
	sock, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(sock, opts), nil
}

// Conn is a websocket connection of data messages.
// Reads must come from a single goroutine, writes may be concurrent.
type Conn struct {
	sock *websocket.Conn
	opts Options

	wmu  sync.Mutex
	done chan struct{}
	once sync.Once
}

func NewConn(sock *websocket.Conn, opts Options) *Conn {
	c := &Conn{sock: sock, opts: opts, done: make(chan struct{})}
	if opts.MaxMessageSize > 0 {
		sock.SetReadLimit(opts.MaxMessageSize)
	}
	if opts.PingInterval > 0 {
		_ = sock.SetReadDeadline(time.Now().Add(opts.pongWait()))
		sock.SetPongHandler(func(string) error {
			return sock.SetReadDeadline(time.Now().Add(opts.pongWait()))
		})
		go c.pinger()
	}
	return c
}

// Read blocks until the next data message and returns it with its type.
// A closed connection yields an error wrapping ErrClosed.
func (c *Conn) Read() (int, []byte, error) {
	kind, message, err := c.sock.ReadMessage()
	if err != nil {
		if isClosed(err) {
			return 0, nil, fmt.Errorf("%w: %v", ErrClosed, err)
		}
		return 0, nil, err
	}
	return kind, message, nil
}

// Write sends a message of the kind (TextMessage or BinaryMessage),
// blocks until it's written or failed.
func (c *Conn) Write(kind int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if c.opts.WriteTimeout > 0 {
		if err := c.sock.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout)); err != nil {
			return err
		}
	}
	return c.sock.WriteMessage(kind, data)
}

// Close sends the close frame and closes the underlying connection.
// Safe to call multiple times.
func (c *Conn) Close() (err error) {
	c.once.Do(func() {
		close(c.done)
		_ = c.sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(closeWait))
		err = c.sock.Close()
	})
	return
}

func (c *Conn) RemoteAddr() string { return c.sock.RemoteAddr().String() }

func (c *Conn) pinger() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.PingInterval)
			if err := c.sock.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func isClosed(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}
