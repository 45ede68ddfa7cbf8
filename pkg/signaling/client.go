package signaling

import (
	"context"
	"strings"

	"github.com/goccy/go-json"
	"github.com/vacon/signaling/pkg/network/websocket"
)

// Client is a peer side connection to the relay.
type Client struct {
	conn *websocket.Conn
}

// SessionURL makes the relay address of the session,
// i.e. ws://host:8000/v1/ooo + secret.
func SessionURL(base string, session string) string {
	return strings.TrimSuffix(base, "/") + "/" + session
}

// Dial connects to the session on the relay with base address
// like ws://127.0.0.1:8000/v1/ooo.
func Dial(ctx context.Context, base string, session string) (*Client, error) {
	conn, err := websocket.Dial(ctx, SessionURL(base, session), websocket.Options{})
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Recv waits for the next relayed message.
func (c *Client) Recv() (Message, []byte, error) {
	_, data, err := c.conn.Read()
	if err != nil {
		return Message{}, nil, err
	}
	return ParseMessage(data), data, nil
}

// Send sends some value as JSON.
func (c *Client) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.conn.Write(websocket.TextMessage, data)
}

// SendRaw sends data as is in a message of the kind
// (websocket.TextMessage or websocket.BinaryMessage).
func (c *Client) SendRaw(kind int, data []byte) error { return c.conn.Write(kind, data) }

// RecvRaw waits for the next relayed message and its kind.
func (c *Client) RecvRaw() (int, []byte, error) { return c.conn.Read() }

func (c *Client) Close() error { return c.conn.Close() }
