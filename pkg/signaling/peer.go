package signaling

import (
	"github.com/vacon/signaling/pkg/com"
	"github.com/vacon/signaling/pkg/logger"
)

// Conn is a live message connection of a peer.
//
// Read blocks until the next message and returns it with its websocket
// type, or an error wrapping websocket.ErrClosed when the connection is gone.
// Write blocks until the message is written and may be called
// concurrently with Read.
type Conn interface {
	Read() (kind int, message []byte, err error)
	Write(kind int, message []byte) error
	Close() error
	RemoteAddr() string
}

// Peer is one connected client, it is compared by its pointer.
type Peer struct {
	id   com.Uid
	conn Conn
	addr string
	log  *logger.Logger
}

func NewPeer(conn Conn, log *logger.Logger) *Peer {
	p := &Peer{id: com.NewUid(), conn: conn, addr: conn.RemoteAddr()}
	p.log = log.Extend(log.With().
		Str(logger.PeerField, p.id.Short()).
		Str(logger.AddrField, p.addr))
	return p
}

func (p *Peer) Id() com.Uid                         { return p.id }
func (p *Peer) Addr() string                        { return p.addr }
func (p *Peer) Send(kind int, message []byte) error { return p.conn.Write(kind, message) }
func (p *Peer) Disconnect()                         { _ = p.conn.Close() }
func (p *Peer) String() string                      { return p.id.Short() + "@" + p.addr }
