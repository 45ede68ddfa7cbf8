package signaling

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/goccy/go-json"
	"github.com/vacon/signaling/pkg/com"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network/websocket"
)

// Hub accepts peer connections and relays their messages
// within sessions.
type Hub struct {
	registry *Registry
	upgrader *websocket.Upgrader
	peers    com.NetMap[com.Uid, *Peer]

	log     *logger.Logger
	metrics *Metrics
}

func NewHub(opts websocket.Options, metrics *Metrics, log *logger.Logger) *Hub {
	return &Hub{
		registry: NewRegistry(log, metrics),
		upgrader: websocket.NewUpgrader(opts),
		peers:    com.NewNetMap[com.Uid, *Peer](),
		log:      log,
		metrics:  metrics,
	}
}

func (h *Hub) Registry() *Registry { return h.registry }

// ServeHTTP upgrades session requests to websocket connections,
// other paths are not found.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// the raw request target, escapes and query included, is the session key
	target := r.RequestURI
	if _, ok := SessionID(target); !ok {
		h.reject(target, r.RemoteAddr)
		http.NotFound(w, r)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r)
	if err != nil {
		h.log.Warn().Err(err).Str(logger.AddrField, r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	h.Handle(conn, target)
}

// Handle runs a peer connection to the end. It returns when the
// connection is closed, leaving no trace of the peer in the sessions.
// The path is the request target as received, it is not unescaped.
func (h *Hub) Handle(conn Conn, path string) {
	id, ok := SessionID(path)
	if !ok {
		h.reject(path, conn.RemoteAddr())
		_ = conn.Close()
		return
	}

	peer := NewPeer(conn, h.log.Extend(h.log.With().Str(logger.SessionField, id)))
	h.peers.Add(peer)
	defer func() {
		h.peers.Remove(peer)
		_ = conn.Close()
	}()
	peer.log.Info().Msgf("Client connected for session %q", id)

	view := h.registry.Join(id, peer)
	defer h.registry.Leave(id, peer)
	defer func() {
		if err := recover(); err != nil {
			peer.log.Error().Interface("panic", err).Str("stack", string(debug.Stack())).Msg("relay crashed")
		}
	}()
	peer.log.Debug().Int("peers", view.Peers).Msg("Joined")

	if view.Initiator != nil {
		h.signalStart(id, view.Initiator)
	}
	h.relay(id, peer)
}

func (h *Hub) relay(id string, peer *Peer) {
	for {
		// every Join decides on start under the registry lock, so once the
		// session has started this check is a no-op and can't fire twice
		if first, ok := h.registry.MaybeStart(id); ok {
			h.signalStart(id, first)
		}
		kind, message, err := peer.conn.Read()
		if err != nil {
			if errors.Is(err, websocket.ErrClosed) {
				peer.log.Info().Msg("Peer closed connection")
			} else {
				peer.log.Error().Err(err).Msg("Peer connection failed")
			}
			return
		}
		peer.log.Debug().Int("len", len(message)).Msg("Received")
		sent, failed := h.registry.Broadcast(id, peer, kind, message)
		peer.log.Debug().Int("sent", sent).Int("failed", failed).Msg("Relayed")
	}
}

func (h *Hub) signalStart(id string, first *Peer) {
	first.log.Info().Msg("Starting session")
	if err := first.Send(websocket.TextMessage, startSessionMessage); err != nil {
		first.log.Warn().Err(err).Msg("couldn't send the start signal")
	}
}

func (h *Hub) reject(path string, addr string) {
	h.metrics.rejected.Inc()
	h.log.Debug().Str("path", path).Str(logger.AddrField, addr).Msg("Rejected connection")
}

// ServeStats writes the registry summary as JSON.
func (h *Hub) ServeStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.registry.Stats()); err != nil {
		h.log.Error().Err(err).Msg("couldn't write stats")
	}
}

func (h *Hub) Run() {}

// Shutdown disconnects all the peers, their handlers
// clean the sessions up on the way out.
func (h *Hub) Shutdown(context.Context) error {
	h.log.Info().Int("peers", h.peers.Len()).Msg("Disconnecting all peers")
	h.peers.DisconnectAll()
	return nil
}

func (h *Hub) String() string { return "signaling hub" }
