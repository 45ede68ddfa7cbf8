package signaling

import (
	"sync"

	"github.com/vacon/signaling/pkg/logger"
)

// Registry keeps all the sessions of the relay.
//
// A session lives while it has at least one peer. All bookkeeping is done
// under one lock which is never held while sending anything over the network.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*session

	log     *logger.Logger
	metrics *Metrics
}

type session struct {
	peers   []*Peer
	started bool
}

// SessionView is a snapshot of a session.
type SessionView struct {
	Id      string
	Peers   int
	Started bool
	// Initiator is the first peer of the session, set only when
	// the call that produced the view has started the session,
	// and so the initiator should be told about it.
	Initiator *Peer
}

// Stats is a summary of the registry.
type Stats struct {
	Sessions int `json:"sessions"`
	Peers    int `json:"peers"`
	Started  int `json:"started"`
}

func NewRegistry(log *logger.Logger, metrics *Metrics) *Registry {
	return &Registry{sessions: make(map[string]*session), log: log, metrics: metrics}
}

// Join adds the peer into the session with the id, the session is created
// if needed. A join that brings the second peer in starts the session.
func (r *Registry) Join(id string, p *Peer) SessionView {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		s = &session{}
		r.sessions[id] = s
		r.metrics.sessions.Inc()
	}
	if s.index(p) < 0 {
		s.peers = append(s.peers, p)
		r.metrics.peers.Inc()
	}
	initiator := r.start(s)
	v := s.view(id)
	v.Initiator = initiator
	return v
}

// MaybeStart starts the session if it has two peers or more and hasn't
// been started yet. It returns the first peer of the session which
// must be signaled.
func (r *Registry) MaybeStart(id string) (*Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	p := r.start(s)
	return p, p != nil
}

func (r *Registry) start(s *session) *Peer {
	if s.started || len(s.peers) < 2 {
		return nil
	}
	s.started = true
	r.metrics.started.Inc()
	return s.peers[0]
}

// Broadcast sends the message to every peer of the session but the sender,
// keeping its websocket type. A failed send doesn't stop the rest.
func (r *Registry) Broadcast(id string, from *Peer, kind int, message []byte) (sent int, failed int) {
	for _, p := range r.others(id, from) {
		if err := p.Send(kind, message); err != nil {
			failed++
			r.metrics.relayErrors.Inc()
			p.log.Warn().Err(err).Str(logger.SessionField, id).Msgf("couldn't relay from %v", from)
			continue
		}
		sent++
		r.metrics.relayed.Inc()
	}
	return
}

func (r *Registry) others(id string, from *Peer) []*Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	peers := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p != from {
			peers = append(peers, p)
		}
	}
	return peers
}

// Leave removes the peer from the session, the last one out
// removes the session. Unknown sessions or peers are ignored.
func (r *Registry) Leave(id string, p *Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return
	}
	if i := s.index(p); i >= 0 {
		s.peers = append(s.peers[:i], s.peers[i+1:]...)
		r.metrics.peers.Dec()
		p.log.Info().Str(logger.SessionField, id).Msg("Removed peer from the session")
	}
	if len(s.peers) == 0 {
		delete(r.sessions, id)
		r.metrics.sessions.Dec()
		r.log.Info().Str(logger.SessionField, id).Msg("Deleted session, last peer disconnected")
	}
}

// Session returns a snapshot of the session with the id.
func (r *Registry) Session(id string) (SessionView, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return SessionView{}, false
	}
	return s.view(id), true
}

// Len returns the number of sessions.
func (r *Registry) Len() int { r.mu.Lock(); defer r.mu.Unlock(); return len(r.sessions) }

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := Stats{Sessions: len(r.sessions)}
	for _, s := range r.sessions {
		st.Peers += len(s.peers)
		if s.started {
			st.Started++
		}
	}
	return st
}

func (s *session) index(p *Peer) int {
	for i, pp := range s.peers {
		if pp == p {
			return i
		}
	}
	return -1
}

func (s *session) view(id string) SessionView {
	return SessionView{Id: id, Peers: len(s.peers), Started: s.started}
}
