package webrtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v3"
	"github.com/vacon/signaling/pkg/logger"
)

// DataChannelLabel is the label of the channel the offering side opens.
const DataChannelLabel = "vacon"

var ErrNoConnection = errors.New("no peer connection")

// Peer is one side of a data-only WebRTC connection negotiated
// without trickle ICE: descriptions are exchanged once gathering is over.
type Peer struct {
	api  *ApiFactory
	conn *webrtc.PeerConnection
	log  *logger.Logger

	OnMessage func(data []byte)
	OnOpen    func()

	mu   sync.Mutex
	d    *webrtc.DataChannel
	done chan struct{}
	once sync.Once
}

func New(log *logger.Logger, api *ApiFactory) *Peer {
	return &Peer{api: api, log: log, done: make(chan struct{})}
}

// Offer creates the connection with a data channel and returns the complete
// local offer SDP.
func (p *Peer) Offer(ctx context.Context) (string, error) {
	if err := p.connect(); err != nil {
		return "", err
	}
	ch, err := p.conn.CreateDataChannel(DataChannelLabel, nil)
	if err != nil {
		return "", err
	}
	p.setDataChannel(ch)
	p.log.Debug().Msgf("Added [%s] chan", DataChannelLabel)

	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return "", err
	}
	p.log.Debug().Msg("Created Offer")
	return p.localDescription(ctx, offer)
}

// Answer accepts the remote offer and returns the complete local answer SDP.
func (p *Peer) Answer(ctx context.Context, sdp string) (string, error) {
	if err := p.connect(); err != nil {
		return "", err
	}
	p.conn.OnDataChannel(func(ch *webrtc.DataChannel) {
		p.log.Debug().Str("label", ch.Label()).Msg("Remote data channel")
		p.setDataChannel(ch)
	})
	if err := p.setRemote(webrtc.SDPTypeOffer, sdp); err != nil {
		return "", err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return "", err
	}
	p.log.Debug().Msg("Created Answer")
	return p.localDescription(ctx, answer)
}

// SetAnswer applies the remote answer to the offer made before.
func (p *Peer) SetAnswer(sdp string) error {
	if p.conn == nil {
		return ErrNoConnection
	}
	return p.setRemote(webrtc.SDPTypeAnswer, sdp)
}

// Send writes some text into the data channel.
func (p *Peer) Send(text string) error {
	p.mu.Lock()
	d := p.d
	p.mu.Unlock()
	if d == nil {
		return ErrNoConnection
	}
	return d.SendText(text)
}

// Done is closed when the connection is lost.
func (p *Peer) Done() <-chan struct{} { return p.done }

func (p *Peer) Disconnect() {
	if p.conn == nil {
		return
	}
	if p.conn.ConnectionState() < webrtc.PeerConnectionStateDisconnected {
		// ignore this due to DTLS fatal: conn is closed
		_ = p.conn.Close()
	}
	p.stop()
	p.log.Debug().Msg("WebRTC stop")
}

func (p *Peer) connect() (err error) {
	if p.conn != nil {
		return errors.New("already connected")
	}
	p.log.Debug().Msg("WebRTC start")
	if p.conn, err = p.api.NewPeer(); err != nil {
		return
	}
	p.conn.OnICEConnectionStateChange(p.handleICEState)
	return nil
}

func (p *Peer) stop() { p.once.Do(func() { close(p.done) }) }

func (p *Peer) setRemote(t webrtc.SDPType, sdp string) error {
	if err := p.conn.SetRemoteDescription(webrtc.SessionDescription{Type: t, SDP: sdp}); err != nil {
		p.log.Error().Err(err).Msg("Set remote description from peer failed")
		return err
	}
	p.log.Debug().Msg("Set Remote Description")
	return nil
}

// localDescription sets the local description and waits
// until all the ICE candidates are in it.
func (p *Peer) localDescription(ctx context.Context, sd webrtc.SessionDescription) (string, error) {
	gathered := webrtc.GatheringCompletePromise(p.conn)
	if err := p.conn.SetLocalDescription(sd); err != nil {
		return "", err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	p.log.Debug().Msg("ICE gathering complete")
	return p.conn.LocalDescription().SDP, nil
}

func (p *Peer) setDataChannel(ch *webrtc.DataChannel) {
	p.mu.Lock()
	p.d = ch
	p.mu.Unlock()

	ch.OnOpen(func() {
		p.log.Debug().Str("label", ch.Label()).Msg("Data channel opened")
		if p.OnOpen != nil {
			p.OnOpen()
		}
	})
	ch.OnError(func(err error) { p.log.Error().Err(err).Msg("Data channel") })
	ch.OnMessage(func(m webrtc.DataChannelMessage) {
		if len(m.Data) == 0 {
			return
		}
		if p.OnMessage != nil {
			p.OnMessage(m.Data)
		}
	})
	ch.OnClose(func() { p.log.Debug().Msg("Data channel has been closed") })
}

func (p *Peer) handleICEState(state webrtc.ICEConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("ICE")
	switch state {
	case webrtc.ICEConnectionStateConnected:
		p.log.Info().Msg("Connected")
	case webrtc.ICEConnectionStateFailed:
		p.log.Error().Msgf("WebRTC connection fail! connection: %v, ice: %v, gathering: %v, signalling: %v",
			p.conn.ConnectionState(), p.conn.ICEConnectionState(), p.conn.ICEGatheringState(),
			p.conn.SignalingState())
		p.stop()
	case webrtc.ICEConnectionStateClosed,
		webrtc.ICEConnectionStateDisconnected:
		p.stop()
	}
}
