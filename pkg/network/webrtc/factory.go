package webrtc

import (
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v3"
	"github.com/vacon/signaling/pkg/logger"
)

type Options struct {
	// IceServers is a list of STUN/TURN server URLs.
	IceServers []string
	// IcePorts limits local UDP ports for ICE, zero values mean any.
	IcePortMin uint16
	IcePortMax uint16
	// LogLevel is the minimal level of pion's own logs.
	LogLevel                   logger.Level
	DisableDefaultInterceptors bool
}

func (o Options) hasPortRange() bool { return o.IcePortMin > 0 && o.IcePortMax > 0 }

type ApiFactory struct {
	api  *webrtc.API
	conf webrtc.Configuration
}

func NewApiFactory(opts Options, log *logger.Logger) (api *ApiFactory, err error) {
	m := &webrtc.MediaEngine{}
	if err = m.RegisterDefaultCodecs(); err != nil {
		return
	}
	i := &interceptor.Registry{}
	if !opts.DisableDefaultInterceptors {
		if err = webrtc.RegisterDefaultInterceptors(m, i); err != nil {
			return
		}
	}
	s := webrtc.SettingEngine{LoggerFactory: logger.NewPionLogger(log, opts.LogLevel)}
	if opts.hasPortRange() {
		if err = s.SetEphemeralUDPPortRange(opts.IcePortMin, opts.IcePortMax); err != nil {
			return
		}
	}

	c := webrtc.Configuration{ICEServers: []webrtc.ICEServer{}}
	for _, url := range opts.IceServers {
		c.ICEServers = append(c.ICEServers, webrtc.ICEServer{URLs: []string{url}})
	}

	return &ApiFactory{
		api:  webrtc.NewAPI(webrtc.WithMediaEngine(m), webrtc.WithInterceptorRegistry(i), webrtc.WithSettingEngine(s)),
		conf: c,
	}, nil
}

func (a *ApiFactory) NewPeer() (*webrtc.PeerConnection, error) {
	return a.api.NewPeerConnection(a.conf)
}
