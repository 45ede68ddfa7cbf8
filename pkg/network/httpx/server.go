package httpx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"time"

	"github.com/vacon/signaling/pkg/logger"
)

type Server struct {
	http.Server

	certs *CertReloader
	opts  Options

	listener *Listener
	log      *logger.Logger
}

type (
	Mux struct {
		*http.ServeMux
		prefix string
	}
	Handler        = http.Handler
	HandlerFunc    = http.HandlerFunc
	ResponseWriter = http.ResponseWriter
	Request        = http.Request
)

// NewServeMux allocates and returns a new ServeMux.
func NewServeMux(prefix string) *Mux {
	return &Mux{ServeMux: http.NewServeMux(), prefix: prefix}
}

func (m *Mux) Handle(pattern string, handler Handler) *Mux {
	m.ServeMux.Handle(m.prefix+pattern, handler)
	return m
}

func (m *Mux) HandleFunc(pattern string, handler func(ResponseWriter, *Request)) *Mux {
	m.ServeMux.HandleFunc(m.prefix+pattern, handler)
	return m
}

// NewServer makes a new server listening on the address,
// it won't serve until Run.
func NewServer(address string, handler func(*Server) Handler, options ...Option) (*Server, error) {
	opts := &Options{
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}
	opts.override(options...)

	if opts.Logger == nil {
		opts.Logger = logger.Default()
	}

	server := &Server{
		Server: http.Server{
			Addr:              address,
			IdleTimeout:       opts.IdleTimeout,
			ReadHeaderTimeout: opts.ReadHeaderTimeout,
		},
		opts: *opts,
		log:  opts.Logger,
	}
	server.Handler = handler(server)

	if opts.Https {
		if opts.IsAutoHttpsCert() {
			server.TLSConfig = NewTLSConfig(opts.HttpsDomain).CertManager.TLSConfig()
		} else {
			certs, err := NewCertReloader(opts.HttpsCert, opts.HttpsKey, opts.Logger)
			if err != nil {
				return nil, err
			}
			if opts.HttpsReload {
				if err = certs.Watch(); err != nil {
					return nil, err
				}
			}
			server.certs = certs
			server.TLSConfig = &tls.Config{GetCertificate: certs.GetCertificate}
		}
	}

	addr := server.Addr
	if server.Addr == "" {
		addr = ":http"
		if opts.Https {
			addr = ":https"
		}
		opts.Logger.Warn().Msgf("Empty server address has been changed to %v", addr)
	}
	listener, err := NewListener(addr, server.opts.PortRoll)
	if err != nil {
		_ = server.closeCerts()
		return nil, err
	}
	server.listener = listener

	server.Addr = buildAddress(addr, *listener)
	opts.Logger.Debug().Msgf("httpx %v (%v)", server.Addr, address)
	return server, nil
}

func (s *Server) Run() { go s.run() }

func (s *Server) run() {
	protocol := s.GetProtocol()
	s.log.Info().Msgf("Listening on %s://%s", protocol, s.Addr)

	var err error
	if s.opts.Https {
		err = s.ServeTLS(*s.listener, "", "")
	} else {
		err = s.Serve(*s.listener)
	}
	if errors.Is(err, http.ErrServerClosed) {
		s.log.Debug().Msgf("%s server was closed", protocol)
		return
	}
	s.log.Error().Err(err).Msgf("%s server has failed", protocol)
}

// Shutdown stops the server gracefully, hijacked
// connections (websockets) are not waited for.
func (s *Server) Shutdown(ctx context.Context) error {
	return errors.Join(s.Server.Shutdown(ctx), s.closeCerts())
}

func (s *Server) Stop() error { return errors.Join(s.Server.Close(), s.closeCerts()) }

func (s *Server) closeCerts() error {
	if s.certs == nil {
		return nil
	}
	return s.certs.Close()
}

func (s *Server) GetHost() string { return extractHost(s.Addr) }

func (s *Server) GetPort() int { return s.listener.GetPort() }

func (s *Server) GetProtocol() string {
	protocol := "http"
	if s.opts.Https {
		protocol = "https"
	}
	return protocol
}

func (s *Server) String() string { return s.GetProtocol() + "://" + s.Addr }
