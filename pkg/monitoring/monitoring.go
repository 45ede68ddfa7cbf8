package monitoring

import (
	"context"
	"fmt"
	"net/http/pprof"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vacon/signaling/pkg/config"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network/httpx"
)

const debugEndpoint = "/debug/pprof"
const metricsEndpoint = "/metrics"

type Monitoring struct {
	conf   config.Monitoring
	server *httpx.Server
	log    *logger.Logger
}

// New creates new monitoring service.
func New(conf config.Monitoring, host string, log *logger.Logger) (*Monitoring, error) {
	serv, err := httpx.NewServer(
		fmt.Sprintf("%s:%d", host, conf.Port),
		func(serv *httpx.Server) httpx.Handler {
			h := httpx.NewServeMux(conf.URLPrefix)
			if conf.ProfilingEnabled {
				h.HandleFunc(debugEndpoint+"/", pprof.Index)
				h.HandleFunc(debugEndpoint+"/cmdline", pprof.Cmdline)
				h.HandleFunc(debugEndpoint+"/profile", pprof.Profile)
				h.HandleFunc(debugEndpoint+"/symbol", pprof.Symbol)
				h.HandleFunc(debugEndpoint+"/trace", pprof.Trace)
				log.Info().Msgf("Profiling is enabled at %v%v", serv.Addr, conf.URLPrefix+debugEndpoint)
			}
			if conf.MetricEnabled {
				h.Handle(metricsEndpoint, promhttp.Handler())
				log.Info().Msgf("Prometheus metrics are enabled at %v%v", serv.Addr, conf.URLPrefix+metricsEndpoint)
			}
			return h
		},
		httpx.WithLogger(log),
	)
	if err != nil {
		return nil, err
	}
	return &Monitoring{conf: conf, server: serv, log: log}, nil
}

func (m *Monitoring) Run() { m.server.Run() }

func (m *Monitoring) Shutdown(ctx context.Context) error {
	m.log.Debug().Msg("Shutting down monitoring server")
	return m.server.Shutdown(ctx)
}

func (m *Monitoring) String() string {
	return fmt.Sprintf("monitoring::%s:%d", m.conf.URLPrefix, m.conf.Port)
}
