package signaling

import (
	"github.com/vacon/signaling/pkg/config"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network/httpx"
)

const StatsPath = "/v1/stats"

// NewHTTPServer makes the relay server, all the paths that
// are not the stats one go to the hub as is (no ServeMux path cleaning,
// session ids are matched exactly).
func NewHTTPServer(conf config.Server, hub *Hub, log *logger.Logger) (*httpx.Server, error) {
	return httpx.NewServer(
		conf.Address,
		func(*httpx.Server) httpx.Handler {
			return httpx.HandlerFunc(func(w httpx.ResponseWriter, r *httpx.Request) {
				if r.URL.Path == StatsPath {
					hub.ServeStats(w, r)
					return
				}
				hub.ServeHTTP(w, r)
			})
		},
		httpx.WithServerConfig(conf),
		httpx.WithLogger(log),
	)
}
