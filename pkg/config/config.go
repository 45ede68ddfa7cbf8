package config

import "time"

type Config struct {
	Signaling Signaling
}

type Signaling struct {
	Debug bool
	// Lock is a path to the lock file that keeps
	// a single relay instance per host, empty for none.
	Lock       string
	Server     Server
	Monitoring Monitoring
	Ws         Websocket
}

type Server struct {
	Address  string `default:"127.0.0.1:8000"`
	Https    bool
	PortRoll bool
	Tls      struct {
		// Domain enables automatic ACME certificates
		// when there is no certificate file.
		Domain    string
		HttpsKey  string
		HttpsCert string
		// Reload watches certificate files for changes.
		Reload bool
	}
}

type Monitoring struct {
	Port             int    `default:"6601"`
	URLPrefix        string `default:"/signaling"`
	MetricEnabled    bool   `json:"metric_enabled"`
	ProfilingEnabled bool   `json:"profiling_enabled"`
}

func (c *Monitoring) IsEnabled() bool { return c.MetricEnabled || c.ProfilingEnabled }

// Websocket options are extra connection policies,
// zero means off.
type Websocket struct {
	MaxMessageSize int64
	PingInterval   time.Duration
	WriteTimeout   time.Duration
}
