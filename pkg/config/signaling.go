package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

const defaultHost = "127.0.0.1"

var ErrTooManyArgs = errors.New("too many arguments, usage: [[host:]port] [certificate]")

// NewConfig builds the relay config from the config file, the environment,
// command line flags and positional arguments, in that order of priority
// from the lowest.
func NewConfig(args []string) (conf Config, err error) {
	path, err := configPath(args)
	if err != nil {
		return
	}
	if err = LoadConfig(&conf, path); err != nil {
		return conf, fmt.Errorf("config: %w", err)
	}
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)
	fs.String("conf", path, "Set custom configuration directory")
	conf.AddFlags(fs)
	if err = fs.Parse(args); err != nil {
		return
	}
	err = conf.ApplyArgs(fs.Args())
	return
}

func configPath(args []string) (string, error) {
	fs := pflag.NewFlagSet("signaling", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist = pflag.ParseErrorsWhitelist{UnknownFlags: true}
	fs.Usage = func() {}
	path := fs.String("conf", "", "")
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return "", err
	}
	return *path, nil
}

func (c *Config) AddFlags(fs *pflag.FlagSet) *Config {
	s := &c.Signaling
	fs.BoolVarP(&s.Debug, "debug", "d", s.Debug, "Print debug messages")
	fs.StringVar(&s.Lock, "lock", s.Lock, "Single instance lock file path")
	fs.StringVar(&s.Server.Address, "address", s.Server.Address, "Server address (host:port)")
	fs.BoolVar(&s.Server.Https, "https", s.Server.Https, "Enable HTTPS")
	fs.BoolVar(&s.Server.PortRoll, "portRoll", s.Server.PortRoll, "Try next ports when the port is busy")
	fs.StringVar(&s.Server.Tls.HttpsCert, "httpsCert", s.Server.Tls.HttpsCert, "HTTPS certificate chain")
	fs.StringVar(&s.Server.Tls.HttpsKey, "httpsKey", s.Server.Tls.HttpsKey, "HTTPS key (the chain file if empty)")
	fs.StringVar(&s.Server.Tls.Domain, "httpsDomain", s.Server.Tls.Domain, "Domain for automatic certificates")
	fs.BoolVar(&s.Server.Tls.Reload, "httpsReload", s.Server.Tls.Reload, "Reload certificates on change")
	fs.IntVar(&s.Monitoring.Port, "monitoring.port", s.Monitoring.Port, "Monitoring server port")
	fs.BoolVar(&s.Monitoring.MetricEnabled, "monitoring.metrics", s.Monitoring.MetricEnabled, "Enable Prometheus metrics")
	fs.BoolVar(&s.Monitoring.ProfilingEnabled, "monitoring.profiling", s.Monitoring.ProfilingEnabled, "Enable pprof")
	fs.Int64Var(&s.Ws.MaxMessageSize, "ws.maxMessageSize", s.Ws.MaxMessageSize, "Max inbound message size, 0 is unlimited")
	fs.DurationVar(&s.Ws.PingInterval, "ws.pingInterval", s.Ws.PingInterval, "Keep-alive ping interval, 0 is off")
	fs.DurationVar(&s.Ws.WriteTimeout, "ws.writeTimeout", s.Ws.WriteTimeout, "Write timeout, 0 is off")
	return c
}

// ApplyArgs applies old style positional arguments: [[host:]port] [certificate].
// The certificate file has to keep both the chain and the key
// unless the key is set separately.
func (c *Config) ApplyArgs(args []string) error {
	if len(args) > 2 {
		return ErrTooManyArgs
	}
	if len(args) > 0 {
		address, err := ParseEndpoint(args[0])
		if err != nil {
			return err
		}
		c.Signaling.Server.Address = address
	}
	if len(args) > 1 {
		c.Signaling.Server.Https = true
		c.Signaling.Server.Tls.HttpsCert = args[1]
	}
	tls := &c.Signaling.Server.Tls
	if tls.HttpsCert != "" && tls.HttpsKey == "" {
		tls.HttpsKey = tls.HttpsCert
	}
	return nil
}

// ParseEndpoint turns a port or host:port into a listen address,
// a bare port means localhost.
func ParseEndpoint(endpoint string) (string, error) {
	address := endpoint
	if !strings.Contains(endpoint, ":") {
		address = defaultHost + ":" + endpoint
	}
	i := strings.LastIndex(address, ":")
	if _, err := strconv.ParseUint(address[i+1:], 10, 16); err != nil {
		return "", fmt.Errorf("bad port in %q: %w", endpoint, err)
	}
	if _, _, err := net.SplitHostPort(address); err != nil {
		return "", err
	}
	return address, nil
}
