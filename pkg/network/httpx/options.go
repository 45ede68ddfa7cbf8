package httpx

import (
	"time"

	"github.com/vacon/signaling/pkg/config"
	"github.com/vacon/signaling/pkg/logger"
)

type (
	Options struct {
		Https             bool
		HttpsCert         string
		HttpsKey          string
		HttpsDomain       string
		HttpsReload       bool
		PortRoll          bool
		IdleTimeout       time.Duration
		ReadHeaderTimeout time.Duration
		Logger            *logger.Logger
	}
	Option func(*Options)
)

func (o *Options) override(options ...Option) {
	for _, opt := range options {
		opt(o)
	}
}

func (o *Options) IsAutoHttpsCert() bool { return o.HttpsCert == "" }

func WithPortRoll(roll bool) Option           { return func(opts *Options) { opts.PortRoll = roll } }
func WithLogger(log *logger.Logger) Option    { return func(opts *Options) { opts.Logger = log } }
func WithServerConfig(conf config.Server) Option {
	return func(opts *Options) {
		opts.Https = conf.Https
		opts.HttpsCert = conf.Tls.HttpsCert
		opts.HttpsKey = conf.Tls.HttpsKey
		opts.HttpsDomain = conf.Tls.Domain
		opts.HttpsReload = conf.Tls.Reload
		opts.PortRoll = conf.PortRoll
	}
}
