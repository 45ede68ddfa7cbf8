package main

import (
	"context"
	"errors"
	goos "os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
	"github.com/vacon/signaling/pkg/config"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/monitoring"
	"github.com/vacon/signaling/pkg/network/websocket"
	"github.com/vacon/signaling/pkg/os"
	"github.com/vacon/signaling/pkg/service"
	"github.com/vacon/signaling/pkg/signaling"
)

var Version = "?"

const shutdownTimeout = 10 * time.Second

func main() {
	conf, err := config.NewConfig(goos.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		logger.Default().Fatal().Err(err).Msg("config")
	}
	c := conf.Signaling

	log := logger.NewConsole(c.Debug, "sig", false)
	log.Info().Msgf("version %s", Version)
	if log.GetLevel() < logger.InfoLevel {
		log.Debug().Msgf("config: %+v", conf)
	}

	if c.Lock != "" {
		lock, err := os.NewFileLock(c.Lock)
		if err != nil {
			log.Fatal().Err(err).Msg("lock")
		}
		if err = lock.TryLock(); err != nil {
			log.Fatal().Err(err).Str("path", lock.Path()).Msg("another relay is running")
		}
		defer func() { _ = lock.Unlock() }()
	}

	metrics := signaling.NewMetrics(prometheus.DefaultRegisterer)
	hub := signaling.NewHub(websocket.Options{
		MaxMessageSize: c.Ws.MaxMessageSize,
		PingInterval:   c.Ws.PingInterval,
		WriteTimeout:   c.Ws.WriteTimeout,
	}, metrics, log)

	server, err := signaling.NewHTTPServer(c.Server, hub, log)
	if err != nil {
		log.Fatal().Err(err).Msg("http server init fail")
	}
	log.Info().Msgf("Serving on %s%s<session>", server, signaling.SessionPathPrefix)

	services := service.Group{}
	services.Add(server, hub)
	if c.Monitoring.IsEnabled() {
		mon, err := monitoring.New(c.Monitoring, server.GetHost(), log)
		if err != nil {
			log.Fatal().Err(err).Msg("monitoring init fail")
		}
		services.Add(mon)
	}
	services.Start()

	<-os.ExpectTermination()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := services.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("service shutdown errors")
	}
}
