package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/vacon/signaling/pkg/com"
	"github.com/vacon/signaling/pkg/logger"
	"github.com/vacon/signaling/pkg/network"
	"github.com/vacon/signaling/pkg/network/webrtc"
	"github.com/vacon/signaling/pkg/signaling"
)

const (
	negotiationTimeout = 30 * time.Second
	pingInterval       = time.Second
	dialRetryMax       = 10 * time.Second
)

// peer: joins a relay session and sets up a WebRTC data channel with
// whoever else joins it.
func peerCmd() *cobra.Command {
	var (
		url    string
		secret string
		stun   []string
	)
	cmd := &cobra.Command{
		Use:   "peer",
		Short: "Connect to another peer through the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				return fmt.Errorf("session secret required (-s)")
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer cancel()

			api, err := webrtc.NewApiFactory(webrtc.Options{IceServers: stun, LogLevel: logger.WarnLevel}, log)
			if err != nil {
				return err
			}
			id := com.NewUid()
			plog := log.Extend(log.With().Str(logger.PeerField, id.Short()))
			peer := webrtc.New(plog, api)
			defer peer.Disconnect()
			peer.OnOpen = func() {
				if err := peer.Send("hello from " + id.Short()); err != nil {
					plog.Warn().Err(err).Msg("hello")
				}
			}
			peer.OnMessage = func(data []byte) { fmt.Fprintf(cmd.OutOrStdout(), "> %s\n", data) }

			client, err := dial(ctx, url, secret, plog)
			if err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			plog.Info().Msgf("Joined %s", signaling.SessionURL(url, secret))
			err = negotiate(ctx, client, peer, plog)
			_ = client.Close()
			if err != nil {
				return err
			}

			ticker := time.NewTicker(pingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					_ = peer.Send("ping " + time.Now().Format(time.StampMilli))
				case <-peer.Done():
					plog.Info().Msg("Connection lost")
					return nil
				case <-ctx.Done():
					return nil
				}
			}
		},
	}
	cmd.Flags().StringVarP(&url, "url", "u", "ws://127.0.0.1:8000/v1/ooo", "relay address without the session")
	cmd.Flags().StringVarP(&secret, "secret", "s", "", "session secret, both peers have to use the same one")
	cmd.Flags().StringSliceVar(&stun, "stun", []string{"stun:stun.l.google.com:19302"}, "STUN servers")
	return cmd
}

// dial connects to the relay, retrying while it is not there.
func dial(ctx context.Context, url, secret string, log *logger.Logger) (*signaling.Client, error) {
	retry := network.NewRetry(time.Second, dialRetryMax)
	for {
		client, err := signaling.Dial(ctx, url, secret)
		if err == nil {
			return client, nil
		}
		log.Warn().Err(err).Msgf("Relay is not available, retry in %v", retry.Time())
		if err = retry.Fail(ctx); err != nil {
			return nil, err
		}
	}
}

// negotiate runs the offer/answer exchange over the relay. The peer
// told to start makes the offer, the other one answers it.
func negotiate(ctx context.Context, client *signaling.Client, peer *webrtc.Peer, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, negotiationTimeout)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = client.Close()
	}()

	for {
		m, data, err := client.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("relay: %w", err)
		}
		switch m.Type {
		case signaling.StartSession:
			log.Info().Msg("Someone joined, making an offer")
			sdp, err := peer.Offer(ctx)
			if err != nil {
				return err
			}
			if err = client.Send(signaling.Message{Type: signaling.Offer, Sdp: sdp}); err != nil {
				return err
			}
		case signaling.Offer:
			log.Info().Msg("Got an offer")
			sdp, err := peer.Answer(ctx, m.Sdp)
			if err != nil {
				return err
			}
			return client.Send(signaling.Message{Type: signaling.Answer, Sdp: sdp})
		case signaling.Answer:
			log.Info().Msg("Got an answer")
			return peer.SetAnswer(m.Sdp)
		default:
			log.Debug().Msgf("Skipped message %s", data)
		}
	}
}
