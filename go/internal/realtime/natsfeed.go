package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// NATSFeedConfig holds configuration for the JetStream change feed.
type NATSFeedConfig struct {
	URL               string
	StreamName        string
	MaxReconnects     int
	ReconnectWait     time.Duration
	InactiveThreshold time.Duration // ephemeral consumer cleanup after detach
}

// DefaultNATSFeedConfig returns the defaults used by the player client.
func DefaultNATSFeedConfig() NATSFeedConfig {
	return NATSFeedConfig{
		URL:               nats.DefaultURL,
		StreamName:        "CONTEST_CHANGES",
		MaxReconnects:     -1,
		ReconnectWait:     2 * time.Second,
		InactiveThreshold: time.Minute,
	}
}

// NATSFeed consumes contest change events from a JetStream stream. Each
// Subscribe creates an ephemeral consumer filtered to one (kind, key) subject
// so detaching one slot never disturbs another.
type NATSFeed struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	stream jetstream.Stream
	config NATSFeedConfig
}

func NewNATSFeed(ctx context.Context, config NATSFeedConfig) (*NATSFeed, error) {
	opts := []nats.Option{
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	stream, err := js.Stream(ctx, config.StreamName)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("get stream: %w", err)
	}

	return &NATSFeed{
		nc:     nc,
		js:     js,
		stream: stream,
		config: config,
	}, nil
}

// Subscribe attaches an ephemeral consumer for one (kind, key) subject.
func (f *NATSFeed) Subscribe(ctx context.Context, kind EntityKind, key string, fn Handler) (Unsubscribe, error) {
	subject := Subject(kind, key)

	consumer, err := f.stream.CreateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject:     subject,
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		AckPolicy:         jetstream.AckExplicitPolicy,
		InactiveThreshold: f.config.InactiveThreshold,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer for %s: %w", subject, err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		var event ChangeEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			// Malformed payload: log and ack so it is not redelivered forever.
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to decode change event")
			if ackErr := msg.Ack(); ackErr != nil {
				log.Error().Err(ackErr).Msg("failed to ACK malformed message")
			}
			return
		}

		dispatch(fn, event)

		if err := msg.Ack(); err != nil {
			log.Error().Err(err).Str("subject", msg.Subject()).Msg("failed to ACK message")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("start consumer for %s: %w", subject, err)
	}

	log.Debug().Str("subject", subject).Msg("subscribed to change feed")

	var once sync.Once
	return func() {
		once.Do(func() {
			consumeCtx.Stop()
			log.Debug().Str("subject", subject).Msg("unsubscribed from change feed")
		})
	}, nil
}

// Close shuts down the underlying NATS connection.
func (f *NATSFeed) Close() {
	if f.nc != nil {
		f.nc.Close()
	}
}
