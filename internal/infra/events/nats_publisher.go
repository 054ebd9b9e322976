package events

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"shortlet-payments/internal/config"
	"shortlet-payments/internal/domain/ports/adapter"
)

var _ adapter.EventPublisher = (*NATSPublisher)(nil)

// NATSPublisher emits outcome events on core NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
	log  *zerolog.Logger
}

func NewNATSPublisher(cfg config.NATSConfig, log *zerolog.Logger) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("nats reconnected")
		}),
	}
	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	log.Info().Str("url", conn.ConnectedUrl()).Msg("nats connected")
	return &NATSPublisher{conn: conn, log: log}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, subject string, data []byte) error {
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.log.Debug().Str("subject", subject).Int("bytes", len(data)).Msg("event published")
	return nil
}

func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

var _ adapter.EventPublisher = (*NoopPublisher)(nil)

// NoopPublisher is used when no NATS URL is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, []byte) error { return nil }
func (NoopPublisher) Close()                                        {}
