package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lexiqai/meeting-listener/internal/resilience"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSPublisher publishes events as JSON on <subject>.<type>
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  zerolog.Logger
}

// ConnectNATS dials the server, retrying with backoff until reconnect gives up
func ConnectNATS(ctx context.Context, url, subject string, reconnect *resilience.ReconnectConfig, logger zerolog.Logger) (*NATSPublisher, error) {
	options := []nats.Option{
		nats.Name("meeting-listener"),
		nats.Timeout(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	var conn *nats.Conn
	err := resilience.Reconnect(ctx, func() error {
		var err error
		conn, err = nats.Connect(url, options...)
		return err
	}, reconnect, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	logger.Info().Str("url", url).Str("subject", subject).Msg("Connected to NATS")
	return &NATSPublisher{conn: conn, subject: subject, logger: logger}, nil
}

// Subject returns the subject an event of type typ is published on
func (p *NATSPublisher) Subject(typ string) string {
	return p.subject + "." + typ
}

func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.conn.Publish(p.Subject(ev.Type), payload); err != nil {
		return fmt.Errorf("nats publish: %w", err)
	}
	return nil
}

// Healthy reports whether the connection is currently up
func (p *NATSPublisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.logger.Info().Msg("Closing NATS connection")
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
