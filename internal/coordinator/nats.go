package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

// publisher is the part of jetstream.JetStream used for delivery.
type publisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSCoordinator publishes payloads to a JetStream subject.
type NATSCoordinator struct {
	conn    *nats.Conn
	js      publisher
	subject string
	timeout time.Duration
}

// NewNATSCoordinator connects to NATS and, when cfg.Stream is set, ensures a
// stream captures the subject.
func NewNATSCoordinator(ctx context.Context, cfg config.NATSConfig) (*NATSCoordinator, error) {
	timeout := cfg.TimeoutDuration()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	conn, err := nats.Connect(cfg.URL,
		nats.Name("hiveagent"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNetwork, "failed to connect to NATS").
			NextTick().
			WithContext("url", cfg.URL).
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if cfg.Stream != "" {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		_, err := js.CreateOrUpdateStream(sctx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "Hivemind essence deliveries",
			Subjects:    []string{cfg.Subject},
			Duplicates:  2 * time.Minute,
		})
		if err != nil {
			conn.Close()
			return nil, errors.WrapError(err, errors.CategoryCoordinator, "failed to ensure JetStream stream").
				WithContext("stream", cfg.Stream).
				Build()
		}
	}

	slog.Info("NATS coordinator initialized",
		logfields.Transport(string(config.TransportNATS)),
		slog.String("url", cfg.URL),
		slog.String("subject", cfg.Subject))

	return &NATSCoordinator{conn: conn, js: js, subject: cfg.Subject, timeout: timeout}, nil
}

// Name identifies the transport.
func (c *NATSCoordinator) Name() string { return string(config.TransportNATS) }

// Deliver publishes p and waits for the JetStream acknowledgement.
func (c *NATSCoordinator) Deliver(ctx context.Context, p synchronizer.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	msg := nats.NewMsg(c.subject)
	msg.Data = p.Body
	msg.Header.Set(HeaderContentType, p.ContentType)
	msg.Header.Set(HeaderPayloadID, p.ID)

	ack, err := c.js.PublishMsg(ctx, msg, jetstream.WithMsgID(p.ID))
	if err != nil {
		return fmt.Errorf("publish essence to %s: %w", c.subject, err)
	}
	if ack != nil && ack.Duplicate {
		slog.Debug("Hivemind already holds essence", slog.String("payload_id", p.ID))
	}
	return nil
}

// Close drains the connection.
func (c *NATSCoordinator) Close() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return fmt.Errorf("drain NATS connection: %w", err)
	}
	return nil
}
