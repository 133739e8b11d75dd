package coordinator

import (
	"context"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

// Header names set on every delivery.
const (
	HeaderPayloadID   = "X-Hive-Payload-Id"
	HeaderContentType = "Content-Type"
)

// Transport is a Coordinator that owns a connection.
type Transport interface {
	synchronizer.Coordinator
	Name() string
	Close() error
}

// New builds the transport selected by cfg.
func New(ctx context.Context, cfg config.CoordinatorConfig) (Transport, error) {
	switch cfg.Transport {
	case config.TransportNATS:
		return NewNATSCoordinator(ctx, cfg.NATS)
	case config.TransportHTTP:
		return NewHTTPCoordinator(cfg.HTTP)
	default:
		return nil, errors.ConfigError("unknown coordinator transport").
			WithContext("transport", string(cfg.Transport)).
			Build()
	}
}
