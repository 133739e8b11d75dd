package essence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/store"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

// Reader is the read side of the state store the provider needs.
type Reader interface {
	Recent(ctx context.Context, since time.Time) ([]store.Observation, error)
}

// ErrInvalidWindow is returned for a non-positive essence window.
var ErrInvalidWindow = errors.ValidationError("essence window must be positive").Build()

// Provider builds one cycle's Essence from the observations inside its window.
type Provider struct {
	reader   Reader
	identity Identity
	window   time.Duration
	clock    clockwork.Clock
}

// Option configures a Provider.
type Option func(*Provider)

// WithClock overrides the clock used for the window and GeneratedAt.
func WithClock(c clockwork.Clock) Option {
	return func(p *Provider) {
		if c != nil {
			p.clock = c
		}
	}
}

// NewProvider creates a Provider reading from reader.
func NewProvider(reader Reader, identity Identity, window time.Duration, opts ...Option) (*Provider, error) {
	if reader == nil {
		return nil, errors.ValidationError("essence provider requires a store").Build()
	}
	if window <= 0 {
		return nil, ErrInvalidWindow.WithContext("window", window.String())
	}
	p := &Provider{
		reader:   reader,
		identity: identity,
		window:   window,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Build reads the window and assembles an Essence.
func (p *Provider) Build(ctx context.Context) (Essence, error) {
	now := p.clock.Now().UTC()
	obs, err := p.reader.Recent(ctx, now.Add(-p.window))
	if err != nil {
		return Essence{}, fmt.Errorf("read recent observations: %w", err)
	}
	if obs == nil {
		obs = []store.Observation{}
	}
	return Essence{
		NodeID:        p.identity.NodeID,
		Hostname:      p.identity.Hostname,
		AgentVersion:  p.identity.AgentVersion,
		GeneratedAt:   now,
		WindowSeconds: int64(p.window / time.Second),
		Observations:  obs,
		Summary:       Summarize(obs),
	}, nil
}

// Essence implements synchronizer.EssenceProvider.
func (p *Provider) Essence(ctx context.Context) (synchronizer.Payload, error) {
	e, err := p.Build(ctx)
	if err != nil {
		return synchronizer.Payload{}, err
	}
	body, err := json.Marshal(e)
	if err != nil {
		return synchronizer.Payload{}, fmt.Errorf("encode essence: %w", err)
	}
	return synchronizer.Payload{
		ID:          uuid.NewString(),
		ContentType: ContentType,
		Body:        body,
		Entries:     len(e.Observations),
	}, nil
}
