package coordinator

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/logfields"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

const maxErrorBody = 4 << 10

// HTTPCoordinator POSTs payloads to a Hivemind endpoint.
type HTTPCoordinator struct {
	client   *http.Client
	endpoint string
	token    string
}

// HTTPOption configures an HTTPCoordinator.
type HTTPOption func(*httpOptions)

type httpOptions struct {
	tlsConfig *tls.Config
	client    *http.Client
}

// WithTLSConfig sets the client TLS configuration.
func WithTLSConfig(c *tls.Config) HTTPOption {
	return func(o *httpOptions) { o.tlsConfig = c }
}

// WithHTTPClient replaces the client entirely.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(o *httpOptions) { o.client = c }
}

// NewHTTPCoordinator validates the endpoint and builds an HTTP/2-capable client.
func NewHTTPCoordinator(cfg config.HTTPConfig, opts ...HTTPOption) (*HTTPCoordinator, error) {
	u, err := url.Parse(cfg.Endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.ConfigError("coordinator endpoint must be an absolute http or https URL").
			WithContext("endpoint", cfg.Endpoint).
			Build()
	}

	var o httpOptions
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			TLSClientConfig:     o.tlsConfig,
			MaxIdleConns:        4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, errors.WrapError(err, errors.CategoryInternal, "failed to configure HTTP/2 transport").Build()
		}
		timeout := cfg.TimeoutDuration()
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Transport: transport, Timeout: timeout}
	}

	slog.Info("HTTP coordinator initialized",
		logfields.Transport(string(config.TransportHTTP)),
		slog.String("endpoint", u.Redacted()))

	return &HTTPCoordinator{client: client, endpoint: cfg.Endpoint, token: cfg.Token}, nil
}

// Name identifies the transport.
func (c *HTTPCoordinator) Name() string { return string(config.TransportHTTP) }

// Deliver POSTs p. Any non-2xx status is an error.
func (c *HTTPCoordinator) Deliver(ctx context.Context, p synchronizer.Payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(p.Body))
	if err != nil {
		return fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set(HeaderContentType, p.ContentType)
	req.Header.Set(HeaderPayloadID, p.ID)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("deliver essence: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.CoordinatorError(fmt.Sprintf("hivemind rejected essence: %s", resp.Status)).
			WithContext("status", resp.StatusCode).
			WithContext("body", string(bytes.TrimSpace(body))).
			Build()
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return nil
}

// Close releases idle connections.
func (c *HTTPCoordinator) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
