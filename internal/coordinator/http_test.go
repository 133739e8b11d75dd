package coordinator

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/hiveagent/internal/config"
	"git.home.luguber.info/inful/hiveagent/internal/foundation/errors"
	"git.home.luguber.info/inful/hiveagent/internal/synchronizer"
)

type capturedRequest struct {
	method     string
	protoMajor int
	header     http.Header
	body       []byte
}

type hivemindStub struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
}

func (h *hivemindStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	h.mu.Lock()
	h.requests = append(h.requests, capturedRequest{
		method:     r.Method,
		protoMajor: r.ProtoMajor,
		header:     r.Header.Clone(),
		body:       body,
	})
	status := h.status
	h.mu.Unlock()
	if status == 0 {
		status = http.StatusAccepted
	}
	w.WriteHeader(status)
	_, _ = w.Write([]byte("quota exceeded\n"))
}

func TestHTTPCoordinator_Deliver(t *testing.T) {
	stub := &hivemindStub{}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c, err := NewHTTPCoordinator(config.HTTPConfig{Endpoint: srv.URL + "/v1/essence", Timeout: "2s", Token: "tok"})
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	p := synchronizer.Payload{ID: "p-9", ContentType: "application/json", Body: []byte(`{"node_id":"n"}`)}
	require.NoError(t, c.Deliver(context.Background(), p))

	require.Len(t, stub.requests, 1)
	got := stub.requests[0]
	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "p-9", got.header.Get(HeaderPayloadID))
	assert.Equal(t, "Bearer tok", got.header.Get("Authorization"))
	assert.Equal(t, p.Body, got.body)
}

func TestHTTPCoordinator_NonSuccessStatusIsError(t *testing.T) {
	stub := &hivemindStub{status: http.StatusTooManyRequests}
	srv := httptest.NewServer(stub)
	defer srv.Close()

	c, err := NewHTTPCoordinator(config.HTTPConfig{Endpoint: srv.URL})
	require.NoError(t, err)

	err = c.Deliver(context.Background(), synchronizer.Payload{ID: "p"})
	require.Error(t, err)
	ce, ok := errors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, errors.CategoryCoordinator, ce.Category())
	status, _ := ce.Context().Get("status")
	assert.Equal(t, http.StatusTooManyRequests, status)
	body, _ := ce.Context().GetString("body")
	assert.Equal(t, "quota exceeded", body)
	assert.Empty(t, stub.requests[0].header.Get("Authorization"))
}

func TestHTTPCoordinator_NegotiatesHTTP2OverTLS(t *testing.T) {
	stub := &hivemindStub{}
	srv := httptest.NewUnstartedServer(stub)
	srv.EnableHTTP2 = true
	srv.StartTLS()
	defer srv.Close()

	pool := x509.NewCertPool()
	pool.AddCert(srv.Certificate())

	c, err := NewHTTPCoordinator(config.HTTPConfig{Endpoint: srv.URL}, WithTLSConfig(&tls.Config{
		RootCAs:    pool,
		MinVersion: tls.VersionTLS12,
	}))
	require.NoError(t, err)
	defer func() { _ = c.Close() }()

	require.NoError(t, c.Deliver(context.Background(), synchronizer.Payload{ID: "h2"}))
	require.Len(t, stub.requests, 1)
	assert.Equal(t, 2, stub.requests[0].protoMajor)
}

func TestHTTPCoordinator_UnreachableEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewHTTPCoordinator(config.HTTPConfig{Endpoint: url, Timeout: "500ms"})
	require.NoError(t, err)
	require.Error(t, c.Deliver(context.Background(), synchronizer.Payload{ID: "p"}))
}

func TestNewHTTPCoordinator_RejectsBadEndpoint(t *testing.T) {
	for _, endpoint := range []string{"", "hive.local/essence", "ftp://hive/essence"} {
		_, err := NewHTTPCoordinator(config.HTTPConfig{Endpoint: endpoint})
		require.Error(t, err, endpoint)
		assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
	}
}

func TestNew_SelectsTransport(t *testing.T) {
	tr, err := New(context.Background(), config.CoordinatorConfig{
		Transport: config.TransportHTTP,
		HTTP:      config.HTTPConfig{Endpoint: "http://127.0.0.1:9/essence"},
	})
	require.NoError(t, err)
	assert.Equal(t, "http", tr.Name())

	_, err = New(context.Background(), config.CoordinatorConfig{Transport: "smoke"})
	require.Error(t, err)
}
