package httpapi

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-gavel-ratings/internal/application"
)

// TestServer_ServeAndShutdown serves until the context is canceled and then
// returns cleanly.
func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "pong")
	})
	srv := NewServer(application.ServerConfig{Addr: ln.Addr().String()}, handler, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, "pong", string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

// TestServer_RunReportsListenErrors fails fast on an unusable address.
func TestServer_RunReportsListenErrors(t *testing.T) {
	srv := NewServer(application.ServerConfig{Addr: "256.0.0.1:bad"}, http.NotFoundHandler(), zerolog.Nop())
	assert.Error(t, srv.Run(context.Background()))
}
