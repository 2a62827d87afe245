package download

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConnectivityReachableHost(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	host := server.Listener.Addr().String()
	assert.True(t, CheckConnectivity(context.Background(), host))
}

func TestCheckConnectivityUnreachablePort(t *testing.T) {
	// Grab a port that is guaranteed closed.
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.False(t, CheckConnectivity(ctx, addr))
}

func TestCheckConnectivityBadHost(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.False(t, CheckConnectivity(ctx, "host.invalid"))
}

func TestSplitHostPort(t *testing.T) {
	h, p := splitHostPort("example.com")
	assert.Equal(t, "example.com", h)
	assert.Equal(t, "443", p)

	h, p = splitHostPort("example.com:8080")
	assert.Equal(t, "example.com", h)
	assert.Equal(t, "8080", p)
}
