package proxy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyRequestErrorOmitsToken(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	base := upstream.URL
	upstream.Close()

	p := NewServiceProxy("rsvp", base)
	_, err := p.ProxyRequest(context.Background(), http.MethodGet, "/tokens/mveu5fem_secret", nil, nil)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "mveu5fem_secret")
	assert.Contains(t, err.Error(), "rsvp")
}

func TestProxyRequestForwardsRequestID(t *testing.T) {
	var got *http.Request
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
	}))
	t.Cleanup(upstream.Close)

	p := NewServiceProxy("rsvp", upstream.URL)
	ctx := context.WithValue(context.Background(), logger.RequestIDKey, "req-42")
	resp, err := p.ProxyRequest(ctx, http.MethodGet, "/access/x?a=1", nil, http.Header{"X-Custom": {"v"}})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "/access/x", got.URL.Path)
	assert.Equal(t, "a=1", got.URL.RawQuery)
	assert.Equal(t, "v", got.Header.Get("X-Custom"))
	assert.Equal(t, "true", got.Header.Get("X-Gateway-Forwarded"))
	assert.Equal(t, "req-42", got.Header.Get("X-Request-ID"))
	assert.Equal(t, "unmatched", RoutePattern(context.Background()))
}
