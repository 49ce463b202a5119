package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diagnosis/luxsuv-invites/services/gateway/internal/proxy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardStripsPrefixAndRelays(t *testing.T) {
	var got *http.Request
	var gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotent-Replayed", "true")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	t.Cleanup(upstream.Close)

	h := New(proxy.NewServiceProxy("rsvp", upstream.URL+"/"))
	req := httptest.NewRequest(http.MethodPost, "/v1/links/abc_123/respond?src=email", strings.NewReader(`{"status":"CONFIRMED"}`))
	req.Header.Set("Authorization", "Bearer t")
	req.Header.Set("Connection", "keep-alive")
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	require.NotNil(t, got)
	assert.Equal(t, "/links/abc_123/respond", got.URL.Path)
	assert.Equal(t, "src=email", got.URL.RawQuery)
	assert.Equal(t, `{"status":"CONFIRMED"}`, gotBody)
	assert.Equal(t, "Bearer t", got.Header.Get("Authorization"))
	assert.Equal(t, "true", got.Header.Get("X-Gateway-Forwarded"))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
}

func TestForwardAppendsPeerToForwardedFor(t *testing.T) {
	var got string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Forwarded-For")
	}))
	t.Cleanup(upstream.Close)

	h := New(proxy.NewServiceProxy("rsvp", upstream.URL))
	req := httptest.NewRequest(http.MethodGet, "/v1/tokens/abc", nil)
	req.RemoteAddr = "198.51.100.7:5000"
	req.Header.Set("X-Forwarded-For", "203.0.113.1")
	h.Routes().ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, "203.0.113.1, 198.51.100.7", got, "the real peer is always the right-most hop")
}

func TestForwardUpstreamDown(t *testing.T) {
	upstream := httptest.NewServer(http.NotFoundHandler())
	url := upstream.URL
	upstream.Close()

	h := New(proxy.NewServiceProxy("rsvp", url))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/access/abc", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUnknownRouteIsNotForwarded(t *testing.T) {
	called := false
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	t.Cleanup(upstream.Close)

	h := New(proxy.NewServiceProxy("rsvp", upstream.URL))
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.False(t, called)
}

func TestShouldCopyHeader(t *testing.T) {
	assert.True(t, shouldCopyHeader("Authorization"))
	assert.True(t, shouldCopyHeader("Idempotency-Key"))
	assert.False(t, shouldCopyHeader("Transfer-Encoding"))
	assert.False(t, shouldCopyHeader("connection"))
}
