package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[key], nil
}

func (m *memoryStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func TestIdempotencyReplaysStatusAndBody(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	calls := 0

	r := chi.NewRouter()
	r.Use(IdempotencyMiddleware(store, time.Hour, nil))
	r.Post("/links", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"token":"abc"}`))
	})

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/links", nil)
		req.Header.Set("Idempotency-Key", "key-1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"token":"abc"}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)

	req := httptest.NewRequest(http.MethodPost, "/links", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 2, calls, "requests without a key are never replayed")
}

func TestIdempotencyDoesNotCacheFailures(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	calls := 0

	h := IdempotencyMiddleware(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusConflict)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/links/x/respond", nil)
		req.Header.Set("Idempotency-Key", "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	calls := 0
	h := IdempotencyMiddleware(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		w.Write(body)
	}))

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/links/x/respond", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "retry-1")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"first_name":"Ana"}`)
	require.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, `{"first_name":"Ana"}`, first.Body.String(), "handler sees the original body")

	rec := send(`{"first_name":"Mallory"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "IDEMPOTENCY_KEY_REUSED")
	assert.NotContains(t, rec.Body.String(), "Ana")

	rec = send(`{"first_name":"Ana"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "true", rec.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, 1, calls)
}

func TestIdempotencyIsScopedPerCaller(t *testing.T) {
	store := &memoryStore{data: map[string]string{}}
	calls := 0
	scope := func(r *http.Request) string { return r.Header.Get("X-Owner") }
	h := IdempotencyMiddleware(store, time.Hour, scope)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"owner":%q}`, r.Header.Get("X-Owner"))
	}))

	send := func(owner string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/links", strings.NewReader(`{}`))
		req.Header.Set("Idempotency-Key", "retry-1")
		req.Header.Set("X-Owner", owner)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	send("a")
	rec := send("b")
	assert.Empty(t, rec.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"owner":"b"}`, rec.Body.String())
	assert.Equal(t, 2, calls)
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/tokens/x", nil)
		req.RemoteAddr = ip + ":4000"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
	assert.Equal(t, http.StatusOK, send("1.1.1.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("1.1.1.1"))
	assert.Equal(t, http.StatusOK, send("2.2.2.2"))
}

func TestRateLimiterIgnoresSpoofedForwardedFor(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	h := rl.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	limited := 0
	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/tokens/guess", nil)
		req.RemoteAddr = "198.51.100.7:5000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.GreaterOrEqual(t, limited, 45)
}

func TestClientIP(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	require.NoError(t, rl.TrustProxies("10.0.0.0/8", "192.0.2.10"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	assert.Equal(t, "198.51.100.1", rl.clientIP(req), "untrusted peers cannot claim an address")

	req.RemoteAddr = "10.1.2.3:1234"
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.9, 192.0.2.10")
	assert.Equal(t, "203.0.113.9", rl.clientIP(req), "right-most untrusted hop wins")

	req.Header.Del("X-Forwarded-For")
	assert.Equal(t, "10.1.2.3", rl.clientIP(req))

	assert.Error(t, rl.TrustProxies("not-a-cidr"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.idleTTL = 0
	rl.getLimiter("a")
	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, rl.Cleanup())
}

func TestHealth(t *testing.T) {
	h := Health(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestRequestIDPropagates(t *testing.T) {
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
