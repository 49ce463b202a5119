package handlers

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/diagnosis/luxsuv-invites/pkg/response"
	"github.com/diagnosis/luxsuv-invites/services/gateway/internal/proxy"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	rsvpProxy *proxy.ServiceProxy
}

func New(rsvpProxy *proxy.ServiceProxy) *Handlers {
	return &Handlers{rsvpProxy: rsvpProxy}
}

// Routes exposes the invitation API under /v1. Authorization is left to the
// rsvp service, which knows which routes need an owner.
func (h *Handlers) Routes() chi.Router {
	r := chi.NewRouter()
	r.Route("/v1", func(r chi.Router) {
		r.Handle("/invitations", h.forward(h.rsvpProxy))
		r.Handle("/invitations/*", h.forward(h.rsvpProxy))
		r.Handle("/guests/*", h.forward(h.rsvpProxy))
		r.Handle("/links", h.forward(h.rsvpProxy))
		r.Handle("/links/*", h.forward(h.rsvpProxy))
		r.Handle("/tokens/*", h.forward(h.rsvpProxy))
		r.Handle("/access/*", h.forward(h.rsvpProxy))
	})
	return r
}

// forward strips the /v1 prefix and relays the request and response verbatim.
func (h *Handlers) forward(p *proxy.ServiceProxy) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/v1")
		if r.URL.RawQuery != "" {
			path += "?" + r.URL.RawQuery
		}

		headers := make(http.Header)
		for key, values := range r.Header {
			if shouldCopyHeader(key) {
				headers[key] = values
			}
		}
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			if prior := r.Header.Get("X-Forwarded-For"); prior != "" {
				host = prior + ", " + host
			}
			headers.Set("X-Forwarded-For", host)
		}

		resp, err := p.ProxyRequest(r.Context(), r.Method, path, r.Body, headers)
		if err != nil {
			logger.ErrorContext(r.Context(), "Service proxy error", "service", p.Name(), "error", err, "route", proxy.RoutePattern(r.Context()))
			response.WriteError(w, http.StatusServiceUnavailable, "Service unavailable", "SERVICE_UNAVAILABLE")
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			if !shouldCopyHeader(key) {
				continue
			}
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.ErrorContext(r.Context(), "Failed to copy response body", "error", err)
		}
	}
}

var hopByHop = map[string]bool{
	"connection":          true,
	"keep-alive":          true,
	"proxy-connection":    true,
	"proxy-authenticate":  true,
	"proxy-authorization": true,
	"te":                  true,
	"trailer":             true,
	"transfer-encoding":   true,
	"upgrade":             true,
	"host":                true,
}

func shouldCopyHeader(key string) bool {
	return !hopByHop[strings.ToLower(key)]
}
