package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/diagnosis/luxsuv-invites/pkg/logger"
	"github.com/go-chi/chi/v5"
)

// ServiceProxy forwards requests to one upstream service.
type ServiceProxy struct {
	name    string
	baseURL string
	client  *http.Client
}

func NewServiceProxy(name, baseURL string) *ServiceProxy {
	return &ServiceProxy{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (p *ServiceProxy) Name() string { return p.name }

// ProxyRequest sends method path?query with body and headers to the upstream.
func (p *ServiceProxy) ProxyRequest(ctx context.Context, method, pathAndQuery string, body io.Reader, headers http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+pathAndQuery, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, values := range headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}
	req.Header.Set("X-Gateway-Forwarded", "true")

	// Paths carry bearer tokens; only the route pattern is logged.
	logger.DebugContext(ctx, "Proxying request",
		"service", p.name,
		"method", method,
		"route", RoutePattern(ctx),
	)

	resp, err := p.client.Do(req)
	if err != nil {
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return nil, fmt.Errorf("%s %s to %s failed: %w", method, RoutePattern(ctx), p.name, err)
	}
	return resp, nil
}

// RoutePattern returns the matched chi pattern, e.g. /v1/tokens/*.
func RoutePattern(ctx context.Context) string {
	if rctx := chi.RouteContext(ctx); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}
