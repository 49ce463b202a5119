package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentHandlerUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(InstrumentHandler)
	r.Get("/links/{token}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	req := httptest.NewRequest(http.MethodGet, "/links/secret-token", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/links/{token}", "410")))
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(linksSwept)
	Sweep(3, 10*time.Millisecond)
	assert.Equal(t, before+3, testutil.ToFloat64(linksSwept))

	failed := testutil.ToFloat64(sweepFailures)
	SweepFailed()
	assert.Equal(t, failed+1, testutil.ToFloat64(sweepFailures))

	LinkConsumption("quota_exhausted")
	assert.GreaterOrEqual(t, testutil.ToFloat64(linkConsumptions.WithLabelValues("quota_exhausted")), 1.0)
}

func TestHandlerExposesNamespace(t *testing.T) {
	LinkIssued()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "invites_links_issued_total"))
}
