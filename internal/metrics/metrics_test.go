package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body, err := io.ReadAll(rr.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/api/items/1", "/api/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	out := scrape(t, m)
	assert.Contains(t, out, `eventreg_http_requests_total{method="GET",route="/api/items/{id}",status="418"} 2`)
	assert.Contains(t, out, `eventreg_http_request_duration_seconds_count{method="GET",route="/api/items/{id}"} 2`)
}

func TestWorkflowCounters(t *testing.T) {
	m := New()

	m.GatewayCall("razorpay", "verify payment", nil)
	m.GatewayCall("razorpay", "verify payment", errors.New("bad signature"))
	m.PaymentConfirmed("webhook")

	out := scrape(t, m)
	assert.Contains(t, out, `eventreg_gateway_calls_total{gateway="razorpay",op="verify payment",outcome="ok"} 1`)
	assert.Contains(t, out, `eventreg_gateway_calls_total{gateway="razorpay",op="verify payment",outcome="error"} 1`)
	assert.Contains(t, out, `eventreg_payment_confirmations_total{source="webhook"} 1`)
}
