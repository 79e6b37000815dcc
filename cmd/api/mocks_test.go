package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"eventreg/internal/domain/paymentlogs"
	"eventreg/internal/domain/registrations"
	"eventreg/internal/metrics"
	"eventreg/internal/payments"
	"eventreg/internal/ratelimiter"
	"eventreg/internal/registration"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var noopLogger = zap.NewNop().Sugar()

const (
	testRazorpaySecret = "rzp_secret"
	testWebhookSecret  = "rzp_webhook_secret"
	testAdminUser      = "admin"
	testAdminPass      = "hunter2"
)

type mockGateway struct {
	name                string
	InitiatePaymentFunc func(ctx context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error)
	CheckStatusFunc     func(ctx context.Context, orderID string) (payments.PaymentVerifyResponse, error)
}

func (m *mockGateway) Name() string { return m.name }

func (m *mockGateway) InitiatePayment(ctx context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error) {
	return m.InitiatePaymentFunc(ctx, req)
}

func (m *mockGateway) CheckStatus(ctx context.Context, orderID string) (payments.PaymentVerifyResponse, error) {
	return m.CheckStatusFunc(ctx, orderID)
}

func (m *mockGateway) VerifyPayment(ctx context.Context, req payments.PaymentVerifyRequest) (payments.PaymentVerifyResponse, error) {
	return m.CheckStatusFunc(ctx, req.OrderID)
}

func (m *mockGateway) ParseWebhook(ctx context.Context, header http.Header, body []byte) (payments.WebhookEvent, error) {
	return payments.WebhookEvent{}, payments.ErrInvalidSignature
}

type mockMailer struct {
	mu    sync.Mutex
	sent  []string
	block chan struct{}
}

func (m *mockMailer) Send(templateFile, username, email string, data any) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *mockMailer) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type testApp struct {
	app     *application
	handler http.Handler
	store   *registrations.MemoryStore
	gateway *mockGateway
	mailer  *mockMailer
}

// newTestApp wires the real service against an in-memory store, a mocked
// cashfree gateway and a real razorpay adapter (signature checks need no
// network).
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	gw := &mockGateway{
		name: payments.ProviderCashfree,
		InitiatePaymentFunc: func(ctx context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error) {
			return payments.PaymentResponse{
				OrderID:          "ORDER_" + req.ReferenceID + "_1",
				PaymentSessionID: "session_abc",
				Amount:           req.Amount,
				Currency:         req.Currency,
			}, nil
		},
		CheckStatusFunc: func(ctx context.Context, orderID string) (payments.PaymentVerifyResponse, error) {
			return payments.PaymentVerifyResponse{State: "ACTIVE", OrderID: orderID}, nil
		},
	}

	manager := payments.NewPaymentManager()
	manager.RegisterGateway(payments.ProviderCashfree, gw)
	manager.RegisterGateway(payments.ProviderRazorpay, payments.NewRazorpayAdapter("rzp_key", testRazorpaySecret, testWebhookSecret))

	refs, err := registration.NewReferenceGenerator("test-salt")
	require.NoError(t, err)

	m := &mockMailer{}
	event := registration.Event{Name: "Go Workshop", Date: "1 Nov 2026", Time: "7 PM", AdminEmail: "admin@example.com"}
	store := registrations.NewMemoryStore()
	svc := registration.NewService(store, manager, registration.NewNotifier(m, event, noopLogger), refs, event, noopLogger)
	svc.SetPaymentLogs(paymentlogs.NewMemoryLogs())
	promMetrics := metrics.New()
	svc.SetRecorder(promMetrics)

	app := &application{
		config: config{
			env:     "test",
			event:   event,
			payment: paymentConfig{gateway: payments.ProviderCashfree},
			auth:    authConfig{basic: basicConfig{user: testAdminUser, pass: testAdminPass}},
			rateLimiter: ratelimiter.Config{
				Enabled: false,
			},
		},
		logger:       noopLogger,
		registration: svc,
		rateLimiter:  ratelimiter.NewFixedWindowLimiter(2, time.Minute),
		metrics:      promMetrics,
	}

	return &testApp{app: app, handler: app.mount(), store: store, gateway: gw, mailer: m}
}

// sentCount waits for background notifications, then counts sent emails.
func (ta *testApp) sentCount() int {
	_ = ta.app.registration.Wait(context.Background())
	return ta.mailer.Count()
}

func (ta *testApp) do(t *testing.T, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testApp) register(t *testing.T) string {
	t.Helper()

	rr := ta.do(t, http.MethodPost, "/api/register", map[string]string{
		"fullName": "Asha Rao",
		"email":    "asha@example.com",
		"phone":    "+91 98765 43210",
	}, nil)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var resp struct {
		ReferenceID string `json:"referenceId"`
	}
	decode(t, rr, &resp)
	require.NotEmpty(t, resp.ReferenceID)
	return resp.ReferenceID
}

// linkOrder attaches an order to a registration as CreateOrder would.
func (ta *testApp) linkOrder(t *testing.T, referenceID, orderID, gateway string) {
	t.Helper()
	require.NoError(t, ta.store.Update(context.Background(), referenceID, func(r *registrations.Registration) error {
		r.OrderID = orderID
		r.Gateway = gateway
		return nil
	}))
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), v), rr.Body.String())
}

func basicAuth(user, pass string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(user+":"+pass)))
	return h
}
