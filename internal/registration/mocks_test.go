package registration

import (
	"context"
	"net/http"
	"sync"

	"eventreg/internal/payments"
)

type mockGateway struct {
	name                string
	InitiatePaymentFunc func(ctx context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error)
	CheckStatusFunc     func(ctx context.Context, orderID string) (payments.PaymentVerifyResponse, error)
	VerifyPaymentFunc   func(ctx context.Context, req payments.PaymentVerifyRequest) (payments.PaymentVerifyResponse, error)
	ParseWebhookFunc    func(ctx context.Context, header http.Header, body []byte) (payments.WebhookEvent, error)
}

func (m *mockGateway) Name() string { return m.name }

func (m *mockGateway) InitiatePayment(ctx context.Context, req payments.PaymentRequest) (payments.PaymentResponse, error) {
	return m.InitiatePaymentFunc(ctx, req)
}

func (m *mockGateway) CheckStatus(ctx context.Context, orderID string) (payments.PaymentVerifyResponse, error) {
	return m.CheckStatusFunc(ctx, orderID)
}

func (m *mockGateway) VerifyPayment(ctx context.Context, req payments.PaymentVerifyRequest) (payments.PaymentVerifyResponse, error) {
	return m.VerifyPaymentFunc(ctx, req)
}

func (m *mockGateway) ParseWebhook(ctx context.Context, header http.Header, body []byte) (payments.WebhookEvent, error) {
	return m.ParseWebhookFunc(ctx, header, body)
}

type sentEmail struct {
	Template string
	Name     string
	Email    string
}

type mockMailer struct {
	mu      sync.Mutex
	sent    []sentEmail
	SendErr error
	// Block, when set, stalls every send until it is closed.
	Block chan struct{}
}

func (m *mockMailer) Send(templateFile, username, email string, data any) error {
	if m.Block != nil {
		<-m.Block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, sentEmail{Template: templateFile, Name: username, Email: email})
	return nil
}

func (m *mockMailer) Sent() []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentEmail(nil), m.sent...)
}
