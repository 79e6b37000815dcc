package payments

import (
	"context"
	"net/http"
)

// PaymentGateway defines a common interface for all payment providers
type PaymentGateway interface {
	Name() string
	// InitiatePayment creates an order on the provider side.
	InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error)
	// CheckStatus looks an order up on the provider (pull confirmation).
	CheckStatus(ctx context.Context, orderID string) (PaymentVerifyResponse, error)
	// VerifyPayment checks a client submitted payment confirmation.
	VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error)
	// ParseWebhook authenticates and decodes a provider push notification.
	ParseWebhook(ctx context.Context, header http.Header, body []byte) (WebhookEvent, error)
}
