package payments

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
)

type RazorpayAdapter struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	opts          options
}

func NewRazorpayAdapter(keyID, keySecret, webhookSecret string, opts ...Option) *RazorpayAdapter {
	return &RazorpayAdapter{
		KeyID:         keyID,
		KeySecret:     keySecret,
		WebhookSecret: webhookSecret,
		opts:          newOptions(opts),
	}
}

func (r *RazorpayAdapter) Name() string { return ProviderRazorpay }

func (r *RazorpayAdapter) baseURL() string {
	if r.opts.baseURL != "" {
		return r.opts.baseURL
	}
	return "https://api.razorpay.com"
}

func (r *RazorpayAdapter) credentials() error {
	return requireCredentials(ProviderRazorpay, map[string]string{
		"key id":     r.KeyID,
		"key secret": r.KeySecret,
	})
}

func (r *RazorpayAdapter) headers(h http.Header) {
	creds := base64.StdEncoding.EncodeToString([]byte(r.KeyID + ":" + r.KeySecret))
	h.Set("Authorization", "Basic "+creds)
}

func (r *RazorpayAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := r.credentials(); err != nil {
		return PaymentResponse{}, err
	}

	// Razorpay amounts are in the smallest currency unit (paise).
	amountPaise := int64(math.Round(req.Amount * 100))

	payload := map[string]any{
		"amount":   amountPaise,
		"currency": req.Currency,
		"receipt":  req.ReferenceID,
		"notes": map[string]string{
			"referenceId": req.ReferenceID,
			"fullName":    req.CustomerName,
			"email":       req.CustomerEmail,
			"phone":       req.CustomerPhone,
		},
	}

	raw, _, err := doJSON(ctx, r.opts.httpClient, ProviderRazorpay, "create order",
		http.MethodPost, r.baseURL()+"/v1/orders", payload, r.headers)
	if err != nil {
		return PaymentResponse{}, err
	}

	var res struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Status   string `json:"status"`
		Receipt  string `json:"receipt"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return PaymentResponse{}, &RequestError{Provider: ProviderRazorpay, Op: "create order", Payload: string(raw), Err: err}
	}
	if res.ID == "" {
		return PaymentResponse{}, &RequestError{Provider: ProviderRazorpay, Op: "create order", Payload: string(raw), Err: errors.New("response has no order id")}
	}

	return PaymentResponse{
		OrderID:  res.ID,
		KeyID:    r.KeyID,
		Amount:   req.Amount,
		Currency: req.Currency,
		Data: map[string]string{
			"amount_paise": fmt.Sprintf("%d", res.Amount),
			"status":       res.Status,
			"receipt":      res.Receipt,
		},
	}, nil
}

func (r *RazorpayAdapter) CheckStatus(ctx context.Context, orderID string) (PaymentVerifyResponse, error) {
	if err := r.credentials(); err != nil {
		return PaymentVerifyResponse{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentVerifyResponse{}, fmt.Errorf("razorpay status requires order id")
	}

	orderURL := r.baseURL() + "/v1/orders/" + url.PathEscape(orderID)
	raw, status, err := doJSON(ctx, r.opts.httpClient, ProviderRazorpay, "get order",
		http.MethodGet, orderURL, nil, r.headers)
	if err != nil {
		return PaymentVerifyResponse{}, err
	}

	var res struct {
		ID     string `json:"id"`
		Status string `json:"status"` // created, attempted, paid
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return PaymentVerifyResponse{}, &RequestError{Provider: ProviderRazorpay, Op: "get order", StatusCode: status, Payload: string(raw), Err: err}
	}

	state := strings.ToLower(strings.TrimSpace(res.Status))
	out := PaymentVerifyResponse{
		Success:  state == "paid",
		State:    state,
		Terminal: state == "paid",
		OrderID:  orderID,
		Raw: map[string]any{
			"http_status": status,
			"body":        json.RawMessage(raw),
		},
	}

	if out.Success {
		txID, err := r.capturedPayment(ctx, orderURL)
		if err != nil || txID == "" {
			txID = orderID
		}
		out.TransactionID = txID
	}
	return out, nil
}

func (r *RazorpayAdapter) capturedPayment(ctx context.Context, orderURL string) (string, error) {
	raw, _, err := doJSON(ctx, r.opts.httpClient, ProviderRazorpay, "get order payments",
		http.MethodGet, orderURL+"/payments", nil, r.headers)
	if err != nil {
		return "", err
	}

	var res struct {
		Items []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"items"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", err
	}
	for _, p := range res.Items {
		if p.Status == "captured" {
			return p.ID, nil
		}
	}
	return "", nil
}

// VerifyPayment checks the checkout signature, hex(HMAC-SHA256(orderId|paymentId))
// keyed with the key secret. No network call is made.
func (r *RazorpayAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	if err := requireCredentials(ProviderRazorpay, map[string]string{"key secret": r.KeySecret}); err != nil {
		return PaymentVerifyResponse{}, err
	}

	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	if orderID == "" || paymentID == "" {
		return PaymentVerifyResponse{Success: false}, ErrInvalidSignature
	}

	want := SignHex(r.KeySecret, orderID, "|", paymentID)
	if !signatureEqual(want, strings.TrimSpace(req.Signature)) {
		return PaymentVerifyResponse{Success: false, OrderID: orderID}, ErrInvalidSignature
	}

	return PaymentVerifyResponse{
		Success:       true,
		State:         "paid",
		Terminal:      true,
		OrderID:       orderID,
		TransactionID: paymentID,
	}, nil
}

type razorpayWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhook verifies X-Razorpay-Signature, hex(HMAC-SHA256(raw body)) keyed
// with the webhook secret configured on the Razorpay dashboard.
func (r *RazorpayAdapter) ParseWebhook(ctx context.Context, header http.Header, body []byte) (WebhookEvent, error) {
	if r.opts.verifyWebhook {
		if err := requireCredentials(ProviderRazorpay, map[string]string{"webhook secret": r.WebhookSecret}); err != nil {
			return WebhookEvent{}, err
		}
		want := SignHex(r.WebhookSecret, string(body))
		if !signatureEqual(want, header.Get("X-Razorpay-Signature")) {
			return WebhookEvent{}, ErrInvalidSignature
		}
	}

	var p razorpayWebhook
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, fmt.Errorf("razorpay webhook decode: %w", err)
	}

	pay := p.Payload.Payment.Entity
	orderID := pay.OrderID
	if orderID == "" {
		orderID = p.Payload.Order.Entity.ID
	}

	ev := WebhookEvent{
		Provider:      ProviderRazorpay,
		Type:          p.Event,
		OrderID:       orderID,
		TransactionID: pay.ID,
		Status:        pay.Status,
	}
	switch p.Event {
	case "payment.captured":
		ev.Paid = pay.Status == "captured"
	case "order.paid":
		ev.Paid = true
		if ev.Status == "" {
			ev.Status = p.Payload.Order.Entity.Status
		}
	}
	return ev, nil
}
