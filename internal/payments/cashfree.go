package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
)

const cashfreeAPIVersion = "2023-08-01"

type CashfreeAdapter struct {
	AppID        string
	SecretKey    string
	ReturnURL    string
	IsProduction bool
	opts         options
	seq          atomic.Uint64
}

func NewCashfreeAdapter(appID, secret, returnURL string, isProd bool, opts ...Option) *CashfreeAdapter {
	return &CashfreeAdapter{
		AppID:        appID,
		SecretKey:    secret,
		ReturnURL:    returnURL,
		IsProduction: isProd,
		opts:         newOptions(opts),
	}
}

func (c *CashfreeAdapter) Name() string { return ProviderCashfree }

func (c *CashfreeAdapter) baseURL() string {
	if c.opts.baseURL != "" {
		return c.opts.baseURL
	}
	if c.IsProduction {
		return "https://api.cashfree.com/pg"
	}
	return "https://sandbox.cashfree.com/pg"
}

func (c *CashfreeAdapter) credentials() error {
	return requireCredentials(ProviderCashfree, map[string]string{
		"app id":     c.AppID,
		"secret key": c.SecretKey,
	})
}

func (c *CashfreeAdapter) headers(h http.Header) {
	h.Set("x-client-id", c.AppID)
	h.Set("x-client-secret", c.SecretKey)
	h.Set("x-api-version", cashfreeAPIVersion)
}

// OrderID builds the merchant side order id for a registration. Every attempt
// gets a fresh id so Cashfree never rejects a retry as a duplicate; the
// sequence keeps ids apart when two attempts share a millisecond.
func (c *CashfreeAdapter) OrderID(referenceID string) string {
	return fmt.Sprintf("ORDER_%s_%d_%d", referenceID, c.opts.now().UnixMilli(), c.seq.Add(1))
}

func (c *CashfreeAdapter) InitiatePayment(ctx context.Context, req PaymentRequest) (PaymentResponse, error) {
	if err := c.credentials(); err != nil {
		return PaymentResponse{}, err
	}

	orderID := c.OrderID(req.ReferenceID)
	payload := map[string]any{
		"order_id":       orderID,
		"order_amount":   req.Amount,
		"order_currency": req.Currency,
		"order_note":     req.ProductName,
		"customer_details": map[string]string{
			"customer_id":    req.ReferenceID,
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
			"customer_phone": req.CustomerPhone,
		},
	}
	if c.ReturnURL != "" {
		payload["order_meta"] = map[string]string{
			"return_url": c.ReturnURL + "?order_id={order_id}",
		}
	}

	raw, _, err := doJSON(ctx, c.opts.httpClient, ProviderCashfree, "create order",
		http.MethodPost, c.baseURL()+"/orders", payload, c.headers)
	if err != nil {
		return PaymentResponse{}, err
	}

	var res struct {
		CfOrderID        json.RawMessage `json:"cf_order_id"`
		OrderID          string          `json:"order_id"`
		PaymentSessionID string          `json:"payment_session_id"`
		OrderStatus      string          `json:"order_status"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return PaymentResponse{}, &RequestError{Provider: ProviderCashfree, Op: "create order", Payload: string(raw), Err: err}
	}
	if res.OrderID == "" {
		res.OrderID = orderID
	}

	return PaymentResponse{
		OrderID:          res.OrderID,
		PaymentSessionID: res.PaymentSessionID,
		Amount:           req.Amount,
		Currency:         req.Currency,
		Data: map[string]string{
			"cf_order_id":  rawID(res.CfOrderID),
			"order_status": res.OrderStatus,
			"environment":  c.environment(),
		},
	}, nil
}

func (c *CashfreeAdapter) environment() string {
	if c.IsProduction {
		return "production"
	}
	return "sandbox"
}

func (c *CashfreeAdapter) CheckStatus(ctx context.Context, orderID string) (PaymentVerifyResponse, error) {
	if err := c.credentials(); err != nil {
		return PaymentVerifyResponse{}, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentVerifyResponse{}, fmt.Errorf("cashfree status requires order id")
	}

	orderURL := c.baseURL() + "/orders/" + url.PathEscape(orderID)
	raw, status, err := doJSON(ctx, c.opts.httpClient, ProviderCashfree, "get order",
		http.MethodGet, orderURL, nil, c.headers)
	if err != nil {
		return PaymentVerifyResponse{}, err
	}

	var res struct {
		CfOrderID   json.RawMessage `json:"cf_order_id"`
		OrderID     string          `json:"order_id"`
		OrderStatus string          `json:"order_status"` // ACTIVE, PAID, EXPIRED, TERMINATED, TERMINATION_REQUESTED
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return PaymentVerifyResponse{}, &RequestError{Provider: ProviderCashfree, Op: "get order", StatusCode: status, Payload: string(raw), Err: err}
	}

	state := strings.ToUpper(strings.TrimSpace(res.OrderStatus))
	out := PaymentVerifyResponse{
		Success: state == "PAID",
		State:   state,
		OrderID: orderID,
		Raw: map[string]any{
			"http_status": status,
			"body":        json.RawMessage(raw),
		},
	}
	switch state {
	case "PAID", "EXPIRED", "TERMINATED":
		out.Terminal = true
	}

	if out.Success {
		txID, err := c.successfulPayment(ctx, orderURL)
		if err != nil || txID == "" {
			// the order itself is paid; fall back to the Cashfree order reference
			txID = rawID(res.CfOrderID)
		}
		if txID == "" {
			txID = orderID
		}
		out.TransactionID = txID
	}

	return out, nil
}

func (c *CashfreeAdapter) successfulPayment(ctx context.Context, orderURL string) (string, error) {
	raw, _, err := doJSON(ctx, c.opts.httpClient, ProviderCashfree, "get order payments",
		http.MethodGet, orderURL+"/payments", nil, c.headers)
	if err != nil {
		return "", err
	}

	var payments []struct {
		CfPaymentID   json.RawMessage `json:"cf_payment_id"`
		PaymentStatus string          `json:"payment_status"`
	}
	if err := json.Unmarshal(raw, &payments); err != nil {
		return "", err
	}
	for _, p := range payments {
		if strings.EqualFold(p.PaymentStatus, "SUCCESS") {
			return rawID(p.CfPaymentID), nil
		}
	}
	return "", nil
}

// VerifyPayment for Cashfree has no client signature to check, so the order
// is looked up on the provider instead.
func (c *CashfreeAdapter) VerifyPayment(ctx context.Context, req PaymentVerifyRequest) (PaymentVerifyResponse, error) {
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" {
		orderID = strings.TrimSpace(req.Data["order_id"])
	}
	return c.CheckStatus(ctx, orderID)
}

type cashfreeWebhook struct {
	Type      string `json:"type"`
	EventTime string `json:"event_time"`
	Data      struct {
		Order struct {
			OrderID string `json:"order_id"`
		} `json:"order"`
		Payment struct {
			CfPaymentID   json.RawMessage `json:"cf_payment_id"`
			PaymentStatus string          `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// ParseWebhook verifies x-webhook-signature, which Cashfree computes as
// base64(HMAC-SHA256(timestamp + raw body)) keyed with the client secret.
func (c *CashfreeAdapter) ParseWebhook(ctx context.Context, header http.Header, body []byte) (WebhookEvent, error) {
	if c.opts.verifyWebhook {
		if err := requireCredentials(ProviderCashfree, map[string]string{"secret key": c.SecretKey}); err != nil {
			return WebhookEvent{}, err
		}
		ts := header.Get("x-webhook-timestamp")
		want := SignBase64(c.SecretKey, ts, string(body))
		if ts == "" || !signatureEqual(want, header.Get("x-webhook-signature")) {
			return WebhookEvent{}, ErrInvalidSignature
		}
	}

	var p cashfreeWebhook
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, fmt.Errorf("cashfree webhook decode: %w", err)
	}

	status := strings.ToUpper(strings.TrimSpace(p.Data.Payment.PaymentStatus))
	return WebhookEvent{
		Provider:      ProviderCashfree,
		Type:          p.Type,
		OrderID:       strings.TrimSpace(p.Data.Order.OrderID),
		TransactionID: rawID(p.Data.Payment.CfPaymentID),
		Status:        status,
		Paid:          status == "SUCCESS",
	}, nil
}
