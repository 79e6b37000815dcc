package payments

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRazorpayInitiatePayment(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"id":"order_Nx1","amount":9900,"currency":"INR","status":"created","receipt":"abc123"}`))
	}))
	defer srv.Close()

	rp := NewRazorpayAdapter("rzp_key", "rzp_secret", "", WithBaseURL(srv.URL))
	resp, err := rp.InitiatePayment(context.Background(), PaymentRequest{ReferenceID: "abc123", Amount: 99, Currency: "INR"})
	require.NoError(t, err)

	assert.Equal(t, "order_Nx1", resp.OrderID)
	assert.Equal(t, "rzp_key", resp.KeyID)
	assert.Equal(t, float64(9900), got["amount"])
	assert.Equal(t, "abc123", got["receipt"])
}

func TestRazorpayVerifyPayment(t *testing.T) {
	rp := NewRazorpayAdapter("rzp_key", "rzp_secret", "")

	t.Run("matching signature", func(t *testing.T) {
		sig := SignHex("rzp_secret", "order_1|pay_1")
		res, err := rp.VerifyPayment(context.Background(), PaymentVerifyRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: sig})
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, "pay_1", res.TransactionID)
	})

	t.Run("mismatch", func(t *testing.T) {
		sig := SignHex("other_secret", "order_1|pay_1")
		res, err := rp.VerifyPayment(context.Background(), PaymentVerifyRequest{OrderID: "order_1", PaymentID: "pay_1", Signature: sig})
		assert.ErrorIs(t, err, ErrInvalidSignature)
		assert.False(t, res.Success)
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := NewRazorpayAdapter("k", "", "").VerifyPayment(context.Background(), PaymentVerifyRequest{OrderID: "o", PaymentID: "p"})
		var cfgErr *ConfigError
		assert.ErrorAs(t, err, &cfgErr)
	})
}

func TestRazorpayCheckStatus(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/orders/order_1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"order_1","status":"paid"}`))
	})
	mux.HandleFunc("/v1/orders/order_1/payments", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[{"id":"pay_fail","status":"failed"},{"id":"pay_ok","status":"captured"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rp := NewRazorpayAdapter("rzp_key", "rzp_secret", "", WithBaseURL(srv.URL))
	res, err := rp.CheckStatus(context.Background(), "order_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "pay_ok", res.TransactionID)
}

func TestRazorpayParseWebhook(t *testing.T) {
	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_1","status":"captured"}}}}`)
	rp := NewRazorpayAdapter("k", "s", "whsec")

	h := http.Header{}
	h.Set("X-Razorpay-Signature", SignHex("whsec", string(body)))
	ev, err := rp.ParseWebhook(context.Background(), h, body)
	require.NoError(t, err)
	assert.Equal(t, "order_1", ev.OrderID)
	assert.Equal(t, "pay_1", ev.TransactionID)
	assert.True(t, ev.Paid)

	h.Set("X-Razorpay-Signature", "0000")
	_, err = rp.ParseWebhook(context.Background(), h, body)
	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestPaymentManager(t *testing.T) {
	m := NewPaymentManager()
	m.RegisterGateway(ProviderCashfree, NewCashfreeAdapter("a", "b", "", false))
	m.RegisterGateway(ProviderRazorpay, NewRazorpayAdapter("a", "b", ""))

	g, err := m.Gateway("")
	require.NoError(t, err)
	assert.Equal(t, ProviderCashfree, g.Name())

	require.NoError(t, m.SetDefault("Razorpay"))
	g, err = m.Gateway("")
	require.NoError(t, err)
	assert.Equal(t, ProviderRazorpay, g.Name())

	_, err = m.Gateway("stripe")
	assert.ErrorIs(t, err, ErrNotRegistered)
	assert.Equal(t, []string{"cashfree", "razorpay"}, m.Names())
}
