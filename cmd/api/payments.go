package main

import (
	"errors"
	"net/http"
	"strings"

	"eventreg/internal/registration"
)

type CreateOrderPayload struct {
	ReferenceID string `json:"referenceId"`
	Gateway     string `json:"gateway"`
}

// POST /api/create-payment-order {referenceId, gateway?}
func (app *application) createPaymentOrderHandler(w http.ResponseWriter, r *http.Request) {
	var payload CreateOrderPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	method := payload.Gateway
	if method == "" {
		method = r.URL.Query().Get("method")
	}

	order, err := app.registration.CreateOrder(r.Context(), payload.ReferenceID, method)
	if err != nil {
		app.workflowErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, map[string]any{
		"success":          true,
		"referenceId":      order.ReferenceID,
		"gateway":          order.Gateway,
		"orderId":          order.OrderID,
		"paymentSessionId": order.PaymentSessionID,
		"keyId":            order.KeyID,
		"amount":           order.Amount,
		"currency":         order.Currency,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GET /api/check-payment-status?orderId=
func (app *application) checkPaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orderID := strings.TrimSpace(q.Get("orderId"))
	if orderID == "" {
		orderID = strings.TrimSpace(q.Get("order_id"))
	}
	if orderID == "" {
		app.badRequestResponse(w, r, errors.New("orderId is required"))
		return
	}

	res, err := app.registration.CheckStatus(r.Context(), orderID)
	if err != nil {
		app.workflowErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"orderId":     res.OrderID,
		"referenceId": res.ReferenceID,
		"status":      res.Status,
		"paid":        res.Paid,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// VerifyPaymentPayload accepts the Razorpay checkout handler field names as
// well as plain ones.
type VerifyPaymentPayload struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	OrderID           string `json:"orderId"`
	PaymentID         string `json:"paymentId"`
	Signature         string `json:"signature"`
	Gateway           string `json:"gateway"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func verifyInput(p VerifyPaymentPayload) registration.VerifyInput {
	return registration.VerifyInput{
		OrderID:   firstNonEmpty(p.RazorpayOrderID, p.OrderID),
		PaymentID: firstNonEmpty(p.RazorpayPaymentID, p.PaymentID),
		Signature: firstNonEmpty(p.RazorpaySignature, p.Signature),
		Gateway:   p.Gateway,
	}
}

// POST /api/verify-payment
func (app *application) verifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload VerifyPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	in := verifyInput(payload)
	if in.OrderID == "" {
		app.badRequestResponse(w, r, errors.New("order id is required"))
		return
	}

	res, err := app.registration.VerifyPayment(r.Context(), in)
	if err != nil {
		app.workflowErrorResponse(w, r, err)
		return
	}

	status := http.StatusOK
	if !res.Paid {
		status = http.StatusAccepted
	}
	if err := writeJSON(w, status, map[string]any{
		"success":     res.Paid,
		"orderId":     res.OrderID,
		"referenceId": res.ReferenceID,
		"status":      res.Status,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

type ConfirmPaymentPayload struct {
	ReferenceID   string `json:"referenceId"`
	TransactionID string `json:"transactionId"`
}

// confirmPaymentHandler is the legacy confirmation path: it trusts the
// caller's transaction id without asking the gateway.
//
//	POST /api/confirm-payment {referenceId, transactionId}
func (app *application) confirmPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var payload ConfirmPaymentPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reg, err := app.registration.ConfirmLegacy(r.Context(), payload.ReferenceID, payload.TransactionID)
	if err != nil {
		app.workflowErrorResponse(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"referenceId":   reg.ReferenceID,
		"transactionId": reg.TransactionID,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}
