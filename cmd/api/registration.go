package main

import (
	"net/http"
	"strconv"
	"strings"

	"eventreg/internal/params"
	"eventreg/internal/registration"
)

type RegisterPayload struct {
	FullName string `json:"fullName" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Phone    string `json:"phone" validate:"required,max=20,phone"`
}

type paymentDetails struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	Gateway  string  `json:"gateway"`
}

// registerHandler stores a new unpaid registration.
//
//	POST /api/register {fullName, email, phone}
func (app *application) registerHandler(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	payload.FullName = strings.TrimSpace(payload.FullName)
	payload.Email = strings.TrimSpace(payload.Email)
	payload.Phone = strings.TrimSpace(payload.Phone)

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	reg, err := app.registration.Register(r.Context(), registration.Registrant{
		FullName: payload.FullName,
		Email:    payload.Email,
		Phone:    payload.Phone,
	})
	if err != nil {
		app.workflowErrorResponse(w, r, err)
		return
	}

	event := app.registration.Event()
	if err := writeJSON(w, http.StatusCreated, map[string]any{
		"success":     true,
		"referenceId": reg.ReferenceID,
		"paymentDetails": paymentDetails{
			Amount:   event.Amount,
			Currency: event.Currency,
			Gateway:  app.config.payment.gateway,
		},
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// checkPaymentHandler reports whether a registration is in the confirmed set.
// It never fails: unknown or missing ids are simply not confirmed.
//
//	GET /api/check-payment?reference_id= | ?payment_id=
func (app *application) checkPaymentHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key := strings.TrimSpace(q.Get("reference_id"))
	if key == "" {
		key = strings.TrimSpace(q.Get("payment_id"))
	}

	writeJSON(w, http.StatusOK, map[string]bool{
		"success": app.registration.IsConfirmed(r.Context(), key),
	})
}

// GET /api/admin/registrations?page=&limit=
func (app *application) adminListRegistrationsHandler(w http.ResponseWriter, r *http.Request) {
	pg := params.ParsePagination(r.URL.Query())

	regs, total, err := app.registration.List(r.Context(), pg.Limit, pg.Offset)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	pg.ComputeMeta(total)

	if err := app.jsonResponse(w, http.StatusOK, map[string]any{
		"registrations": regs,
		"pagination":    pg,
	}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// GET /api/admin/payment-logs?reference_id=&limit=
func (app *application) adminPaymentLogsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 || limit > params.MaxLimit {
		limit = params.MaxLimit
	}

	logs, err := app.registration.PaymentLogs(r.Context(), q.Get("reference_id"), limit)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, logs); err != nil {
		app.internalServerError(w, r, err)
	}
}
