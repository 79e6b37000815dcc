package main

import (
	"io"
	"net/http"
)

// paymentWebhookHandler receives provider push notifications. It always
// answers 200 so the provider does not keep redelivering; failures are logged.
// An empty provider is taken from the ?provider= query param.
func (app *application) paymentWebhookHandler(provider string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := provider
		if name == "" {
			name = r.URL.Query().Get("provider")
		}

		defer func() {
			if rec := recover(); rec != nil {
				app.logger.Errorw("webhook panic", "provider", name, "panic", rec)
				writeJSON(w, http.StatusOK, map[string]bool{"success": true})
			}
		}()

		r.Body = http.MaxBytesReader(w, r.Body, 65536)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			app.logger.Errorw("failed to read webhook body", "provider", name, "error", err.Error())
			writeJSON(w, http.StatusOK, map[string]bool{"success": true})
			return
		}

		ev, err := app.registration.HandleWebhook(r.Context(), name, r.Header, body)
		if err != nil {
			app.logger.Errorw("webhook processing failed", "provider", name, "orderId", ev.OrderID, "error", err.Error())
		} else {
			app.logger.Infow("webhook processed", "provider", name, "type", ev.Type, "orderId", ev.OrderID, "paid", ev.Paid)
		}

		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}
