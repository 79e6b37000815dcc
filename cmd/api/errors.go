package main

import (
	"errors"
	"fmt"
	"net/http"

	"eventreg/internal/payments"
	"eventreg/internal/registration"
)

func (app *application) internalServerError(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("internal error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusInternalServerError, "the server encountered a problem")
}

func (app *application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("bad request", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusBadRequest, err.Error())
}

func (app *application) notFoundResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("not found error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusNotFound, err.Error())
}

func (app *application) conflictResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("conflict response", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusConflict, err.Error())
}

func (app *application) gatewayTimeoutResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Errorw("upstream timeout", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	writeJSONError(w, http.StatusGatewayTimeout, "payment gateway did not respond in time, please retry")
}

func (app *application) unauthorizedBasicErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logger.Warnw("unauthorized basic error", "method", r.Method, "path", r.URL.Path, "error", err.Error())

	w.Header().Set("WWW-Authenticate", `Basic realm="restricted", charset="UTF-8"`)

	writeJSONError(w, http.StatusUnauthorized, "unauthorized")
}

func (app *application) rateLimitExceededResponse(w http.ResponseWriter, r *http.Request, retryAfter string) {
	app.logger.Warnw("rate limit exceeded", "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Retry-After", retryAfter)

	writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded, retry after: "+retryAfter)
}

// gatewayRetryAfter is sent, in seconds, when the provider failed on its side.
const gatewayRetryAfter = "5"

// workflowErrorResponse maps registration and gateway errors to HTTP statuses.
func (app *application) workflowErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr   *registration.ValidationError
		cfgErr *payments.ConfigError
		reqErr *payments.RequestError
	)

	switch {
	case errors.As(err, &verr):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, registration.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, payments.ErrInvalidSignature):
		app.badRequestResponse(w, r, err)
	case errors.Is(err, registration.ErrAlreadyConfirmed):
		app.conflictResponse(w, r, err)
	case errors.Is(err, payments.ErrTimeout):
		app.gatewayTimeoutResponse(w, r, err)
	case errors.As(err, &cfgErr):
		app.logger.Errorw("payment gateway misconfigured", "provider", cfgErr.Provider, "missing", cfgErr.Missing)
		writeJSONError(w, http.StatusInternalServerError, "payment gateway is not configured")
	case errors.As(err, &reqErr):
		app.logger.Errorw("payment gateway request failed", "provider", reqErr.Provider, "op", reqErr.Op, "status", reqErr.StatusCode, "error", err.Error())
		msg := "payment gateway request failed"
		if reqErr.Payload != "" {
			msg = fmt.Sprintf("%s: %s", msg, reqErr.Payload)
		}
		if reqErr.Retryable() {
			w.Header().Set("Retry-After", gatewayRetryAfter)
		}
		writeJSONError(w, http.StatusInternalServerError, msg)
	default:
		app.internalServerError(w, r, err)
	}
}
