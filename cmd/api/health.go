package main

import (
	"net/http"
	"time"
)

func (app *application) rootHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "event registration backend is running",
	})
}

func (app *application) statusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"env":       app.config.env,
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (app *application) apiInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "API is working",
		"event":   app.config.event.Name,
	})
}
