package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/bonds-app/bonds/internal/apperr"
)

// maxBodyBytes caps JSON request bodies; auth payloads are tiny.
const maxBodyBytes = 1 << 16

func respondJSON(w http.ResponseWriter, status int, payload map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range payload {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// respondError serializes the error taxonomy. 4xx messages are meant to
// guide the user and pass through; 5xx messages collapse to a generic string
// in production with the cause going to the log only.
func respondError(w http.ResponseWriter, r *http.Request, err error, isProduction bool) {
	e := apperr.From(err)

	msg := e.Message
	if e.Status >= 500 {
		slog.Error("request failed", "error", e, "method", r.Method, "path", r.URL.Path)
		if isProduction {
			msg = "Internal server error"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status)
	encodeErr := json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   msg,
	})
	if encodeErr != nil {
		slog.Error("failed to encode error response", "error", encodeErr)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Invalid request body")
	}
	return nil
}

// maskEmail hides the local part except its first rune: jo@x.com -> j***@x.com
func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at <= 0 {
		return email
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}
