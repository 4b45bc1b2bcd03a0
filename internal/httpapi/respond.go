package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/financeassistant/backend/internal/apperr"
)

// errorBody is the uniform error shape: stable code, human message, ISO
// timestamp. It never carries implementation detail.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`

	// Optional fields for specific failures.
	Tier       string `json:"tier,omitempty"`
	UpgradeURL string `json:"upgradeUrl,omitempty"`
	DailyLimit int    `json:"dailyLimit,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Warn("response encode failed", "err", err)
		}
	}
}

// writeError maps a failure to its wire status. Internal errors are logged
// with their cause but answered with an opaque body.
func writeError(w http.ResponseWriter, err error) {
	ae := apperr.AsError(err)
	if ae.Kind == apperr.Internal {
		slog.Error("internal error", "err", err)
	}
	writeErrorBody(w, apperr.HTTPStatus(ae.Kind), errorBody{
		Error:   ae.Code,
		Message: ae.Message,
	})
}

func writeErrorBody(w http.ResponseWriter, status int, body errorBody) {
	if body.Timestamp == "" {
		body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_BODY", "Malformed request body"))
		return false
	}
	return true
}
