package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/financeassistant/backend/internal/apperr"
)

// handleAIChat takes one quota slot, then proxies the body to the AI
// service. The slot is consumed before the proxy call: a downstream
// failure still counts, which keeps the quota check atomic and simple.
// The response is augmented with the caller's remaining allowance.
func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)

	remaining, err := s.subscriptions.ConsumeAIChat(r.Context(), p.user.Email)
	if err != nil {
		if apperr.KindOf(err) == apperr.QuotaExceeded {
			writeErrorBody(w, http.StatusTooManyRequests, errorBody{
				Error:      "DAILY_LIMIT_EXCEEDED",
				Message:    "You've used all your AI chats for today. Resets at midnight.",
				DailyLimit: s.subscriptions.DailyLimit(p.user),
			})
			return
		}
		writeError(w, err)
		return
	}

	if s.aiServiceURL == "" {
		writeError(w, apperr.New(apperr.ServiceUnavailable, "AI_SERVICE_UNAVAILABLE",
			"AI assistant is not available right now. Please try again later."))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_BODY", "Malformed request body"))
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost,
		s.aiServiceURL+"/chat", bytes.NewReader(body))
	if err != nil {
		writeError(w, apperr.Wrap(apperr.Internal, "AI_REQUEST_FAILED", "AI request failed", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Company-ID", strconv.FormatInt(p.claims.CompanyID, 10))

	resp, err := s.aiClient.Do(req)
	if err != nil {
		slog.Warn("AI service unreachable", "err", err)
		writeError(w, apperr.New(apperr.ServiceUnavailable, "AI_SERVICE_UNAVAILABLE",
			"AI assistant is not available right now. Please try again later."))
		return
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		slog.Warn("AI service returned unparsable body", "status", resp.StatusCode, "err", err)
		writeError(w, apperr.New(apperr.ServiceUnavailable, "AI_SERVICE_UNAVAILABLE",
			"AI assistant is not available right now. Please try again later."))
		return
	}
	payload["aiChatsRemaining"] = remaining
	payload["aiChatDailyLimit"] = s.subscriptions.DailyLimit(p.user)
	writeJSON(w, resp.StatusCode, payload)
}
