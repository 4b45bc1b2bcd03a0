package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/payments"
)

// webhookEvent is the gateway's callback payload. Email identifies the
// subscriber; the reference is the gateway-side payment or subscription id.
type webhookEvent struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	Reference string `json:"reference"`
}

// handlePaymentWebhook verifies the HMAC-SHA256 signature and applies
// captured payments to the subscription state machine. Unknown events are
// acknowledged and ignored so the gateway stops retrying them.
func (s *Server) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	if s.paymentSecret == "" {
		writeError(w, apperr.New(apperr.ServiceUnavailable, "PAYMENTS_NOT_CONFIGURED",
			"Payments are not configured"))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_BODY", "Malformed request body"))
		return
	}
	if !s.verifySignature(body, r.Header.Get("X-Signature")) {
		slog.Warn("payment webhook signature mismatch", "requestID", requestIDFrom(r))
		writeError(w, apperr.New(apperr.AuthRequired, "INVALID_SIGNATURE", "Invalid webhook signature"))
		return
	}

	var ev webhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_BODY", "Malformed webhook payload"))
		return
	}

	switch ev.Event {
	case "payment.captured":
		if err := s.applyCapturedPayment(r, ev); err != nil {
			writeError(w, err)
			return
		}
	default:
		slog.Info("ignoring payment webhook event", "event", ev.Event)
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

// applyCapturedPayment activates a first-time subscriber and renews an
// existing one.
func (s *Server) applyCapturedPayment(r *http.Request, ev webhookEvent) error {
	user, err := s.store.FindUserByEmail(r.Context(), s.store.DB(), ev.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
	}
	if user.SubscriptionExpiresAt != nil && user.SubscriptionExpiresAt.After(s.clock.Now()) {
		return s.subscriptions.Renew(r.Context(), ev.Email, ev.Reference)
	}
	return s.subscriptions.Activate(r.Context(), ev.Email, ev.Reference)
}

func (s *Server) verifySignature(body []byte, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(s.paymentSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// handleCreateOrder asks the gateway for a subscription payment order. The
// capture webhook, not this call, is what flips the subscription state.
func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	order, err := s.gateway.CreateOrder(r.Context(), p.user.Email)
	if errors.Is(err, payments.ErrNotConfigured) {
		writeError(w, apperr.New(apperr.ServiceUnavailable, "PAYMENTS_NOT_CONFIGURED",
			"Payments are not configured"))
		return
	}
	if err != nil {
		writeError(w, apperr.Wrap(apperr.ServiceUnavailable, "PAYMENT_GATEWAY_ERROR",
			"Could not create the payment order. Please try again.", err))
		return
	}
	slog.Info("payment order created", "email", p.user.Email, "reference", order.Reference)
	writeJSON(w, http.StatusCreated, map[string]any{
		"reference": order.Reference,
		"amount":    order.Amount,
		"currency":  order.Currency,
	})
}

// handlePaymentStatus returns the caller's current subscription view plus
// the stored gateway reference.
func (s *Server) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	p := principalFrom(r)
	view := s.statusView(p.user)
	writeJSON(w, http.StatusOK, map[string]any{
		"subscription": view,
		"reference":    p.user.ExternalSubscription,
	})
}
