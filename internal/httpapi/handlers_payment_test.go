package httpapi

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financeassistant/backend/internal/payments"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature(t *testing.T) {
	s := &Server{paymentSecret: "webhook-secret"}
	body := []byte(`{"event":"payment.captured"}`)

	assert.True(t, s.verifySignature(body, sign("webhook-secret", body)))
	assert.False(t, s.verifySignature(body, sign("wrong-secret", body)))
	assert.False(t, s.verifySignature(body, ""))
	assert.False(t, s.verifySignature([]byte(`tampered`), sign("webhook-secret", body)))
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := &Server{paymentSecret: "webhook-secret"}
	body := []byte(`{"event":"payment.captured","email":"a@b.c"}`)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(body))
	r.Header.Set("X-Signature", "deadbeef")
	s.handlePaymentWebhook(rec, r)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	var eb errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	assert.Equal(t, "INVALID_SIGNATURE", eb.Error)
}

func TestWebhookWithoutSecretIsUnavailable(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader([]byte(`{}`)))
	s.handlePaymentWebhook(rec, r)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWebhookAcknowledgesUnknownEvents(t *testing.T) {
	s := &Server{paymentSecret: "webhook-secret"}
	body := []byte(`{"event":"payment.refunded","email":"a@b.c"}`)

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/payment/webhook", bytes.NewReader(body))
	r.Header.Set("X-Signature", sign("webhook-secret", body))
	s.handlePaymentWebhook(rec, r)

	// Acknowledged so the gateway stops retrying an event we do not handle.
	assert.Equal(t, http.StatusOK, rec.Code)
}

type stubGateway struct {
	email string
	order *payments.Order
	err   error
}

func (g *stubGateway) CreateOrder(_ context.Context, email string) (*payments.Order, error) {
	g.email = email
	return g.order, g.err
}

func TestCreateOrderWithoutGatewayIsUnavailable(t *testing.T) {
	s := &Server{gateway: payments.NoopGateway{}}
	rec := httptest.NewRecorder()
	s.handleCreateOrder(rec, requestWithState(http.MethodPost,
		"/api/v1/payment/create-order",
		&authState{principal: &principal{user: freeUser()}}))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var eb errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	assert.Equal(t, "PAYMENTS_NOT_CONFIGURED", eb.Error)
}

func TestCreateOrderReturnsProviderReference(t *testing.T) {
	gw := &stubGateway{order: &payments.Order{
		Reference: "order_abc123",
		Amount:    decimal.NewFromInt(999),
		Currency:  "USD",
	}}
	s := &Server{gateway: gw}

	rec := httptest.NewRecorder()
	s.handleCreateOrder(rec, requestWithState(http.MethodPost,
		"/api/v1/payment/create-order",
		&authState{principal: &principal{user: freeUser()}}))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "free@example.com", gw.email)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "order_abc123", body["reference"])
	assert.Equal(t, "USD", body["currency"])
}
