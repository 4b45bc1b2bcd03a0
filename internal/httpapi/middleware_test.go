package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/ratelimit"
	"github.com/financeassistant/backend/internal/token"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

// requestWithState fakes the output of the token-validation stage.
func requestWithState(method, path string, state *authState) *http.Request {
	r := httptest.NewRequest(method, path, nil)
	return r.WithContext(context.WithValue(r.Context(), ctxKeyPrincipal, state))
}

func freeUser() *domain.User {
	return &domain.User{ID: 1, Email: "free@example.com", SubscriptionStatus: domain.StatusFree}
}

func trialUser() *domain.User {
	return &domain.User{
		ID: 2, Email: "trial@example.com",
		SubscriptionStatus: domain.StatusTrial,
		TrialStartedAt:     timePtr(testNow.Add(-24 * time.Hour)),
	}
}

func passThrough(called *bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	})
}

func TestPremiumPathMatching(t *testing.T) {
	premium := []string{
		"/api/v1/7/reports/pnl",
		"/api/v1/ai/chat",
		"/api/v1/7/ocr",
		"/api/v1/7/forecast",
	}
	for _, p := range premium {
		assert.True(t, isPremiumPath(p), p)
	}
	open := []string{
		"/api/v1/7/transactions",
		"/api/v1/7/anomalies",
		"/api/v1/subscription/status",
	}
	for _, p := range open {
		assert.False(t, isPremiumPath(p), p)
	}
}

func TestGateExemptions(t *testing.T) {
	for _, p := range []string{
		"/api/v1/auth/login",
		"/api/v1/auth/register",
		"/api/v1/payment/webhook",
		"/api/v1/subscription/start-trial",
		"/health",
		"/metrics",
	} {
		assert.True(t, isGateExempt(p), p)
	}
	assert.False(t, isGateExempt("/api/v1/7/reports/pnl"))
	assert.False(t, isGateExempt("/api/v1/subscription/status"))
}

func TestSubscriptionGateLocksFreeTier(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}
	var called bool
	h := s.subscriptionGate(passThrough(&called))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithState(http.MethodGet,
		"/api/v1/7/reports/pnl",
		&authState{principal: &principal{user: freeUser()}}))

	assert.False(t, called)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "FREE", rec.Header().Get("X-Subscription-Tier"))

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "FEATURE_LOCKED", body.Error)
	assert.Equal(t, "FREE", body.Tier)
	assert.NotEmpty(t, body.UpgradeURL)
	assert.NotEmpty(t, body.Timestamp)
}

func TestSubscriptionGateAdmitsTrialAndActive(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}

	for _, u := range []*domain.User{
		trialUser(),
		{ID: 3, SubscriptionStatus: domain.StatusActive, SubscriptionExpiresAt: timePtr(testNow.Add(time.Hour))},
	} {
		var called bool
		h := s.subscriptionGate(passThrough(&called))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, requestWithState(http.MethodGet,
			"/api/v1/7/reports/pnl",
			&authState{principal: &principal{user: u}}))
		assert.True(t, called, "tier %s should pass", u.SubscriptionStatus)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestSubscriptionGateLocksLapsedActive(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}
	lapsed := &domain.User{
		ID: 4, SubscriptionStatus: domain.StatusActive,
		SubscriptionExpiresAt: timePtr(testNow.Add(-time.Minute)),
	}
	var called bool
	h := s.subscriptionGate(passThrough(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithState(http.MethodGet,
		"/api/v1/ai/chat",
		&authState{principal: &principal{user: lapsed}}))

	assert.False(t, called)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, "FREE", rec.Header().Get("X-Subscription-Tier"))
}

func TestSubscriptionGateSkipsExemptPaths(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}
	var called bool
	h := s.subscriptionGate(passThrough(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithState(http.MethodPost,
		"/api/v1/subscription/start-trial",
		&authState{principal: &principal{user: freeUser()}}))

	assert.True(t, called, "trial entry point must stay reachable for FREE users")
	assert.Equal(t, "FREE", rec.Header().Get("X-Subscription-Tier"))
}

func TestSubscriptionGateNonPremiumPathOpenToFree(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}
	var called bool
	h := s.subscriptionGate(passThrough(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithState(http.MethodGet,
		"/api/v1/7/transactions",
		&authState{principal: &principal{user: freeUser()}}))

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubscriptionGatePassesAnonymous(t *testing.T) {
	s := &Server{clock: clock.NewFixed(testNow)}
	var called bool
	h := s.subscriptionGate(passThrough(&called))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, requestWithState(http.MethodGet,
		"/api/v1/7/reports/pnl", &authState{}))

	// Anonymous falls through; the route's own guard answers 401.
	assert.True(t, called)
	assert.Empty(t, rec.Header().Get("X-Subscription-Tier"))
}

func TestRequireUser(t *testing.T) {
	s := &Server{}
	var called bool
	h := s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name     string
		state    *authState
		status   int
		code     string
		admitted bool
	}{
		{"anonymous", &authState{}, http.StatusUnauthorized, "AUTH_REQUIRED", false},
		{"expired token", &authState{err: token.ErrExpired}, http.StatusUnauthorized, "TOKEN_EXPIRED", false},
		{"bad signature", &authState{err: token.ErrBadSignature}, http.StatusUnauthorized, "TOKEN_INVALID", false},
		{"authenticated", &authState{principal: &principal{user: freeUser()}}, http.StatusOK, "", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called = false
			rec := httptest.NewRecorder()
			h(rec, requestWithState(http.MethodGet, "/api/v1/auth/me", tc.state))
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.admitted, called)
			if tc.code != "" {
				var body errorBody
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, tc.code, body.Error)
			}
		})
	}
}

func TestRateLimitedMiddleware(t *testing.T) {
	s := &Server{limiter: ratelimit.New(
		ratelimit.Rule{Capacity: 2, Window: time.Minute},
		ratelimit.Rule{},
		clock.NewFixed(testNow),
	)}
	var calls int
	h := s.rateLimited(ratelimit.BucketLogin, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
		r.RemoteAddr = "10.1.1.1:5000"
		h(rec, r)
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	r.RemoteAddr = "10.1.1.1:5001"
	h(rec, r)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, 2, calls)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body.Error)

	// A different IP has its own bucket.
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	r.RemoteAddr = "10.9.9.9:5000"
	h(rec, r)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.168.1.7:61234"
	assert.Equal(t, "192.168.1.7", clientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", clientIP(r))
}

func TestBearerToken(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, bearerToken(r))

	r.Header.Set("Authorization", "Bearer abc.def.ghi")
	assert.Equal(t, "abc.def.ghi", bearerToken(r))

	r.Header.Set("Authorization", "bearer lower.case.ok")
	assert.Equal(t, "lower.case.ok", bearerToken(r))

	r.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	assert.Empty(t, bearerToken(r))
}
