package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/ratelimit"
	"github.com/financeassistant/backend/internal/token"
)

type ctxKey int

const (
	ctxKeyPrincipal ctxKey = iota
	ctxKeyRequestID
)

// principal is the authenticated caller attached by the first pipeline
// stage: the loaded user, the verified claims and the raw token (logout
// needs it for revocation).
type principal struct {
	user   *domain.User
	claims *token.Claims
	raw    string
}

// authState records the outcome of token validation so protected routes
// can answer 401 with the precise reason.
type authState struct {
	principal *principal
	err       error // nil, token.ErrExpired, token.ErrMalformed, token.ErrBadSignature
}

func principalFrom(r *http.Request) *principal {
	state, _ := r.Context().Value(ctxKeyPrincipal).(*authState)
	if state == nil {
		return nil
	}
	return state.principal
}

func requestIDFrom(r *http.Request) string {
	id, _ := r.Context().Value(ctxKeyRequestID).(string)
	return id
}

// ====================================================================
// Cross-cutting middleware
// ====================================================================

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
			w.Header().Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	if len(s.corsOrigins) == 0 {
		return false
	}
	for _, o := range s.corsOrigins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

// ====================================================================
// Stage 1: token validation
// ====================================================================

// Paths that never require a token: the auth entry points, the signed
// payment webhook, and the probes.
var publicPaths = map[string]bool{
	"/api/v1/auth/login":      true,
	"/api/v1/auth/register":   true,
	"/api/v1/auth/logout":     true,
	"/api/v1/payment/webhook": true,
	"/health":                 true,
	"/metrics":                true,
}

// authenticate resolves the bearer token into a principal. No token or a
// revoked token means anonymous; protected routes reject those later. An
// invalid or expired token is answered 401 on the spot, except on public
// paths where a stale header must not block login or webhook delivery.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := &authState{}

		raw := bearerToken(r)
		if raw == "" || s.revocations.IsRevoked(r.Context(), raw) {
			if raw != "" {
				slog.Info("revoked token presented", "requestID", requestIDFrom(r))
			}
			next.ServeHTTP(w, withAuthState(r, state))
			return
		}

		claims, err := s.tokens.Parse(raw)
		if err == nil && claims.Type != "access" {
			err = token.ErrMalformed
		}
		if err != nil {
			state.err = err
			if !publicPaths[r.URL.Path] {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, withAuthState(r, state))
			return
		}

		user, lookupErr := s.store.FindUserByEmail(r.Context(), s.store.DB(), claims.Subject)
		if lookupErr != nil {
			slog.Error("user lookup during auth failed", "err", lookupErr)
		} else if user == nil {
			state.err = token.ErrMalformed
		} else {
			state.principal = &principal{user: user, claims: claims, raw: raw}
		}
		next.ServeHTTP(w, withAuthState(r, state))
	})
}

func withAuthState(r *http.Request, state *authState) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), ctxKeyPrincipal, state))
}

func writeAuthError(w http.ResponseWriter, err error) {
	code, msg := "TOKEN_INVALID", "Invalid authentication token"
	if errors.Is(err, token.ErrExpired) {
		code, msg = "TOKEN_EXPIRED", "Token has expired. Please log in again."
	}
	writeError(w, apperr.New(apperr.AuthRequired, code, msg))
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// requireUser guards a route: only authenticated principals pass.
func (s *Server) requireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, _ := r.Context().Value(ctxKeyPrincipal).(*authState)
		if state == nil || state.principal == nil {
			code, msg := "AUTH_REQUIRED", "Authentication required"
			switch {
			case state != nil && errors.Is(state.err, token.ErrExpired):
				code, msg = "TOKEN_EXPIRED", "Token has expired. Please log in again."
			case state != nil && state.err != nil:
				code, msg = "TOKEN_INVALID", "Invalid authentication token"
			}
			writeError(w, apperr.New(apperr.AuthRequired, code, msg))
			return
		}
		next(w, r)
	}
}

// ====================================================================
// Stage 2: subscription gate
// ====================================================================

// Premium path fragments. Everything else is available on every tier.
var premiumFragments = []string{"/reports/", "/ai/", "/ocr", "/forecast"}

// Prefixes the gate never touches: auth lifecycle, payment callbacks and
// the trial entry point must stay reachable for locked-out users.
var gateExemptPrefixes = []string{
	"/api/v1/auth/",
	"/api/v1/payment/",
	"/api/v1/subscription/start-trial",
}

// subscriptionGate stamps the effective tier on every authenticated
// response and locks premium paths for FREE-tier callers.
func (s *Server) subscriptionGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r)
		window := s.trialWindow()
		if p != nil {
			w.Header().Set("X-Subscription-Tier", p.user.EffectiveTier(s.clock.Now(), window))
		}
		if isGateExempt(r.URL.Path) || p == nil {
			next.ServeHTTP(w, r)
			return
		}
		if isPremiumPath(r.URL.Path) && !p.user.HasPremiumAccess(s.clock.Now(), window) {
			tier := p.user.EffectiveTier(s.clock.Now(), window)
			slog.Info("premium feature locked", "email", p.user.Email, "path", r.URL.Path, "tier", tier)
			writeErrorBody(w, http.StatusPaymentRequired, errorBody{
				Error:      "FEATURE_LOCKED",
				Message:    "This feature requires an active subscription or trial.",
				Tier:       tier,
				UpgradeURL: "/subscription/upgrade",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isGateExempt(path string) bool {
	if path == "/health" || path == "/metrics" {
		return true
	}
	for _, prefix := range gateExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func isPremiumPath(path string) bool {
	for _, frag := range premiumFragments {
		if strings.Contains(path, frag) {
			return true
		}
	}
	return false
}

// ====================================================================
// Stage 3: tenant ownership
// ====================================================================

// requireCompany parses {companyId} and verifies the caller owns it.
// The check goes to the database, not the token claim, so a revoked
// company transfer takes effect immediately.
func (s *Server) requireCompany(next func(w http.ResponseWriter, r *http.Request, companyID int64)) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request) {
		p := principalFrom(r)
		companyID, err := strconv.ParseInt(mux.Vars(r)["companyId"], 10, 64)
		if err != nil || companyID <= 0 {
			writeError(w, apperr.New(apperr.ValidationFailed, "INVALID_COMPANY_ID", "Invalid company id"))
			return
		}
		owns, err := s.store.ExistsCompanyWithOwner(r.Context(), s.store.DB(), companyID, p.user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		if !owns {
			slog.Warn("cross-tenant access denied", "email", p.user.Email, "companyID", companyID)
			writeError(w, apperr.New(apperr.Forbidden, "ACCESS_DENIED", "Access denied"))
			return
		}
		next(w, r, companyID)
	})
}

// ====================================================================
// Auth rate limiting
// ====================================================================

// rateLimited throttles an auth endpoint per client IP.
func (s *Server) rateLimited(bucket string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.limiter.TryConsume(ip, bucket) {
			rateLimitedTotal.WithLabelValues(bucket).Inc()
			msg := "Too many attempts. Please try again later."
			if bucket == ratelimit.BucketRegister {
				msg = "Too many registration attempts. Please try again later."
			}
			writeError(w, apperr.New(apperr.RateLimited, "RATE_LIMIT_EXCEEDED", msg))
			return
		}
		next(w, r)
	}
}

// clientIP prefers the first X-Forwarded-For hop (set by the reverse
// proxy), falling back to the socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
