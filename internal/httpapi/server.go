// Package httpapi is the HTTP edge: routing, the three-stage request
// pipeline (token validation, subscription gate, tenant ownership) and
// the JSON handlers over the domain services.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/financeassistant/backend/internal/auth"
	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/payments"
	"github.com/financeassistant/backend/internal/ratelimit"
	"github.com/financeassistant/backend/internal/reporting"
	"github.com/financeassistant/backend/internal/store"
	"github.com/financeassistant/backend/internal/subscription"
	"github.com/financeassistant/backend/internal/token"
	"github.com/financeassistant/backend/internal/transactions"
)

// BrokerHealth is what the health endpoint needs from the event bus.
type BrokerHealth interface {
	Ping() error
}

// RevocationHealth is the optional Redis connectivity probe.
type RevocationHealth interface {
	Ping(ctx context.Context) error
}

// Deps carries everything the server routes to.
type Deps struct {
	Store         *store.Store
	Tokens        *token.Service
	Revocations   token.RevocationStore
	Limiter       *ratelimit.Limiter
	Auth          *auth.Service
	Subscriptions *subscription.Service
	Transactions  *transactions.Service
	Reports       *reporting.Service
	Clock         clock.Clock
	Gateway       payments.Gateway // nil falls back to the no-op

	BrokerHealth     BrokerHealth     // nil when the broker is not configured
	RevocationHealth RevocationHealth // nil when Redis is not configured

	AIServiceURL         string
	PaymentWebhookSecret string
	CORSOrigins          []string
}

// Server owns the router and the handler dependencies.
type Server struct {
	store         *store.Store
	tokens        *token.Service
	revocations   token.RevocationStore
	limiter       *ratelimit.Limiter
	auth          *auth.Service
	subscriptions *subscription.Service
	transactions  *transactions.Service
	reports       *reporting.Service
	clock         clock.Clock
	gateway       payments.Gateway

	brokerHealth     BrokerHealth
	revocationHealth RevocationHealth

	aiServiceURL  string
	aiClient      *http.Client
	paymentSecret string
	corsOrigins   []string

	router *mux.Router
}

// NewServer builds the router with the full middleware pipeline.
func NewServer(d Deps) *Server {
	s := &Server{
		store:            d.Store,
		tokens:           d.Tokens,
		revocations:      d.Revocations,
		limiter:          d.Limiter,
		auth:             d.Auth,
		subscriptions:    d.Subscriptions,
		transactions:     d.Transactions,
		reports:          d.Reports,
		clock:            d.Clock,
		gateway:          d.Gateway,
		brokerHealth:     d.BrokerHealth,
		revocationHealth: d.RevocationHealth,
		aiServiceURL:     d.AIServiceURL,
		aiClient:         &http.Client{Timeout: 30 * time.Second},
		paymentSecret:    d.PaymentWebhookSecret,
		corsOrigins:      d.CORSOrigins,
	}
	if s.gateway == nil {
		s.gateway = payments.NoopGateway{}
	}
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// trialWindow resolves the configured trial length. Zero, meaning "use the
// domain default", only happens when no subscription service is wired.
func (s *Server) trialWindow() time.Duration {
	if s.subscriptions != nil {
		return s.subscriptions.TrialWindow()
	}
	return 0
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(metricsMiddleware)
	r.Use(s.authenticate)
	r.Use(s.subscriptionGate)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()

	// Credential lifecycle. Register and login sit behind the per-IP
	// limiter; logout accepts any token so stale sessions can be cleared.
	api.HandleFunc("/auth/register", s.rateLimited(ratelimit.BucketRegister, s.handleRegister)).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.rateLimited(ratelimit.BucketLogin, s.handleLogin)).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", s.requireUser(s.handleMe)).Methods(http.MethodGet)

	// Subscription state machine.
	api.HandleFunc("/subscription/start-trial", s.requireUser(s.handleStartTrial)).Methods(http.MethodPost)
	api.HandleFunc("/subscription/status", s.requireUser(s.handleSubscriptionStatus)).Methods(http.MethodGet)
	api.HandleFunc("/subscription/cancel", s.requireUser(s.handleCancelSubscription)).Methods(http.MethodPost)

	// Tenant-scoped resources: ownership verified per request. The numeric
	// constraint keeps {companyId} from shadowing literal route segments.
	api.HandleFunc("/{companyId:[0-9]+}/transactions", s.requireCompany(s.handleListTransactions)).Methods(http.MethodGet)
	api.HandleFunc("/{companyId:[0-9]+}/transactions", s.requireCompany(s.handleCreateTransaction)).Methods(http.MethodPost)
	api.HandleFunc("/{companyId:[0-9]+}/transactions/{id}", s.requireCompany(s.handleDeleteTransaction)).Methods(http.MethodDelete)

	api.HandleFunc("/{companyId:[0-9]+}/reports/pnl", s.requireCompany(s.handlePnL)).Methods(http.MethodGet)

	api.HandleFunc("/{companyId:[0-9]+}/anomalies", s.requireCompany(s.handleListAnomalies)).Methods(http.MethodGet)
	api.HandleFunc("/{companyId:[0-9]+}/anomalies/{id}", s.requireCompany(s.handleDismissAnomaly)).Methods(http.MethodDelete)

	// AI chat proxy, quota-gated.
	api.HandleFunc("/ai/chat", s.requireUser(s.handleAIChat)).Methods(http.MethodPost)

	// Payment gateway: order creation, capture callbacks and status.
	api.HandleFunc("/payment/create-order", s.requireUser(s.handleCreateOrder)).Methods(http.MethodPost)
	api.HandleFunc("/payment/webhook", s.handlePaymentWebhook).Methods(http.MethodPost)
	api.HandleFunc("/payment/status", s.requireUser(s.handlePaymentStatus)).Methods(http.MethodGet)

	return r
}

// handleHealth reports the process and its dependencies. Degraded optional
// dependencies do not fail the probe; a dead database does.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := map[string]string{}
	status := http.StatusOK
	overall := "ok"

	if err := s.store.Ping(ctx); err != nil {
		checks["database"] = "down"
		status = http.StatusServiceUnavailable
		overall = "degraded"
	} else {
		checks["database"] = "ok"
	}

	switch {
	case s.brokerHealth == nil:
		checks["broker"] = "not configured"
	case s.brokerHealth.Ping() != nil:
		checks["broker"] = "down"
	default:
		checks["broker"] = "ok"
	}

	switch {
	case s.revocationHealth == nil:
		checks["redis"] = "not configured"
	case s.revocationHealth.Ping(ctx) != nil:
		checks["redis"] = "down"
	default:
		checks["redis"] = "ok"
	}

	writeJSON(w, status, map[string]any{
		"status": overall,
		"checks": checks,
		"time":   s.clock.Now().UTC().Format(time.RFC3339),
	})
}
