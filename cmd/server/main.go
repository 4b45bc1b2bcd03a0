// Command server runs the finance assistant API: HTTP edge, subscription
// state machine, ledger write path, reporting engine and the anomaly
// result consumer, wired to Postgres, RabbitMQ, Redis and SMTP.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/financeassistant/backend/internal/anomaly"
	"github.com/financeassistant/backend/internal/auth"
	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/config"
	"github.com/financeassistant/backend/internal/events"
	"github.com/financeassistant/backend/internal/httpapi"
	"github.com/financeassistant/backend/internal/notify"
	"github.com/financeassistant/backend/internal/payments"
	"github.com/financeassistant/backend/internal/ratelimit"
	"github.com/financeassistant/backend/internal/reporting"
	"github.com/financeassistant/backend/internal/store"
	"github.com/financeassistant/backend/internal/subscription"
	"github.com/financeassistant/backend/internal/token"
	"github.com/financeassistant/backend/internal/transactions"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration invalid", "err", err)
		os.Exit(1)
	}

	clk := clock.System{}

	st, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		slog.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	tokens, err := token.NewService(cfg.TokenSecret(), cfg.TokenTTL, clk)
	if err != nil {
		slog.Error("token service init failed", "err", err)
		os.Exit(1)
	}

	// Optional externals fall back to no-ops: the app must start and serve
	// its core paths even when Redis, RabbitMQ or SMTP are absent.
	var revocations token.RevocationStore = token.NoopRevocationStore{}
	var revocationHealth httpapi.RevocationHealth
	if cfg.RedisAddr != "" {
		redisStore, err := token.NewRedisRevocationStore(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		if err != nil {
			slog.Warn("Redis unavailable, token revocation disabled", "err", err)
		} else {
			revocations = redisStore
			revocationHealth = redisStore
			defer redisStore.Close()
		}
	}

	var (
		publisher    events.Publisher = events.NoopPublisher{}
		consumer     events.Consumer  = events.NoopConsumer{}
		brokerHealth httpapi.BrokerHealth
	)
	if cfg.BrokerURL != "" {
		bus, err := events.DialRabbit(cfg.BrokerURL)
		if err != nil {
			slog.Warn("RabbitMQ unavailable, event pipeline disabled", "err", err)
		} else {
			publisher = bus
			consumer = bus
			brokerHealth = bus
			defer bus.Close()
		}
	}

	var mailer notify.Mailer = notify.NoopMailer{}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
	}

	subscriptions := subscription.NewService(st, clk, subscription.Limits{
		Free:   cfg.AIChatLimitFree,
		Trial:  cfg.AIChatLimitTrial,
		Active: cfg.AIChatLimitPaid,
	}, cfg.TrialDays, cfg.SubscriptionDays)

	authSvc := auth.NewService(st, tokens, revocations, subscriptions, clk, cfg.DefaultCurrency)

	reportCache := reporting.NewCache()
	reports := reporting.NewService(st, reportCache, clk)
	txns := transactions.NewService(st, reports, publisher, clk)

	alerts := notify.NewAlertService(st, mailer, cfg.AppName, 2)

	limiter := ratelimit.New(
		ratelimit.Rule{Capacity: cfg.LoginMaxAttempts, Window: cfg.LoginWindow},
		ratelimit.Rule{Capacity: cfg.RegisterMax, Window: cfg.RegisterWindow},
		clk,
	)

	server := httpapi.NewServer(httpapi.Deps{
		Store:                st,
		Tokens:               tokens,
		Revocations:          revocations,
		Limiter:              limiter,
		Auth:                 authSvc,
		Subscriptions:        subscriptions,
		Transactions:         txns,
		Reports:              reports,
		Clock:                clk,
		Gateway:              payments.NoopGateway{}, // provider adapter slots in here
		BrokerHealth:         brokerHealth,
		RevocationHealth:     revocationHealth,
		AIServiceURL:         cfg.AIServiceURL,
		PaymentWebhookSecret: cfg.PaymentWebhookSecret,
		CORSOrigins:          cfg.CORSOrigins,
	})

	// Anomaly result consumer runs for the life of the process.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loop := anomaly.NewLoop(st, consumer, alerts, clk)
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		if err := loop.Run(loopCtx); err != nil {
			slog.Error("anomaly consumer stopped", "err", err)
		}
	}()

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server failed", "err", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "err", err)
	}

	stopLoop()
	select {
	case <-loopDone:
	case <-time.After(10 * time.Second):
		slog.Warn("anomaly consumer did not stop in time")
	}
	alerts.Shutdown()

	slog.Info("shutdown complete")
}
