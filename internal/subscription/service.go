// Package subscription owns the tier state machine and the daily AI-chat
// quota. All per-user mutations lock the user row so concurrent requests
// serialize in the database.
package subscription

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/store"
)

// Limits are the per-day AI-chat allowances by effective tier.
type Limits struct {
	Free   int
	Trial  int
	Active int
}

// DefaultLimits matches the shipped tiers.
var DefaultLimits = Limits{Free: 3, Trial: 10, Active: 50}

// Service drives subscription transitions and quota accounting.
type Service struct {
	store            *store.Store
	clock            clock.Clock
	limits           Limits
	trialWindow      time.Duration
	subscriptionTerm time.Duration
}

// NewService wires the subscription service. trialDays is the length of the
// one-shot trial, subscriptionDays the paid term granted per activation or
// renewal (5 and 30 in production).
func NewService(st *store.Store, clk clock.Clock, limits Limits, trialDays, subscriptionDays int) *Service {
	if limits == (Limits{}) {
		limits = DefaultLimits
	}
	if trialDays <= 0 {
		trialDays = int(domain.DefaultTrialWindow / (24 * time.Hour))
	}
	if subscriptionDays <= 0 {
		subscriptionDays = 30
	}
	return &Service{
		store:            st,
		clock:            clk,
		limits:           limits,
		trialWindow:      time.Duration(trialDays) * 24 * time.Hour,
		subscriptionTerm: time.Duration(subscriptionDays) * 24 * time.Hour,
	}
}

// TrialWindow is the configured trial length, for callers deriving tiers.
func (s *Service) TrialWindow() time.Duration { return s.trialWindow }

// DailyLimit returns the AI-chat allowance for a user's effective tier.
func (s *Service) DailyLimit(u *domain.User) int {
	switch u.EffectiveTier(s.clock.Now(), s.trialWindow) {
	case "ACTIVE":
		return s.limits.Active
	case "TRIAL":
		return s.limits.Trial
	default:
		return s.limits.Free
	}
}

// ChatsRemaining reports today's remaining quota without consuming a slot.
func (s *Service) ChatsRemaining(u *domain.User) int {
	limit := s.DailyLimit(u)
	if u.AIChatResetDate == nil || !sameDay(*u.AIChatResetDate, s.clock.Now()) {
		return limit // new day, full allowance
	}
	if remaining := limit - u.AIChatsUsedToday; remaining > 0 {
		return remaining
	}
	return 0
}

// StartTrial begins the one-shot trial. The trial-once property holds even
// across EXPIRED/CANCELLED states: a non-nil trial_started_at always denies.
func (s *Service) StartTrial(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := s.store.InTx(ctx, func(tx *sql.Tx) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
		}
		if u.TrialAlreadyUsed() {
			slog.Warn("trial start denied, already used", "email", u.Email)
			return apperr.New(apperr.ValidationFailed, "TRIAL_ALREADY_USED",
				"Your free trial has already been used. Please upgrade to Pro.")
		}
		now := s.clock.Now()
		u.TrialStartedAt = &now
		u.SubscriptionStatus = domain.StatusTrial
		if err := s.store.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.Info("trial started", "email", out.Email)
	return out, nil
}

// Activate marks the user as a paid subscriber for one term from now and
// records the payment gateway's reference.
func (s *Service) Activate(ctx context.Context, email, externalRef string) error {
	return s.store.InTx(ctx, func(tx *sql.Tx) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
		}
		expiry := s.clock.Now().Add(s.subscriptionTerm)
		u.SubscriptionStatus = domain.StatusActive
		u.SubscriptionExpiresAt = &expiry
		u.ExternalSubscription = externalRef
		if err := s.store.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		slog.Info("subscription activated", "email", email, "expires", expiry)
		return nil
	})
}

// Renew extends the subscription: one term on top of the current expiry if
// it is still in the future, otherwise one term from now.
func (s *Service) Renew(ctx context.Context, email, externalRef string) error {
	return s.store.InTx(ctx, func(tx *sql.Tx) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
		}
		now := s.clock.Now()
		base := now
		if u.SubscriptionExpiresAt != nil && u.SubscriptionExpiresAt.After(now) {
			base = *u.SubscriptionExpiresAt
		}
		expiry := base.Add(s.subscriptionTerm)
		u.SubscriptionStatus = domain.StatusActive
		u.SubscriptionExpiresAt = &expiry
		u.ExternalSubscription = externalRef
		if err := s.store.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		slog.Info("subscription renewed", "email", email, "expires", expiry)
		return nil
	})
}

// Cancel stops renewal. Expiry is left unchanged: the user keeps access
// until the already-paid term runs out.
func (s *Service) Cancel(ctx context.Context, email string) error {
	return s.store.InTx(ctx, func(tx *sql.Tx) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
		}
		u.SubscriptionStatus = domain.StatusCancelled
		if err := s.store.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		slog.Info("subscription cancelled", "email", email)
		return nil
	})
}

// ConsumeAIChat atomically takes one AI-chat slot for the user. The row
// lock guarantees two concurrent requests cannot both succeed on the last
// slot. Returns the remaining allowance after this message.
func (s *Service) ConsumeAIChat(ctx context.Context, email string) (remaining int, err error) {
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		u, err := s.store.FindUserByEmailForUpdate(ctx, tx, email)
		if err != nil {
			return err
		}
		if u == nil {
			return apperr.New(apperr.NotFound, "USER_NOT_FOUND", "User not found")
		}
		now := s.clock.Now()
		if u.AIChatResetDate == nil || !sameDay(*u.AIChatResetDate, now) {
			today := truncateToDay(now)
			u.AIChatsUsedToday = 0
			u.AIChatResetDate = &today
		}
		limit := s.DailyLimit(u)
		if u.AIChatsUsedToday >= limit {
			slog.Warn("AI chat quota exhausted", "email", u.Email, "limit", limit)
			return apperr.New(apperr.QuotaExceeded, "DAILY_LIMIT_EXCEEDED",
				"You've used all your AI chats for today. Resets at midnight.")
		}
		u.AIChatsUsedToday++
		if err := s.store.SaveUser(ctx, tx, u); err != nil {
			return err
		}
		remaining = limit - u.AIChatsUsedToday
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func truncateToDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
