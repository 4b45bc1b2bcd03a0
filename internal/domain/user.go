package domain

import (
	"time"
)

// SubscriptionStatus is the stored subscription state of a user.
// The effective tier the app enforces is derived from status + wall clock —
// see EffectiveTier.
type SubscriptionStatus string

const (
	StatusFree      SubscriptionStatus = "FREE"
	StatusTrial     SubscriptionStatus = "TRIAL"
	StatusActive    SubscriptionStatus = "ACTIVE"
	StatusExpired   SubscriptionStatus = "EXPIRED"
	StatusCancelled SubscriptionStatus = "CANCELLED"
)

// DefaultTrialWindow is the trial length used when the caller passes a
// non-positive window.
const DefaultTrialWindow = 5 * 24 * time.Hour

// User is an account row. Password holds the bcrypt digest, never plaintext.
type User struct {
	ID        int64
	Email     string
	Password  string
	Role      string
	CreatedAt time.Time

	TrialStartedAt        *time.Time
	SubscriptionStatus    SubscriptionStatus
	SubscriptionExpiresAt *time.Time
	ExternalSubscription  string // payment-gateway subscription/payment ref

	AIChatsUsedToday int
	AIChatResetDate  *time.Time // calendar date, time part zero
}

// HasPremiumAccess reports whether the user can reach premium features at
// instant now. Only an unexpired ACTIVE subscription or a trial still inside
// trialWindow qualify; FREE/EXPIRED/CANCELLED never do.
func (u *User) HasPremiumAccess(now time.Time, trialWindow time.Duration) bool {
	switch u.SubscriptionStatus {
	case StatusActive:
		return u.SubscriptionExpiresAt == nil || now.Before(*u.SubscriptionExpiresAt)
	case StatusTrial:
		if u.TrialStartedAt == nil {
			return false
		}
		return now.Before(u.TrialStartedAt.Add(normalizeTrialWindow(trialWindow)))
	default:
		return false
	}
}

// EffectiveTier collapses the stored status to what the app actually
// enforces: ACTIVE, TRIAL or FREE. An expired ACTIVE or TRIAL user is
// effectively FREE even before the stored status is rewritten.
func (u *User) EffectiveTier(now time.Time, trialWindow time.Duration) string {
	switch u.SubscriptionStatus {
	case StatusActive:
		if u.SubscriptionExpiresAt == nil || now.Before(*u.SubscriptionExpiresAt) {
			return "ACTIVE"
		}
		return "FREE"
	case StatusTrial:
		if u.TrialStartedAt != nil && now.Before(u.TrialStartedAt.Add(normalizeTrialWindow(trialWindow))) {
			return "TRIAL"
		}
		return "FREE"
	default:
		return "FREE"
	}
}

// TrialDaysRemaining returns whole days left on the trial, rounded up and
// clamped to [0, window days]. Zero unless the stored status is TRIAL.
func (u *User) TrialDaysRemaining(now time.Time, trialWindow time.Duration) int {
	if u.SubscriptionStatus != StatusTrial {
		return 0
	}
	window := normalizeTrialWindow(trialWindow)
	if u.TrialStartedAt == nil {
		return int(window / (24 * time.Hour))
	}
	remaining := u.TrialStartedAt.Add(window).Sub(now)
	if remaining <= 0 {
		return 0
	}
	days := int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	max := int(window / (24 * time.Hour))
	if days > max {
		days = max
	}
	return days
}

func normalizeTrialWindow(w time.Duration) time.Duration {
	if w <= 0 {
		return DefaultTrialWindow
	}
	return w
}

// TrialAlreadyUsed reports whether the one-shot trial has been consumed.
func (u *User) TrialAlreadyUsed() bool { return u.TrialStartedAt != nil }
