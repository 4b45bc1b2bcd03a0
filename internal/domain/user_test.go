package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }

func TestHasPremiumAccess(t *testing.T) {
	cases := []struct {
		name string
		user User
		want bool
	}{
		{"free never", User{SubscriptionStatus: StatusFree}, false},
		{"active with future expiry", User{
			SubscriptionStatus:    StatusActive,
			SubscriptionExpiresAt: timePtr(now.Add(time.Hour)),
		}, true},
		{"active past expiry", User{
			SubscriptionStatus:    StatusActive,
			SubscriptionExpiresAt: timePtr(now.Add(-time.Hour)),
		}, false},
		{"active without expiry", User{SubscriptionStatus: StatusActive}, true},
		{"trial running", User{
			SubscriptionStatus: StatusTrial,
			TrialStartedAt:     timePtr(now.Add(-24 * time.Hour)),
		}, true},
		{"trial elapsed", User{
			SubscriptionStatus: StatusTrial,
			TrialStartedAt:     timePtr(now.Add(-6 * 24 * time.Hour)),
		}, false},
		{"trial status without start", User{SubscriptionStatus: StatusTrial}, false},
		{"expired", User{SubscriptionStatus: StatusExpired}, false},
		{"cancelled", User{
			SubscriptionStatus:    StatusCancelled,
			SubscriptionExpiresAt: timePtr(now.Add(time.Hour)),
		}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.user.HasPremiumAccess(now, DefaultTrialWindow))
		})
	}
}

func TestTrialWindowIsConfigurable(t *testing.T) {
	// Six days in: expired under the default window, still running when the
	// operator grants ten days.
	u := User{SubscriptionStatus: StatusTrial, TrialStartedAt: timePtr(now.Add(-6 * 24 * time.Hour))}

	assert.False(t, u.HasPremiumAccess(now, DefaultTrialWindow))
	assert.Equal(t, "FREE", u.EffectiveTier(now, DefaultTrialWindow))
	assert.Equal(t, 0, u.TrialDaysRemaining(now, DefaultTrialWindow))

	ten := 10 * 24 * time.Hour
	assert.True(t, u.HasPremiumAccess(now, ten))
	assert.Equal(t, "TRIAL", u.EffectiveTier(now, ten))
	assert.Equal(t, 4, u.TrialDaysRemaining(now, ten))

	// A non-positive window falls back to the default.
	assert.False(t, u.HasPremiumAccess(now, 0))
	assert.Equal(t, "FREE", u.EffectiveTier(now, 0))
}

func TestEffectiveTierCollapsesExpiredStates(t *testing.T) {
	active := User{SubscriptionStatus: StatusActive, SubscriptionExpiresAt: timePtr(now.Add(time.Minute))}
	assert.Equal(t, "ACTIVE", active.EffectiveTier(now, DefaultTrialWindow))

	lapsed := User{SubscriptionStatus: StatusActive, SubscriptionExpiresAt: timePtr(now.Add(-time.Minute))}
	assert.Equal(t, "FREE", lapsed.EffectiveTier(now, DefaultTrialWindow))

	trial := User{SubscriptionStatus: StatusTrial, TrialStartedAt: timePtr(now.Add(-time.Hour))}
	assert.Equal(t, "TRIAL", trial.EffectiveTier(now, DefaultTrialWindow))

	trialOver := User{SubscriptionStatus: StatusTrial, TrialStartedAt: timePtr(now.Add(-DefaultTrialWindow))}
	assert.Equal(t, "FREE", trialOver.EffectiveTier(now, DefaultTrialWindow))

	assert.Equal(t, "FREE", (&User{SubscriptionStatus: StatusCancelled}).EffectiveTier(now, DefaultTrialWindow))
}

func TestTrialDaysRemaining(t *testing.T) {
	u := User{SubscriptionStatus: StatusTrial, TrialStartedAt: timePtr(now)}
	assert.Equal(t, 5, u.TrialDaysRemaining(now, DefaultTrialWindow))

	// 12 hours in: 4.5 days left, rounded up.
	assert.Equal(t, 5, u.TrialDaysRemaining(now.Add(12*time.Hour), DefaultTrialWindow))
	assert.Equal(t, 4, u.TrialDaysRemaining(now.Add(24*time.Hour), DefaultTrialWindow))
	assert.Equal(t, 1, u.TrialDaysRemaining(now.Add(4*24*time.Hour+time.Hour), DefaultTrialWindow))
	assert.Equal(t, 0, u.TrialDaysRemaining(now.Add(DefaultTrialWindow), DefaultTrialWindow))
	assert.Equal(t, 0, u.TrialDaysRemaining(now.Add(30*24*time.Hour), DefaultTrialWindow))

	free := User{SubscriptionStatus: StatusFree}
	assert.Equal(t, 0, free.TrialDaysRemaining(now, DefaultTrialWindow))
}

func TestTrialAlreadyUsed(t *testing.T) {
	assert.False(t, (&User{}).TrialAlreadyUsed())
	assert.True(t, (&User{TrialStartedAt: timePtr(now)}).TrialAlreadyUsed())
	// Still used after the subscription lapses back to FREE.
	u := User{SubscriptionStatus: StatusExpired, TrialStartedAt: timePtr(now.Add(-90 * 24 * time.Hour))}
	assert.True(t, u.TrialAlreadyUsed())
}
