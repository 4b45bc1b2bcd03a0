package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/financeassistant/backend/internal/clock"
)

func TestLoginBucketExhaustsAtCapacity(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	l := New(Rule{Capacity: 5, Window: time.Minute}, Rule{}, clk)

	for i := 0; i < 5; i++ {
		assert.True(t, l.TryConsume("10.0.0.1", BucketLogin), "attempt %d should pass", i+1)
	}
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin), "sixth attempt must be rejected")
}

func TestBucketsAreIndependentPerIP(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	l := New(Rule{Capacity: 1, Window: time.Minute}, Rule{}, clk)

	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.True(t, l.TryConsume("10.0.0.2", BucketLogin))
}

func TestLoginAndRegisterBucketsAreSeparate(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	l := New(Rule{Capacity: 1, Window: time.Minute}, Rule{Capacity: 1, Window: time.Minute}, clk)

	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin))
	// Register bucket for the same IP is untouched.
	assert.True(t, l.TryConsume("10.0.0.1", BucketRegister))
}

func TestWindowRefillRestoresFullCapacity(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	l := New(Rule{Capacity: 2, Window: time.Minute}, Rule{}, clk)

	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin))

	clk.Advance(59 * time.Second)
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin), "window not elapsed yet")

	clk.Advance(time.Second)
	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.True(t, l.TryConsume("10.0.0.1", BucketLogin))
	assert.False(t, l.TryConsume("10.0.0.1", BucketLogin))
}

func TestDefaultsApplied(t *testing.T) {
	clk := clock.NewFixed(time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC))
	l := New(Rule{}, Rule{}, clk)

	for i := 0; i < 5; i++ {
		assert.True(t, l.TryConsume("ip", BucketLogin))
	}
	assert.False(t, l.TryConsume("ip", BucketLogin))

	for i := 0; i < 3; i++ {
		assert.True(t, l.TryConsume("ip", BucketRegister))
	}
	assert.False(t, l.TryConsume("ip", BucketRegister))

	assert.Equal(t, 2, l.ActiveBuckets())
}
