// Package ratelimit throttles authentication attempts per client IP.
// Two named buckets exist per IP: login and register. Buckets live in
// process memory only; loss on restart is acceptable, and cross-replica
// limiting is out of scope for a single-replica deployment.
package ratelimit

import (
	"log"
	"sync"
	"time"

	"github.com/financeassistant/backend/internal/clock"
)

// Bucket names.
const (
	BucketLogin    = "login"
	BucketRegister = "register"
)

// Rule is the capacity and refill window of one bucket class. The full
// capacity is restored every window (interval refill).
type Rule struct {
	Capacity int
	Window   time.Duration
}

// Limiter holds the per-IP buckets for both rules.
type Limiter struct {
	mu           sync.Mutex
	login        map[string]*bucket
	register     map[string]*bucket
	loginRule    Rule
	registerRule Rule
	clock        clock.Clock
	logger       *log.Logger
}

type bucket struct {
	tokens     int
	lastRefill time.Time
}

// New creates a limiter with the given rules. Zero-valued rules fall back
// to the defaults: login 5/min, register 3/10min.
func New(loginRule, registerRule Rule, clk clock.Clock) *Limiter {
	if loginRule.Capacity == 0 {
		loginRule = Rule{Capacity: 5, Window: time.Minute}
	}
	if registerRule.Capacity == 0 {
		registerRule = Rule{Capacity: 3, Window: 10 * time.Minute}
	}
	return &Limiter{
		login:        make(map[string]*bucket),
		register:     make(map[string]*bucket),
		loginRule:    loginRule,
		registerRule: registerRule,
		clock:        clk,
		logger:       log.New(log.Writer(), "[RATE-LIMIT] ", log.LstdFlags),
	}
}

// TryConsume takes one token from the named bucket for ip. Returns false
// when the bucket is empty; the caller surfaces a rate-limited failure.
// Buckets are created lazily on first use.
func (l *Limiter) TryConsume(ip, name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	buckets, rule := l.login, l.loginRule
	if name == BucketRegister {
		buckets, rule = l.register, l.registerRule
	}

	now := l.clock.Now()
	b, ok := buckets[ip]
	if !ok {
		b = &bucket{tokens: rule.Capacity, lastRefill: now}
		buckets[ip] = b
	} else if now.Sub(b.lastRefill) >= rule.Window {
		b.tokens = rule.Capacity
		b.lastRefill = now
	}

	if b.tokens <= 0 {
		l.logger.Printf("bucket %s empty for ip=%s", name, ip)
		return false
	}
	b.tokens--
	return true
}

// ActiveBuckets counts live buckets, exposed for monitoring.
func (l *Limiter) ActiveBuckets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.login) + len(l.register)
}
