package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks tokens invalidated before their natural expiry.
// Revoke is best-effort: a store outage must not block logout. IsRevoked
// fails open (returns false) on store errors — availability over strictness
// for a single-replica deployment.
type RevocationStore interface {
	Revoke(ctx context.Context, token string, ttl time.Duration)
	IsRevoked(ctx context.Context, token string) bool
}

const revocationPrefix = "jwt:revoked:"

// RedisRevocationStore keeps revoked tokens in Redis with per-key TTL equal
// to the token's remaining validity, so entries expire exactly when the
// token would have.
type RedisRevocationStore struct {
	rdb *redis.Client
}

// NewRedisRevocationStore connects and verifies the connection.
func NewRedisRevocationStore(addr, password string, db int) (*RedisRevocationStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping failed (%s): %w", addr, err)
	}
	slog.Info("Redis connected for token revocation", "addr", addr, "db", db)
	return &RedisRevocationStore{rdb: rdb}, nil
}

func (r *RedisRevocationStore) Revoke(ctx context.Context, token string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := r.rdb.Set(ctx, revocationPrefix+token, "revoked", ttl).Err(); err != nil {
		slog.Warn("failed to store token revocation", "err", err)
	}
}

func (r *RedisRevocationStore) IsRevoked(ctx context.Context, token string) bool {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := r.rdb.Exists(ctx, revocationPrefix+token).Result()
	if err != nil {
		slog.Warn("revocation check failed, treating token as not revoked", "err", err)
		return false
	}
	return n > 0
}

// Ping reports connectivity, used by the health endpoint.
func (r *RedisRevocationStore) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close shuts down the client.
func (r *RedisRevocationStore) Close() error { return r.rdb.Close() }

// NoopRevocationStore never revokes anything. Valid for single-replica
// deployments without Redis: logout simply lets tokens age out.
type NoopRevocationStore struct{}

func (NoopRevocationStore) Revoke(context.Context, string, time.Duration) {}
func (NoopRevocationStore) IsRevoked(context.Context, string) bool        { return false }
