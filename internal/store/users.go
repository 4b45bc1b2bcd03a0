package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/financeassistant/backend/internal/domain"
)

const userColumns = `id, email, password, role, created_at,
	trial_started_at, subscription_status, subscription_expires_at,
	external_subscription_ref, ai_chats_used_today, ai_chat_reset_date`

// FindUserByEmail loads a user by case-normalized email. Returns (nil, nil)
// when no such user exists.
func (s *Store) FindUserByEmail(ctx context.Context, q Querier, email string) (*domain.User, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		normalizeEmail(email))
	return scanUser(row)
}

// FindUserByEmailForUpdate locks the user row for the duration of the
// enclosing transaction. Used by quota and trial mutations so concurrent
// requests for the same user serialize on the row lock.
func (s *Store) FindUserByEmailForUpdate(ctx context.Context, tx *sql.Tx, email string) (*domain.User, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`,
		normalizeEmail(email))
	return scanUser(row)
}

// CreateUser inserts a new user and fills in its generated id and created_at.
// The email is lower-cased on write so lookups stay case-insensitive.
func (s *Store) CreateUser(ctx context.Context, q Querier, u *domain.User) error {
	u.Email = normalizeEmail(u.Email)
	if u.Role == "" {
		u.Role = "USER"
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO users (email, password, role, subscription_status, ai_chats_used_today)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		u.Email, u.Password, u.Role, u.SubscriptionStatus, u.AIChatsUsedToday,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// SaveUser persists the mutable subscription fields of an existing user.
func (s *Store) SaveUser(ctx context.Context, q Querier, u *domain.User) error {
	_, err := q.ExecContext(ctx,
		`UPDATE users SET
			trial_started_at = $2,
			subscription_status = $3,
			subscription_expires_at = $4,
			external_subscription_ref = $5,
			ai_chats_used_today = $6,
			ai_chat_reset_date = $7
		 WHERE id = $1`,
		u.ID, nullTime(u.TrialStartedAt), u.SubscriptionStatus,
		nullTime(u.SubscriptionExpiresAt), nullString(u.ExternalSubscription),
		u.AIChatsUsedToday, nullTime(u.AIChatResetDate))
	if err != nil {
		return fmt.Errorf("update user %d: %w", u.ID, err)
	}
	return nil
}

func scanUser(row *sql.Row) (*domain.User, error) {
	var (
		u         domain.User
		trialAt   sql.NullTime
		expiresAt sql.NullTime
		externRef sql.NullString
		resetDate sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.Role, &u.CreatedAt,
		&trialAt, &u.SubscriptionStatus, &expiresAt,
		&externRef, &u.AIChatsUsedToday, &resetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if trialAt.Valid {
		u.TrialStartedAt = &trialAt.Time
	}
	if expiresAt.Valid {
		u.SubscriptionExpiresAt = &expiresAt.Time
	}
	if externRef.Valid {
		u.ExternalSubscription = externRef.String
	}
	if resetDate.Valid {
		u.AIChatResetDate = &resetDate.Time
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
