package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/financeassistant/backend/internal/domain"
)

// CreateCompany inserts a company and fills in its generated id.
func (s *Store) CreateCompany(ctx context.Context, q Querier, c *domain.Company) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO companies (owner_user_id, name, currency)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.OwnerID, c.Name, c.Currency,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

// FindCompanyByID returns (nil, nil) when absent.
func (s *Store) FindCompanyByID(ctx context.Context, q Querier, id int64) (*domain.Company, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, owner_user_id, name, currency, created_at
		 FROM companies WHERE id = $1`, id)
	return scanCompany(row)
}

// FindFirstCompanyByOwner returns the owner's earliest company. The token
// binds this one at issue time.
func (s *Store) FindFirstCompanyByOwner(ctx context.Context, q Querier, ownerID int64) (*domain.Company, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, owner_user_id, name, currency, created_at
		 FROM companies WHERE owner_user_id = $1
		 ORDER BY id ASC LIMIT 1`, ownerID)
	return scanCompany(row)
}

// ExistsCompanyWithOwner is the ownership check behind the request pipeline's
// third stage.
func (s *Store) ExistsCompanyWithOwner(ctx context.Context, q Querier, companyID, ownerID int64) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM companies WHERE id = $1 AND owner_user_id = $2)`,
		companyID, ownerID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ownership check: %w", err)
	}
	return exists, nil
}

func scanCompany(row *sql.Row) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.Currency, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan company: %w", err)
	}
	return &c, nil
}
