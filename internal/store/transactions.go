package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/domain"
)

// CreateTransaction inserts a ledger row and fills in its generated id and
// created_at. Source defaults to MANUAL.
func (s *Store) CreateTransaction(ctx context.Context, q Querier, t *domain.Transaction) error {
	if t.Source == "" {
		t.Source = domain.SourceManual
	}
	err := q.QueryRowContext(ctx,
		`INSERT INTO transactions (company_id, category_id, date, amount, description, source)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		t.CompanyID, nullInt64(t.CategoryID), t.Date, t.Amount, t.Description, t.Source,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// FindTransactionByID returns (nil, nil) when absent.
func (s *Store) FindTransactionByID(ctx context.Context, q Querier, id int64) (*domain.Transaction, error) {
	row := q.QueryRowContext(ctx,
		`SELECT t.id, t.company_id, t.category_id, t.date, t.amount, t.description, t.source, t.created_at
		 FROM transactions t WHERE t.id = $1`, id)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListTransactions returns all of a company's transactions, newest first by
// date. Category names are joined in for the view layer.
func (s *Store) ListTransactions(ctx context.Context, q Querier, companyID int64) ([]TransactionWithCategory, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT t.id, t.company_id, t.category_id, t.date, t.amount, t.description, t.source, t.created_at,
		        c.name
		 FROM transactions t
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.company_id = $1
		 ORDER BY t.date DESC, t.id DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []TransactionWithCategory
	for rows.Next() {
		var (
			t       domain.Transaction
			catID   sql.NullInt64
			catName sql.NullString
		)
		if err := rows.Scan(&t.ID, &t.CompanyID, &catID, &t.Date, &t.Amount,
			&t.Description, &t.Source, &t.CreatedAt, &catName); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if catID.Valid {
			t.CategoryID = &catID.Int64
		}
		twc := TransactionWithCategory{Transaction: t}
		if catName.Valid {
			twc.CategoryName = &catName.String
		}
		out = append(out, twc)
	}
	return out, rows.Err()
}

// TransactionWithCategory pairs a transaction with its resolved category name.
type TransactionWithCategory struct {
	domain.Transaction
	CategoryName *string
}

// DeleteTransaction removes a row by id.
func (s *Store) DeleteTransaction(ctx context.Context, q Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

// SumPositive sums income (amount > 0) over the inclusive date range.
// Zero, never NULL, on empty input.
func (s *Store) SumPositive(ctx context.Context, q Querier, companyID int64, start, end time.Time) (decimal.Decimal, error) {
	return s.sumSigned(ctx, q, companyID, start, end, ">")
}

// SumNegative sums expenses (amount < 0); the result is negative or zero.
// The caller takes the absolute value for display.
func (s *Store) SumNegative(ctx context.Context, q Querier, companyID int64, start, end time.Time) (decimal.Decimal, error) {
	return s.sumSigned(ctx, q, companyID, start, end, "<")
}

func (s *Store) sumSigned(ctx context.Context, q Querier, companyID int64, start, end time.Time, op string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions
		 WHERE company_id = $1 AND amount `+op+` 0
		   AND date >= $2 AND date <= $3`,
		companyID, start, end).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum transactions: %w", err)
	}
	return sum, nil
}

// SumByCategory groups the range by category name, NULLs collapsing into
// "Uncategorized", ordered by descending sum.
func (s *Store) SumByCategory(ctx context.Context, q Querier, companyID int64, start, end time.Time) ([]domain.CategorySum, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT COALESCE(c.name, 'Uncategorized'), COALESCE(SUM(t.amount), 0)
		 FROM transactions t
		 LEFT JOIN categories c ON c.id = t.category_id
		 WHERE t.company_id = $1 AND t.date >= $2 AND t.date <= $3
		 GROUP BY c.name
		 ORDER BY SUM(t.amount) DESC`,
		companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var out []domain.CategorySum
	for rows.Next() {
		var cs domain.CategorySum
		if err := rows.Scan(&cs.Name, &cs.Sum); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		out = append(out, cs)
	}
	return out, rows.Err()
}

// CountTransactions counts rows in the inclusive range.
func (s *Store) CountTransactions(ctx context.Context, q Querier, companyID int64, start, end time.Time) (int64, error) {
	var n int64
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions
		 WHERE company_id = $1 AND date >= $2 AND date <= $3`,
		companyID, start, end).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count transactions: %w", err)
	}
	return n, nil
}

func scanTransaction(row *sql.Row) (*domain.Transaction, error) {
	var (
		t     domain.Transaction
		catID sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.CompanyID, &catID, &t.Date, &t.Amount,
		&t.Description, &t.Source, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if catID.Valid {
		t.CategoryID = &catID.Int64
	}
	return &t, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
