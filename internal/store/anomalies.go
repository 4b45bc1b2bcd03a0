package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/financeassistant/backend/internal/domain"
)

// InsertAnomaly appends an anomaly record from the detection loop.
func (s *Store) InsertAnomaly(ctx context.Context, q Querier, a *domain.Anomaly) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO anomalies (company_id, transaction_id, amount, detected_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		a.CompanyID, nullInt64(a.TransactionID), a.Amount, a.DetectedAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("insert anomaly: %w", err)
	}
	return nil
}

// ListAnomalies returns a company's anomalies, newest detection first.
func (s *Store) ListAnomalies(ctx context.Context, q Querier, companyID int64) ([]domain.Anomaly, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, company_id, transaction_id, amount, detected_at
		 FROM anomalies WHERE company_id = $1
		 ORDER BY detected_at DESC, id DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list anomalies: %w", err)
	}
	defer rows.Close()

	var out []domain.Anomaly
	for rows.Next() {
		var (
			a     domain.Anomaly
			txnID sql.NullInt64
		)
		if err := rows.Scan(&a.ID, &a.CompanyID, &txnID, &a.Amount, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("scan anomaly: %w", err)
		}
		if txnID.Valid {
			a.TransactionID = &txnID.Int64
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// FindAnomalyByID returns (nil, nil) when absent.
func (s *Store) FindAnomalyByID(ctx context.Context, q Querier, id int64) (*domain.Anomaly, error) {
	var (
		a     domain.Anomaly
		txnID sql.NullInt64
	)
	err := q.QueryRowContext(ctx,
		`SELECT id, company_id, transaction_id, amount, detected_at
		 FROM anomalies WHERE id = $1`, id).
		Scan(&a.ID, &a.CompanyID, &txnID, &a.Amount, &a.DetectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan anomaly: %w", err)
	}
	if txnID.Valid {
		a.TransactionID = &txnID.Int64
	}
	return &a, nil
}

// DeleteAnomaly removes a dismissed anomaly.
func (s *Store) DeleteAnomaly(ctx context.Context, q Querier, id int64) error {
	if _, err := q.ExecContext(ctx, `DELETE FROM anomalies WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete anomaly %d: %w", id, err)
	}
	return nil
}
