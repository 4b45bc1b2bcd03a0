// Package transactions is the ledger write path: persist, evict the
// reporting cache, publish the event. Only the persist step can fail the
// request; eviction and publish are best-effort side channels.
package transactions

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/apperr"
	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/events"
	"github.com/financeassistant/backend/internal/reporting"
	"github.com/financeassistant/backend/internal/store"
)

// View is the wire shape of a transaction. Dates travel as YYYY-MM-DD
// strings, amounts as fixed-point decimals.
type View struct {
	ID           int64           `json:"id"`
	Date         string          `json:"date"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	CategoryName *string         `json:"categoryName"`
}

// CreateRequest is the validated input of the write path.
type CreateRequest struct {
	Date        string          `json:"date"` // YYYY-MM-DD
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// Service owns the ledger read and write paths.
type Service struct {
	store     *store.Store
	reporting *reporting.Service
	publisher events.Publisher
	clock     clock.Clock
}

// NewService wires the transaction service.
func NewService(st *store.Store, rep *reporting.Service, pub events.Publisher, clk clock.Clock) *Service {
	return &Service{store: st, reporting: rep, publisher: pub, clock: clk}
}

// List returns a company's transactions, newest first by date.
func (s *Service) List(ctx context.Context, companyID int64) ([]View, error) {
	rows, err := s.store.ListTransactions(ctx, s.store.DB(), companyID)
	if err != nil {
		return nil, err
	}
	out := make([]View, 0, len(rows))
	for _, r := range rows {
		out = append(out, toView(r))
	}
	return out, nil
}

// Create persists the row, then evicts the tenant's report cache and
// publishes the event. The eviction happens after commit but before the
// response, so an immediate re-read never serves the pre-write state.
// A crash between commit and publish drops the event; the anomaly pipeline
// is advisory, so that window is accepted.
func (s *Service) Create(ctx context.Context, companyID int64, req CreateRequest) (*View, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	desc := strings.TrimSpace(req.Description)
	if len(desc) > 512 {
		return nil, apperr.New(apperr.ValidationFailed, "DESCRIPTION_TOO_LONG",
			"Description must be at most 512 characters")
	}

	txn := &domain.Transaction{
		CompanyID:   companyID,
		Date:        date,
		Amount:      req.Amount,
		Description: desc,
		Source:      domain.SourceManual,
	}
	err = s.store.InTx(ctx, func(tx *sql.Tx) error {
		return s.store.CreateTransaction(ctx, tx, txn)
	})
	if err != nil {
		return nil, err
	}

	s.reporting.EvictCompany(companyID)
	s.publisher.PublishNewTransactions(ctx, companyID, []int64{txn.ID})

	v := toView(store.TransactionWithCategory{Transaction: *txn})
	return &v, nil
}

// Delete removes a transaction after re-checking that it belongs to the
// path company. The pipeline already verified tenant ownership; this is
// defense in depth against a row id from another tenant.
func (s *Service) Delete(ctx context.Context, companyID, transactionID int64) error {
	txn, err := s.store.FindTransactionByID(ctx, s.store.DB(), transactionID)
	if err != nil {
		return err
	}
	if txn == nil {
		return apperr.New(apperr.NotFound, "TRANSACTION_NOT_FOUND", "Transaction not found")
	}
	if txn.CompanyID != companyID {
		return apperr.New(apperr.Forbidden, "ACCESS_DENIED", "Access denied")
	}
	if err := s.store.DeleteTransaction(ctx, s.store.DB(), transactionID); err != nil {
		return err
	}
	s.reporting.EvictCompany(companyID)
	return nil
}

func toView(r store.TransactionWithCategory) View {
	return View{
		ID:           r.ID,
		Date:         r.Date.Format("2006-01-02"),
		Amount:       r.Amount,
		Description:  r.Description,
		CategoryName: r.CategoryName,
	}
}

func parseDate(s string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, apperr.New(apperr.ValidationFailed, "INVALID_DATE",
			"Date must be in YYYY-MM-DD format")
	}
	return d, nil
}
