// Package reporting computes cached profit-and-loss reports over the
// ledger's aggregation queries.
package reporting

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/store"
)

// PnLReport is the aggregated view for one company and period.
type PnLReport struct {
	Period       string              `json:"period"`
	StartDate    string              `json:"startDate"` // YYYY-MM-DD
	EndDate      string              `json:"endDate"`
	TotalIncome  decimal.Decimal     `json:"totalIncome"`
	TotalExpense decimal.Decimal     `json:"totalExpense"` // absolute value
	NetProfit    decimal.Decimal     `json:"netProfit"`
	Breakdown    []CategoryBreakdown `json:"breakdown"`
}

// CategoryBreakdown is one row of the per-category section. Amount is an
// absolute value; Type records which side of the ledger the raw sum fell on.
type CategoryBreakdown struct {
	CategoryName string          `json:"categoryName"`
	Amount       decimal.Decimal `json:"amount"`
	Type         string          `json:"type"` // INCOME | EXPENSE
}

// Service is the cached P&L read path.
type Service struct {
	store *store.Store
	cache *Cache
	clock clock.Clock
}

// NewService wires the reporting engine around its own cache.
func NewService(st *store.Store, cache *Cache, clk clock.Clock) *Service {
	return &Service{store: st, cache: cache, clock: clk}
}

// PnL serves the report for (companyID, period), computing and caching on
// miss. The period string itself is the cache key, so "month" and the
// equivalent "YYYY-MM" are distinct entries.
func (s *Service) PnL(ctx context.Context, companyID int64, period string) (*PnLReport, error) {
	if cached, ok := s.cache.Get(companyID, period); ok {
		return cached, nil
	}

	slog.Info("computing P&L report", "companyID", companyID, "period", period)
	report, err := s.compute(ctx, companyID, period)
	if err != nil {
		return nil, err
	}
	s.cache.Put(companyID, period, report)
	return report, nil
}

// EvictCompany is called by the transaction write path after commit.
func (s *Service) EvictCompany(companyID int64) {
	s.cache.EvictCompany(companyID)
}

func (s *Service) compute(ctx context.Context, companyID int64, period string) (*PnLReport, error) {
	r := ResolvePeriod(period, s.clock.Now())
	db := s.store.DB()

	income, err := s.store.SumPositive(ctx, db, companyID, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	rawExpense, err := s.store.SumNegative(ctx, db, companyID, r.Start, r.End)
	if err != nil {
		return nil, err
	}
	sums, err := s.store.SumByCategory(ctx, db, companyID, r.Start, r.End)
	if err != nil {
		return nil, err
	}

	expense := rawExpense.Abs()
	return &PnLReport{
		Period:       period,
		StartDate:    r.Start.Format("2006-01-02"),
		EndDate:      r.End.Format("2006-01-02"),
		TotalIncome:  income,
		TotalExpense: expense,
		NetProfit:    income.Sub(expense),
		Breakdown:    buildBreakdown(sums),
	}, nil
}

func buildBreakdown(sums []domain.CategorySum) []CategoryBreakdown {
	out := make([]CategoryBreakdown, 0, len(sums))
	for _, cs := range sums {
		kind := "INCOME"
		if cs.Sum.IsNegative() {
			kind = "EXPENSE"
		}
		name := cs.Name
		if name == "" {
			name = "Uncategorized"
		}
		out = append(out, CategoryBreakdown{
			CategoryName: name,
			Amount:       cs.Sum.Abs(),
			Type:         kind,
		})
	}
	return out
}
