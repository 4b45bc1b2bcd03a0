package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction source tags.
const (
	SourceManual   = "MANUAL"
	SourceImported = "IMPORTED"
	SourceScanned  = "SCANNED"
)

// Transaction is a single ledger entry. Sign convention: amount > 0 is
// income, amount < 0 is expense. Zero is tolerated by aggregation.
type Transaction struct {
	ID          int64
	CompanyID   int64
	CategoryID  *int64
	Date        time.Time // calendar date, time part zero
	Amount      decimal.Decimal
	Description string
	Source      string
	CreatedAt   time.Time
}

// Category labels transactions for the P&L breakdown. A nil CompanyID means
// the category is global. Never required on write.
type Category struct {
	ID        int64
	CompanyID *int64
	Name      string
	Type      string // INCOME | EXPENSE
}

// Anomaly is a suspicious transaction flagged by the detection worker.
// TransactionID is nullable so the record survives source-txn deletion.
type Anomaly struct {
	ID            int64
	CompanyID     int64
	TransactionID *int64
	Amount        decimal.Decimal
	DetectedAt    time.Time
}

// CategorySum is one row of the per-category aggregation, ordered by
// descending sum. Nameless categories collapse into "Uncategorized".
type CategorySum struct {
	Name string
	Sum  decimal.Decimal
}
