// Package events adapts the message broker. Both the publisher and the
// consumer are interfaces with a no-op implementation so the process starts
// even when no broker is configured — publish degrades to a logged skip.
package events

import (
	"context"
	"log/slog"
)

// Routing topology shared with the out-of-process anomaly worker.
const (
	Exchange           = "finance.exchange"
	AnomalyQueue       = "ai.anomaly.queue"
	AnomalyResultQueue = "ai.anomaly.results"
	KeyTransactionsNew = "transactions.new"
	KeyAnomaliesFound  = "anomalies.detected"
)

// TransactionEvent is the payload published for new ledger rows.
type TransactionEvent struct {
	CompanyID int64   `json:"companyId"`
	TxnIDs    []int64 `json:"txnIds"`
}

// Publisher fans events out to the broker. Implementations are best-effort:
// failures are logged, never returned to the write path.
type Publisher interface {
	PublishNewTransactions(ctx context.Context, companyID int64, txnIDs []int64)
	Close() error
}

// Consumer delivers raw message bodies from a queue to a handler. Handler
// outcome does not drive redelivery: messages are acked regardless, a
// deliberate availability-over-retry policy for the advisory pipeline.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler func(body []byte)) error
	Close() error
}

// NoopPublisher is selected when BROKER_URL is unset.
type NoopPublisher struct{}

func (NoopPublisher) PublishNewTransactions(_ context.Context, companyID int64, txnIDs []int64) {
	slog.Debug("broker not configured, skipping transaction event", "companyID", companyID, "count", len(txnIDs))
}

func (NoopPublisher) Close() error { return nil }

// NoopConsumer never delivers anything.
type NoopConsumer struct{}

func (NoopConsumer) Consume(ctx context.Context, _ string, _ func([]byte)) error {
	<-ctx.Done()
	return nil
}

func (NoopConsumer) Close() error { return nil }
