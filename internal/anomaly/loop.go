// Package anomaly consumes detection results from the broker, persists
// them and fans one notification out per message batch.
package anomaly

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/events"
	"github.com/financeassistant/backend/internal/store"
)

// Notifier receives the saved batch. The call must not block the consumer;
// notify.AlertService satisfies this by queueing onto its worker pool.
type Notifier interface {
	Notify(companyID int64, anomalies []domain.Anomaly)
}

// resultMessage mirrors the worker's JSON output on ai.anomaly.results.
type resultMessage struct {
	CompanyID int64 `json:"companyId"`
	Anomalies []struct {
		ID     *int64          `json:"id"`
		Amount decimal.Decimal `json:"amount"`
	} `json:"anomalies"`
}

// Loop is the long-lived consumer of anomaly detection results.
type Loop struct {
	store    *store.Store
	consumer events.Consumer
	notifier Notifier
	clock    clock.Clock
	logger   *log.Logger
}

// NewLoop wires the consumer.
func NewLoop(st *store.Store, consumer events.Consumer, notifier Notifier, clk clock.Clock) *Loop {
	return &Loop{
		store:    st,
		consumer: consumer,
		notifier: notifier,
		clock:    clk,
		logger:   log.New(log.Writer(), "[ANOMALY] ", log.LstdFlags),
	}
}

// Run consumes ai.anomaly.results until ctx is cancelled. Processing errors
// are logged and the message is acked anyway: the pipeline is advisory and
// favors availability over redelivery. Shutdown drains the in-flight
// message, then stops consuming.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Printf("anomaly result consumer starting on %s", events.AnomalyResultQueue)
	return l.consumer.Consume(ctx, events.AnomalyResultQueue, l.handle)
}

// handle processes one message. Duplicate delivery produces duplicate rows —
// accepted, since the message carries no dedup key.
func (l *Loop) handle(body []byte) {
	var msg resultMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		l.logger.Printf("failed to parse anomaly result: %v", err)
		return
	}
	if len(msg.Anomalies) == 0 {
		l.logger.Printf("no anomalies for company %d", msg.CompanyID)
		return
	}
	l.logger.Printf("received %d anomaly/anomalies for company %d", len(msg.Anomalies), msg.CompanyID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	saved := make([]domain.Anomaly, 0, len(msg.Anomalies))
	for _, entry := range msg.Anomalies {
		a := domain.Anomaly{
			CompanyID:     msg.CompanyID,
			TransactionID: entry.ID,
			Amount:        entry.Amount,
			DetectedAt:    l.clock.Now(),
		}
		if err := l.store.InsertAnomaly(ctx, l.store.DB(), &a); err != nil {
			l.logger.Printf("failed to save anomaly for company %d: %v", msg.CompanyID, err)
			continue
		}
		saved = append(saved, a)
	}

	// One batch, at most one notification.
	if len(saved) > 0 && l.notifier != nil {
		l.notifier.Notify(msg.CompanyID, saved)
	}
}
