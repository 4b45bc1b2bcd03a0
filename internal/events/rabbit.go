package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitBus is the AMQP implementation of Publisher and Consumer, holding
// one connection with separate channels for publishing and consuming.
type RabbitBus struct {
	conn    *amqp.Connection
	pubCh   *amqp.Channel
	timeout time.Duration
}

// DialRabbit connects, declares the full topology idempotently and returns
// the bus. Callers fall back to the no-op implementations on error.
func DialRabbit(url string) (*RabbitBus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := declareTopology(ch); err != nil {
		conn.Close()
		return nil, err
	}
	slog.Info("RabbitMQ connected", "exchange", Exchange)
	return &RabbitBus{conn: conn, pubCh: ch, timeout: 5 * time.Second}, nil
}

// declareTopology declares the durable exchange, both queues and their
// bindings. All declarations are idempotent so restarts are safe.
func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(Exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	for _, b := range []struct {
		queue, key string
	}{
		{AnomalyQueue, KeyTransactionsNew},
		{AnomalyResultQueue, KeyAnomaliesFound},
	} {
		if _, err := ch.QueueDeclare(b.queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", b.queue, err)
		}
		if err := ch.QueueBind(b.queue, b.key, Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", b.queue, err)
		}
	}
	return nil
}

// PublishNewTransactions emits the transactions.new event. At-least-once:
// the broker may redeliver, consumers tolerate duplicates. Failures are
// logged at warn and swallowed — the ledger write has already committed.
func (b *RabbitBus) PublishNewTransactions(ctx context.Context, companyID int64, txnIDs []int64) {
	body, err := json.Marshal(TransactionEvent{CompanyID: companyID, TxnIDs: txnIDs})
	if err != nil {
		slog.Warn("marshal transaction event failed", "err", err)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()
	err = b.pubCh.PublishWithContext(ctx, Exchange, KeyTransactionsNew, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		slog.Warn("broker publish failed (non-critical)", "companyID", companyID, "err", err)
		return
	}
	slog.Info("published transaction event", "companyID", companyID, "count", len(txnIDs))
}

// Consume delivers bodies from queue until ctx is cancelled. Each message
// is acked after the handler returns; handler panics are not recovered here
// because the anomaly loop already guards its own processing.
func (b *RabbitBus) Consume(ctx context.Context, queue string, handler func(body []byte)) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp consumer channel: %w", err)
	}
	deliveries, err := ch.ConsumeWithContext(ctx, queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume %s: %w", queue, err)
	}

	for {
		select {
		case <-ctx.Done():
			ch.Close()
			return nil
		case d, ok := <-deliveries:
			if !ok {
				ch.Close()
				return fmt.Errorf("consumer channel for %s closed", queue)
			}
			handler(d.Body)
			if err := d.Ack(false); err != nil {
				slog.Warn("ack failed", "queue", queue, "err", err)
			}
		}
	}
}

// Ping reports broker health for the health endpoint.
func (b *RabbitBus) Ping() error {
	if b.conn.IsClosed() {
		return fmt.Errorf("amqp connection closed")
	}
	return nil
}

// Close tears down the connection and its channels.
func (b *RabbitBus) Close() error {
	return b.conn.Close()
}
