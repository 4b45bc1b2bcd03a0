package anomaly

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/financeassistant/backend/internal/clock"
	"github.com/financeassistant/backend/internal/domain"
	"github.com/financeassistant/backend/internal/events"
)

type recordingNotifier struct {
	calls []notifyCall
}

type notifyCall struct {
	companyID int64
	anomalies []domain.Anomaly
}

func (n *recordingNotifier) Notify(companyID int64, anomalies []domain.Anomaly) {
	n.calls = append(n.calls, notifyCall{companyID: companyID, anomalies: anomalies})
}

// scriptedConsumer delivers the given bodies and returns.
type scriptedConsumer struct {
	queue  string
	bodies [][]byte
}

func (c *scriptedConsumer) Consume(_ context.Context, queue string, handler func(body []byte)) error {
	c.queue = queue
	for _, b := range c.bodies {
		handler(b)
	}
	return nil
}

func (c *scriptedConsumer) Close() error { return nil }

func newTestLoop(consumer events.Consumer, notifier Notifier) *Loop {
	return NewLoop(nil, consumer, notifier, clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)))
}

func TestRunConsumesResultQueue(t *testing.T) {
	consumer := &scriptedConsumer{}
	loop := newTestLoop(consumer, &recordingNotifier{})
	require.NoError(t, loop.Run(context.Background()))
	assert.Equal(t, events.AnomalyResultQueue, consumer.queue)
}

func TestHandleDropsUnparsableMessage(t *testing.T) {
	notifier := &recordingNotifier{}
	loop := newTestLoop(&scriptedConsumer{}, notifier)

	// Must not panic and must not notify; the message is acked upstream.
	loop.handle([]byte(`{not json`))
	assert.Empty(t, notifier.calls)
}

func TestHandleSkipsEmptyBatch(t *testing.T) {
	notifier := &recordingNotifier{}
	loop := newTestLoop(&scriptedConsumer{}, notifier)

	loop.handle([]byte(`{"companyId": 7, "anomalies": []}`))
	assert.Empty(t, notifier.calls)
}
