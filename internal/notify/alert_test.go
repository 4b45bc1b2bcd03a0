package notify

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/financeassistant/backend/internal/domain"
)

func TestBuildSubject(t *testing.T) {
	assert.Equal(t, "[AI Finance Assistant] 1 Anomaly Detected in Acme Ltd",
		buildSubject("AI Finance Assistant", 1, "Acme Ltd"))
	assert.Equal(t, "[AI Finance Assistant] 3 Anomalies Detected in Acme Ltd",
		buildSubject("AI Finance Assistant", 3, "Acme Ltd"))
}

func TestFormatAmount(t *testing.T) {
	d := decimal.RequireFromString("-1234.5")
	assert.Equal(t, "₹1234.50", formatAmount(d, "INR"))
	assert.Equal(t, "$1234.50", formatAmount(d, "usd"))
	assert.Equal(t, "EUR 1234.50", formatAmount(d, "EUR"))
}

func TestBuildHTMLBody(t *testing.T) {
	company := &domain.Company{Name: "Acme Ltd", Currency: "USD"}
	txnID := int64(42)
	anomalies := []domain.Anomaly{
		{TransactionID: &txnID, Amount: decimal.RequireFromString("-950.00"),
			DetectedAt: time.Date(2025, 6, 15, 14, 30, 0, 0, time.UTC)},
		{Amount: decimal.RequireFromString("120.00"),
			DetectedAt: time.Date(2025, 6, 15, 14, 31, 0, 0, time.UTC)},
	}

	body := buildHTMLBody("AI Finance Assistant", company, anomalies)
	assert.Contains(t, body, "Acme Ltd")
	assert.Contains(t, body, "2 unusual transaction(s)")
	assert.Contains(t, body, "#42")
	assert.Contains(t, body, "N/A", "nil transaction reference renders as N/A")
	assert.Contains(t, body, "$950.00")
}
