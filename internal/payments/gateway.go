// Package payments fronts the external payment gateway. The app only ever
// creates orders and consumes capture webhooks; provider internals stay on
// the other side of the Gateway interface.
package payments

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured means no gateway provider is wired.
var ErrNotConfigured = errors.New("payment gateway not configured")

// Order is a provider-side payment order awaiting capture. Reference is the
// id the capture webhook later carries back.
type Order struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
}

// Gateway creates subscription payment orders with the external provider.
type Gateway interface {
	CreateOrder(ctx context.Context, email string) (*Order, error)
}

// NoopGateway stands in when no provider is configured. Order creation
// fails with ErrNotConfigured; capture webhooks are unaffected.
type NoopGateway struct{}

func (NoopGateway) CreateOrder(context.Context, string) (*Order, error) {
	return nil, ErrNotConfigured
}
