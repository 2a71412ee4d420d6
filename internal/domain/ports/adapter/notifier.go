package adapter

import (
	"context"

	"github.com/shopspring/decimal"
)

// Notifier announces billing events to the operations channel. Failures are
// logged by callers and never affect the transaction that triggered them.
type Notifier interface {
	PurchaseConfirmed(ctx context.Context, accountID, accountServiceID int64, amount decimal.Decimal, currency string) error
}
