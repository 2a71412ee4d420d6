package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PaymentState string

const (
	PaymentStateCreating  PaymentState = "creating"  // persisted, remote invoice not opened yet
	PaymentStateWaiting   PaymentState = "waiting"   // invoice open at the gateway, awaiting settlement
	PaymentStatePaid      PaymentState = "paid"      // gateway reports full settlement
	PaymentStateExpired   PaymentState = "expired"   // invoice due date passed unpaid
	PaymentStateCancelled PaymentState = "cancelled" // cancelled by the owner or an admin
)

// PaymentStates lists every defined state; Update rejects anything else.
func PaymentStates() []PaymentState {
	return []PaymentState{
		PaymentStateCreating,
		PaymentStateWaiting,
		PaymentStatePaid,
		PaymentStateExpired,
		PaymentStateCancelled,
	}
}

// ValidPaymentState reports whether s is one of the defined states.
func ValidPaymentState(s PaymentState) bool {
	for _, v := range PaymentStates() {
		if v == s {
			return true
		}
	}
	return false
}

// GatewayData is the correlation record persisted on a payment once the
// remote invoice is opened. Stored as JSONB.
type GatewayData struct {
	InvoiceName string `json:"invoice_name"`
	UUID        string `json:"uuid"`
	PaymentLink string `json:"payment_link"`
	EripID      string `json:"erip_id"`
}

// Payment is a monetary transaction attempting to fund an AccountService
// period. Cost is the final price after any promocode discount.
type Payment struct {
	ID                      int64
	AccountServiceID        int64
	ServiceCostID           int64
	PaymentMethodIDStr      string
	PaymentMethodCurrencyID int64
	PromocodeID             *int64
	Cost                    decimal.Decimal
	State                   PaymentState
	Data                    *GatewayData
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// InvoiceName derives the gateway-facing correlation name from the payment
// id. The gateway treats it as an idempotency key for invoice creation, so
// the derivation must stay stable.
func (p *Payment) InvoiceName() string {
	return fmt.Sprintf("payment_%d", p.ID)
}
