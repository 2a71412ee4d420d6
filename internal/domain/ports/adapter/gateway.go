package adapter

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceMeta carries merchant/store identification shown on the invoice.
type InvoiceMeta struct {
	MerchantID string
	StoreName  string
	ServiceID  string
}

// InvoiceStatus is the gateway's view of one invoice's settlement.
type InvoiceStatus struct {
	TotalAmount decimal.Decimal
	AmountPaid  decimal.Decimal
	DueDate     time.Time
}

// BillingGateway is the port for the external payment provider. Every call
// performs network I/O; implementations must bound it with an explicit
// timeout and a finite retry policy. invoiceName is the caller-derived
// correlation name and is the idempotency key for CreateInvoice.
type BillingGateway interface {
	Authenticate(ctx context.Context) (token string, err error)
	CreateInvoice(ctx context.Context, token, invoiceName string, amount decimal.Decimal, meta InvoiceMeta) (invoiceID string, err error)
	ActivateInvoice(ctx context.Context, token, invoiceID string) error
	DeactivateInvoice(ctx context.Context, token, invoiceID string) error
	QueryInvoice(ctx context.Context, token, invoiceName string) (InvoiceStatus, error)
	PaymentLink(ctx context.Context, token, invoiceID string) (string, error)
}
