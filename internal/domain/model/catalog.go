package model

import (
	"github.com/shopspring/decimal"
)

// Service is a sellable training/meal plan definition. Only the fields the
// billing core reads are modeled here.
type Service struct {
	ID        int64
	IDStr     string
	Name      string
	Questions string // onboarding questionnaire, snapshotted at enrollment
}

// ServiceCost is the price of a service in one currency. Reference data:
// consumed by the billing core, owned by the catalog.
type ServiceCost struct {
	ID            int64
	ServiceID     int64
	CurrencyIDStr string
	Cost          decimal.Decimal
}

// PaymentMethod is a way to pay (e.g. "erip", "card"), addressed by its
// string id.
type PaymentMethod struct {
	ID        int64
	IDStr     string
	Name      string
	IsDeleted bool
}

// PaymentMethodCurrency binds a payment method to a currency it accepts.
type PaymentMethodCurrency struct {
	ID              int64
	PaymentMethodID int64
	CurrencyIDStr   string
}
