package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromocodeType string

const (
	PromocodeTypePercent PromocodeType = "percent" // amount is a percentage of the cost
	PromocodeTypeAmount  PromocodeType = "amount"  // amount is an absolute subtraction
)

func PromocodeTypes() []PromocodeType {
	return []PromocodeType{PromocodeTypePercent, PromocodeTypeAmount}
}

func ValidPromocodeType(t PromocodeType) bool {
	return t == PromocodeTypePercent || t == PromocodeTypeAmount
}

// NominalCost is the floor any discounted price is clamped to. A promocode
// can make a service almost free, never free.
var NominalCost = decimal.RequireFromString("0.01")

// Promocode is a discount code with a usage budget and a validity window.
// DateTo nil means no expiry date.
type Promocode struct {
	ID                int64
	IDStr             string
	UsageQuantity     int
	RemainingQuantity int
	DateFrom          time.Time
	DateTo            *time.Time
	Type              PromocodeType
	CreatedAt         time.Time
}

// Usable reports whether the code can still be applied on the given date.
func (p *Promocode) Usable(today time.Time) bool {
	day := NormalizeDay(today)
	if day.Before(NormalizeDay(p.DateFrom)) {
		return false
	}
	if p.DateTo != nil && day.After(NormalizeDay(*p.DateTo)) {
		return false
	}
	return p.RemainingQuantity > 0
}

// PromocodeCurrency gives the discount amount of a promocode in one
// currency. For percent codes Amount is the percentage value.
type PromocodeCurrency struct {
	ID            int64
	PromocodeID   int64
	CurrencyIDStr string
	Amount        decimal.Decimal
}

// ApplyDiscount computes the final cost after subtracting the discount,
// clamped to NominalCost so the result is never zero or negative.
func ApplyDiscount(cost decimal.Decimal, typ PromocodeType, amount decimal.Decimal) decimal.Decimal {
	var final decimal.Decimal
	switch typ {
	case PromocodeTypePercent:
		final = cost.Sub(cost.Mul(amount).Div(decimal.NewFromInt(100)))
	case PromocodeTypeAmount:
		final = cost.Sub(amount)
	default:
		final = cost
	}
	if final.LessThan(NominalCost) {
		return NominalCost
	}
	return final
}
