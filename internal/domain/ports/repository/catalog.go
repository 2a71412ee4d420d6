package repository

import (
	"context"

	"fitness-billing/internal/domain/model"
)

// Catalog reference data: read-only from the billing core's point of view.

type ServiceRepository interface {
	FindByIDStr(ctx context.Context, tx Tx, idStr string) (*model.Service, error)
}

type ServiceCostRepository interface {
	FindByID(ctx context.Context, tx Tx, id int64) (*model.ServiceCost, error)
}

type PaymentMethodRepository interface {
	FindByIDStr(ctx context.Context, tx Tx, idStr string) (*model.PaymentMethod, error)
	FindCurrencyByID(ctx context.Context, tx Tx, id int64) (*model.PaymentMethodCurrency, error)
}
