package repository

import (
	"context"
	"time"

	"fitness-billing/internal/domain/model"
)

type PaymentRepository interface {
	Create(ctx context.Context, tx Tx, p *model.Payment) error
	FindByID(ctx context.Context, tx Tx, id int64) (*model.Payment, error)
	// HasOpenBill reports whether the account service already has a payment
	// in state waiting. Payments stuck in creating do not count: their
	// invoice never opened, so the caller must be able to try again.
	// Callers that need the answer to stay true until commit must hold the
	// account service row lock.
	HasOpenBill(ctx context.Context, tx Tx, accountServiceID int64) (bool, error)
	ListByAccountService(ctx context.Context, tx Tx, accountServiceID int64) ([]*model.Payment, error)
	ListByState(ctx context.Context, tx Tx, state model.PaymentState, limit int) ([]*model.Payment, error)
	ListStaleCreating(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Payment, error)
	UpdateState(ctx context.Context, tx Tx, id int64, state model.PaymentState) error
	// UpdateStateIf flips the state only when the current state matches
	// `from`, reporting whether a row changed. This is the single trigger
	// guard for the waiting->paid transition.
	UpdateStateIf(ctx context.Context, tx Tx, id int64, from, to model.PaymentState) (bool, error)
	UpdateData(ctx context.Context, tx Tx, id int64, data *model.GatewayData) error
}
