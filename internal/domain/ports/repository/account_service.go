package repository

import (
	"context"

	"fitness-billing/internal/domain/model"
)

// AccountServiceUpdate lists the mutable fields of an account service. A nil
// field means "no change".
type AccountServiceUpdate struct {
	Answers *string
	State   *model.AccountServiceState
}

type AccountServiceRepository interface {
	Create(ctx context.Context, tx Tx, s *model.AccountService) error
	// FindByID takes a FOR UPDATE row lock when called under a transaction.
	// The account service row serializes the one-open-bill check.
	FindByID(ctx context.Context, tx Tx, id int64) (*model.AccountService, error)
	ListByAccount(ctx context.Context, tx Tx, accountID int64) ([]*model.AccountService, error)
	Update(ctx context.Context, tx Tx, id int64, upd AccountServiceUpdate) error
	// SaveWindow persists state plus both window boundaries together.
	SaveWindow(ctx context.Context, tx Tx, s *model.AccountService) error
}
