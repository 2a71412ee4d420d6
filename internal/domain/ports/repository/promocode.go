package repository

import (
	"context"

	"fitness-billing/internal/domain/model"
)

type PromocodeRepository interface {
	Create(ctx context.Context, tx Tx, p *model.Promocode, currencies []*model.PromocodeCurrency) error
	// FindByIDStr takes a FOR UPDATE row lock when called under a
	// transaction so that check-then-use stays atomic.
	FindByIDStr(ctx context.Context, tx Tx, idStr string) (*model.Promocode, error)
	ListCurrencies(ctx context.Context, tx Tx, promocodeID int64) ([]*model.PromocodeCurrency, error)
	List(ctx context.Context, tx Tx) ([]*model.Promocode, error)
	// Decrement spends one use. It must refuse to go below zero and report
	// whether a use was actually spent.
	Decrement(ctx context.Context, tx Tx, promocodeID int64) (bool, error)
	Delete(ctx context.Context, tx Tx, idStr string) error
}
