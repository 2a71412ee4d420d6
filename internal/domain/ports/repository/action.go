package repository

import (
	"context"

	"fitness-billing/internal/domain/model"
)

type ActionRepository interface {
	Create(ctx context.Context, tx Tx, a *model.Action) error
}
