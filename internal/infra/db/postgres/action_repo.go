package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/repository"
)

var _ repository.ActionRepository = (*actionRepo)(nil)

type actionRepo struct{ pool *pgxpool.Pool }

func NewActionRepo(pool *pgxpool.Pool) *actionRepo { return &actionRepo{pool: pool} }

func (r *actionRepo) Create(ctx context.Context, tx repository.Tx, a *model.Action) error {
	params, err := json.Marshal(a.Parameters)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO actions (model, model_id, action, parameters, created_at)
VALUES ($1,$2,$3,$4,NOW())
RETURNING id, created_at;`
	row, err := pickRow(ctx, r.pool, tx, q, a.Model, a.ModelID, a.Action, params)
	if err != nil {
		return err
	}
	if err := row.Scan(&a.ID, &a.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}
