package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/repository"
)

var _ repository.PromocodeRepository = (*promocodeRepo)(nil)

type promocodeRepo struct{ pool *pgxpool.Pool }

func NewPromocodeRepo(pool *pgxpool.Pool) *promocodeRepo {
	return &promocodeRepo{pool: pool}
}

const promocodeColumns = `id, id_str, usage_quantity, remaining_quantity, date_from, date_to, type, created_at`

func scanPromocode(row pgx.Row) (*model.Promocode, error) {
	p := &model.Promocode{}
	if err := row.Scan(&p.ID, &p.IDStr, &p.UsageQuantity, &p.RemainingQuantity, &p.DateFrom, &p.DateTo, &p.Type, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *promocodeRepo) Create(ctx context.Context, tx repository.Tx, p *model.Promocode, currencies []*model.PromocodeCurrency) error {
	const q = `
INSERT INTO promocodes (id_str, usage_quantity, remaining_quantity, date_from, date_to, type, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW())
RETURNING id, created_at;`
	row, err := pickRow(ctx, r.pool, tx, q, p.IDStr, p.UsageQuantity, p.RemainingQuantity, p.DateFrom, p.DateTo, p.Type)
	if err != nil {
		return err
	}
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return domain.ErrOperationFailed
	}

	const qc = `INSERT INTO promocodes_currencies (promocode_id, currency_id_str, amount) VALUES ($1,$2,$3) RETURNING id;`
	for _, pc := range currencies {
		pc.PromocodeID = p.ID
		row, err := pickRow(ctx, r.pool, tx, qc, p.ID, pc.CurrencyIDStr, pc.Amount)
		if err != nil {
			return err
		}
		if err := row.Scan(&pc.ID); err != nil {
			return domain.ErrOperationFailed
		}
	}
	return nil
}

func (r *promocodeRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.Promocode, error) {
	q := `SELECT ` + promocodeColumns + ` FROM promocodes WHERE id_str=$1 AND NOT is_deleted`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", idStr)
	if err != nil {
		return nil, err
	}
	return scanPromocode(row)
}

func (r *promocodeRepo) ListCurrencies(ctx context.Context, tx repository.Tx, promocodeID int64) ([]*model.PromocodeCurrency, error) {
	const q = `SELECT id, promocode_id, currency_id_str, amount FROM promocodes_currencies WHERE promocode_id=$1;`
	rows, err := queryRows(ctx, r.pool, tx, q, promocodeID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.PromocodeCurrency
	for rows.Next() {
		pc := &model.PromocodeCurrency{}
		if err := rows.Scan(&pc.ID, &pc.PromocodeID, &pc.CurrencyIDStr, &pc.Amount); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, pc)
	}
	return out, rows.Err()
}

func (r *promocodeRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Promocode, error) {
	const q = `SELECT ` + promocodeColumns + ` FROM promocodes WHERE NOT is_deleted ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Promocode
	for rows.Next() {
		p, err := scanPromocode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Decrement refuses to spend below zero; the WHERE clause is the invariant.
func (r *promocodeRepo) Decrement(ctx context.Context, tx repository.Tx, promocodeID int64) (bool, error) {
	const q = `UPDATE promocodes SET remaining_quantity = remaining_quantity - 1 WHERE id=$1 AND remaining_quantity > 0;`
	cmd, err := execSQL(ctx, r.pool, tx, q, promocodeID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *promocodeRepo) Delete(ctx context.Context, tx repository.Tx, idStr string) error {
	const q = `UPDATE promocodes SET is_deleted=TRUE WHERE id_str=$1 AND NOT is_deleted;`
	cmd, err := execSQL(ctx, r.pool, tx, q, idStr)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
