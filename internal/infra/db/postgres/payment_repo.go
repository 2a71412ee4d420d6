package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, account_service_id, service_cost_id, payment_method_id_str, payment_method_currency_id, promocode_id, cost, state, data, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	p := &model.Payment{}
	var data []byte
	if err := row.Scan(&p.ID, &p.AccountServiceID, &p.ServiceCostID, &p.PaymentMethodIDStr, &p.PaymentMethodCurrencyID, &p.PromocodeID, &p.Cost, &p.State, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if len(data) > 0 {
		gd := &model.GatewayData{}
		if err := json.Unmarshal(data, gd); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		p.Data = gd
	}
	return p, nil
}

func (r *paymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	const q = `
INSERT INTO payments (account_service_id, service_cost_id, payment_method_id_str, payment_method_currency_id, promocode_id, cost, state, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW(),NOW())
RETURNING id, created_at, updated_at;`
	row, err := pickRow(ctx, r.pool, tx, q, p.AccountServiceID, p.ServiceCostID, p.PaymentMethodIDStr, p.PaymentMethodCurrencyID, p.PromocodeID, p.Cost, p.State)
	if err != nil {
		return err
	}
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	q := `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanPayment(row)
}

func (r *paymentRepo) HasOpenBill(ctx context.Context, tx repository.Tx, accountServiceID int64) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM payments WHERE account_service_id=$1 AND state='waiting');`
	row, err := pickRow(ctx, r.pool, tx, q, accountServiceID)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRepo) ListByAccountService(ctx context.Context, tx repository.Tx, accountServiceID int64) ([]*model.Payment, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE account_service_id=$1 ORDER BY created_at DESC;`
	return r.list(ctx, tx, q, accountServiceID)
}

func (r *paymentRepo) ListByState(ctx context.Context, tx repository.Tx, state model.PaymentState, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE state=$1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, state, limit)
}

func (r *paymentRepo) ListStaleCreating(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE state='creating' AND created_at < $1 ORDER BY created_at ASC LIMIT $2;`
	return r.list(ctx, tx, q, olderThan, limit)
}

func (r *paymentRepo) list(ctx context.Context, tx repository.Tx, q string, args ...interface{}) ([]*model.Payment, error) {
	rows, err := queryRows(ctx, r.pool, tx, q, args...)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *paymentRepo) UpdateState(ctx context.Context, tx repository.Tx, id int64, state model.PaymentState) error {
	const q = `UPDATE payments SET state=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, state)
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

func (r *paymentRepo) UpdateStateIf(ctx context.Context, tx repository.Tx, id int64, from, to model.PaymentState) (bool, error) {
	const q = `UPDATE payments SET state=$3, updated_at=NOW() WHERE id=$1 AND state=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return false, err
		}
		return false, domain.ErrOperationFailed
	}
	return cmd.RowsAffected() >= 1, nil
}

func (r *paymentRepo) UpdateData(ctx context.Context, tx repository.Tx, id int64, data *model.GatewayData) error {
	b, err := json.Marshal(data)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	const q = `UPDATE payments SET data=$2, updated_at=NOW() WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, b)
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
