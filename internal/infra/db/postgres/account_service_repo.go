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

var _ repository.AccountServiceRepository = (*accountServiceRepo)(nil)

type accountServiceRepo struct{ pool *pgxpool.Pool }

func NewAccountServiceRepo(pool *pgxpool.Pool) *accountServiceRepo {
	return &accountServiceRepo{pool: pool}
}

const accountServiceColumns = `id, account_id, service_id, state, questions, answers, datetime_from, datetime_to, created_at, updated_at`

func scanAccountService(row pgx.Row) (*model.AccountService, error) {
	s := &model.AccountService{}
	if err := row.Scan(&s.ID, &s.AccountID, &s.ServiceID, &s.State, &s.Questions, &s.Answers, &s.DatetimeFrom, &s.DatetimeTo, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

func (r *accountServiceRepo) Create(ctx context.Context, tx repository.Tx, s *model.AccountService) error {
	const q = `
INSERT INTO accounts_services (account_id, service_id, state, questions, answers, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW(),NOW())
RETURNING id, created_at, updated_at;`
	row, err := pickRow(ctx, r.pool, tx, q, s.AccountID, s.ServiceID, s.State, s.Questions, s.Answers)
	if err != nil {
		return err
	}
	if err := row.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *accountServiceRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.AccountService, error) {
	q := `SELECT ` + accountServiceColumns + ` FROM accounts_services WHERE id=$1`
	if inTx(tx) {
		q += " FOR UPDATE"
	}
	row, err := pickRow(ctx, r.pool, tx, q+";", id)
	if err != nil {
		return nil, err
	}
	return scanAccountService(row)
}

func (r *accountServiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.AccountService, error) {
	const q = `SELECT ` + accountServiceColumns + ` FROM accounts_services WHERE account_id=$1 ORDER BY created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return nil, err
		}
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	var out []*model.AccountService
	for rows.Next() {
		s, err := scanAccountService(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *accountServiceRepo) Update(ctx context.Context, tx repository.Tx, id int64, upd repository.AccountServiceUpdate) error {
	const q = `
UPDATE accounts_services
   SET answers = COALESCE($2, answers),
       state   = COALESCE($3, state),
       updated_at = NOW()
 WHERE id = $1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, upd.Answers, upd.State)
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

func (r *accountServiceRepo) SaveWindow(ctx context.Context, tx repository.Tx, s *model.AccountService) error {
	const q = `
UPDATE accounts_services
   SET state=$2, datetime_from=$3, datetime_to=$4, updated_at=NOW()
 WHERE id=$1;`
	cmd, err := execSQL(ctx, r.pool, tx, q, s.ID, s.State, s.DatetimeFrom, s.DatetimeTo)
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
