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

// Catalog reference data lives in plain lookup repos; the billing core never
// writes these tables.

var (
	_ repository.ServiceRepository       = (*serviceRepo)(nil)
	_ repository.ServiceCostRepository   = (*serviceCostRepo)(nil)
	_ repository.PaymentMethodRepository = (*paymentMethodRepo)(nil)
)

type serviceRepo struct{ pool *pgxpool.Pool }

func NewServiceRepo(pool *pgxpool.Pool) *serviceRepo { return &serviceRepo{pool: pool} }

func (r *serviceRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.Service, error) {
	const q = `SELECT id, id_str, name, questions FROM services WHERE id_str=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, idStr)
	if err != nil {
		return nil, err
	}
	s := &model.Service{}
	if err := row.Scan(&s.ID, &s.IDStr, &s.Name, &s.Questions); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return s, nil
}

type serviceCostRepo struct{ pool *pgxpool.Pool }

func NewServiceCostRepo(pool *pgxpool.Pool) *serviceCostRepo { return &serviceCostRepo{pool: pool} }

func (r *serviceCostRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.ServiceCost, error) {
	const q = `SELECT id, service_id, currency_id_str, cost FROM services_costs WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	sc := &model.ServiceCost{}
	if err := row.Scan(&sc.ID, &sc.ServiceID, &sc.CurrencyIDStr, &sc.Cost); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return sc, nil
}

type paymentMethodRepo struct{ pool *pgxpool.Pool }

func NewPaymentMethodRepo(pool *pgxpool.Pool) *paymentMethodRepo {
	return &paymentMethodRepo{pool: pool}
}

func (r *paymentMethodRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.PaymentMethod, error) {
	const q = `SELECT id, id_str, name, is_deleted FROM payments_methods WHERE id_str=$1 AND NOT is_deleted;`
	row, err := pickRow(ctx, r.pool, tx, q, idStr)
	if err != nil {
		return nil, err
	}
	m := &model.PaymentMethod{}
	if err := row.Scan(&m.ID, &m.IDStr, &m.Name, &m.IsDeleted); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return m, nil
}

func (r *paymentMethodRepo) FindCurrencyByID(ctx context.Context, tx repository.Tx, id int64) (*model.PaymentMethodCurrency, error) {
	const q = `SELECT id, payment_method_id, currency_id_str FROM payments_methods_currencies WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	mc := &model.PaymentMethodCurrency{}
	if err := row.Scan(&mc.ID, &mc.PaymentMethodID, &mc.CurrencyIDStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return mc, nil
}
