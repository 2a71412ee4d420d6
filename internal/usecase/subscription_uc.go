package usecase

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/repository"
	"fitness-billing/internal/infra/metrics"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SettlementResult describes a confirmed payment for downstream consumers
// (notifier, metrics).
type SettlementResult struct {
	Extended         bool
	AccountID        int64
	AccountServiceID int64
	Amount           decimal.Decimal
	Currency         string
}

type SubscriptionUseCase interface {
	// Enroll creates the subscription record in state `creation`, taking a
	// snapshot of the service's onboarding questions.
	Enroll(ctx context.Context, actor domain.Actor, accountID int64, serviceIDStr, answers string) (int64, error)
	Update(ctx context.Context, actor domain.Actor, id int64, upd repository.AccountServiceUpdate) error
	Get(ctx context.Context, actor domain.Actor, id int64) (*model.AccountService, error)
	ListByAccount(ctx context.Context, actor domain.Actor, accountID int64) ([]*model.AccountService, error)
	// Settle flips the payment waiting -> paid and extends the subscription
	// window, all in one transaction. The conditional state flip is the
	// single trigger: a payment that is already paid extends nothing, so
	// re-running reconciliation is idempotent. Extended is false when the
	// flip lost (another run got there first).
	Settle(ctx context.Context, paymentID int64) (SettlementResult, error)
}

type subscriptionUC struct {
	accountServices repository.AccountServiceRepository
	services        repository.ServiceRepository
	payments        repository.PaymentRepository
	paymentMethods  repository.PaymentMethodRepository
	actions         repository.ActionRepository
	tm              repository.TransactionManager
	log             *zerolog.Logger
}

func NewSubscriptionUseCase(
	accountServices repository.AccountServiceRepository,
	services repository.ServiceRepository,
	payments repository.PaymentRepository,
	paymentMethods repository.PaymentMethodRepository,
	actions repository.ActionRepository,
	tm repository.TransactionManager,
	log *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		accountServices: accountServices,
		services:        services,
		payments:        payments,
		paymentMethods:  paymentMethods,
		actions:         actions,
		tm:              tm,
		log:             log,
	}
}

func (u *subscriptionUC) Enroll(ctx context.Context, actor domain.Actor, accountID int64, serviceIDStr, answers string) (int64, error) {
	if err := actor.Authorize(accountID); err != nil {
		return 0, err
	}
	svc, err := u.services.FindByIDStr(ctx, nil, serviceIDStr)
	if err != nil {
		return 0, err
	}

	s := &model.AccountService{
		AccountID: accountID,
		ServiceID: svc.ID,
		State:     model.AccountServiceStateCreation,
		Questions: svc.Questions,
		Answers:   answers,
	}
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.accountServices.Create(ctx, tx, s); err != nil {
			return err
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:   "accounts_services",
			ModelID: s.ID,
			Action:  "create",
			Parameters: map[string]any{
				"creator": actor.AccountID,
				"account": accountID,
				"service": serviceIDStr,
				"state":   string(s.State),
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return s.ID, nil
}

func (u *subscriptionUC) Update(ctx context.Context, actor domain.Actor, id int64, upd repository.AccountServiceUpdate) error {
	if upd.Answers == nil && upd.State == nil {
		return domain.ErrNoRequiredParameters
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		s, err := u.accountServices.FindByID(ctx, tx, id)
		if err != nil {
			return maskNotFound(actor, err)
		}
		if err := actor.Authorize(s.AccountID); err != nil {
			return err
		}
		if err := u.accountServices.Update(ctx, tx, id, upd); err != nil {
			return err
		}
		params := map[string]any{"updater": actor.AccountID, "id": id}
		if upd.Answers != nil {
			params["answers"] = *upd.Answers
		}
		if upd.State != nil {
			params["state"] = string(*upd.State)
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:      "accounts_services",
			ModelID:    id,
			Action:     "update",
			Parameters: params,
		})
	})
}

func (u *subscriptionUC) Get(ctx context.Context, actor domain.Actor, id int64) (*model.AccountService, error) {
	s, err := u.accountServices.FindByID(ctx, nil, id)
	if err != nil {
		return nil, maskNotFound(actor, err)
	}
	if err := actor.Authorize(s.AccountID); err != nil {
		return nil, err
	}
	return s, nil
}

func (u *subscriptionUC) ListByAccount(ctx context.Context, actor domain.Actor, accountID int64) ([]*model.AccountService, error) {
	if err := actor.Authorize(accountID); err != nil {
		return nil, err
	}
	return u.accountServices.ListByAccount(ctx, nil, accountID)
}

func (u *subscriptionUC) Settle(ctx context.Context, paymentID int64) (SettlementResult, error) {
	var res SettlementResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, paymentID)
		if err != nil {
			return err
		}
		moved, err := u.payments.UpdateStateIf(ctx, tx, p.ID, model.PaymentStateWaiting, model.PaymentStatePaid)
		if err != nil {
			return err
		}
		if !moved {
			// Already paid (or cancelled/expired meanwhile); nothing to do.
			return nil
		}

		svc, err := u.accountServices.FindByID(ctx, tx, p.AccountServiceID)
		if err != nil {
			return err
		}
		svc.Extend(time.Now())
		if err := u.accountServices.SaveWindow(ctx, tx, svc); err != nil {
			return err
		}

		mc, err := u.paymentMethods.FindCurrencyByID(ctx, tx, p.PaymentMethodCurrencyID)
		if err != nil {
			return err
		}
		res = SettlementResult{
			Extended:         true,
			AccountID:        svc.AccountID,
			AccountServiceID: svc.ID,
			Amount:           p.Cost,
			Currency:         mc.CurrencyIDStr,
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:   "payments",
			ModelID: p.ID,
			Action:  "update",
			Parameters: map[string]any{
				"updater":     "reconciler",
				"state":       string(model.PaymentStatePaid),
				"datetime_to": svc.DatetimeTo.Format(time.RFC3339),
			},
		})
	})
	if err != nil {
		return SettlementResult{}, err
	}
	if res.Extended {
		metrics.IncPayment(string(model.PaymentStatePaid))
		metrics.AddPaymentRevenue(res.Currency, res.Amount)
	}
	return res, nil
}
