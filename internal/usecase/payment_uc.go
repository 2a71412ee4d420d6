package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/adapter"
	"fitness-billing/internal/domain/ports/repository"
	"fitness-billing/internal/infra/metrics"
)

var _ PaymentUseCase = (*paymentUC)(nil)

type CreatePaymentInput struct {
	AccountServiceID        int64
	ServiceCostID           int64
	PaymentMethod           string
	PaymentMethodCurrencyID int64
	Promocode               string
}

type PaymentUseCase interface {
	// Create persists a payment, opens the remote invoice and returns the
	// payment id. The one-open-bill invariant is enforced for non-admin
	// actors inside the creation transaction.
	Create(ctx context.Context, actor domain.Actor, in CreatePaymentInput) (int64, error)
	// Cancel transitions waiting -> cancelled and deactivates the remote
	// invoice. Any other state fails.
	Cancel(ctx context.Context, actor domain.Actor, id int64) error
	// Update mutates state and/or gateway data. At least one must be given.
	Update(ctx context.Context, actor domain.Actor, id int64, state *model.PaymentState, data *model.GatewayData) error
	Get(ctx context.Context, actor domain.Actor, id int64) (*model.Payment, error)
	ListByAccountService(ctx context.Context, actor domain.Actor, accountServiceID int64) ([]*model.Payment, error)
}

type paymentUC struct {
	payments        repository.PaymentRepository
	accountServices repository.AccountServiceRepository
	serviceCosts    repository.ServiceCostRepository
	paymentMethods  repository.PaymentMethodRepository
	actions         repository.ActionRepository
	promocodes      *promocodeUC
	gateway         adapter.BillingGateway
	tm              repository.TransactionManager
	meta            adapter.InvoiceMeta
	log             *zerolog.Logger
}

func NewPaymentUseCase(
	payments repository.PaymentRepository,
	accountServices repository.AccountServiceRepository,
	serviceCosts repository.ServiceCostRepository,
	paymentMethods repository.PaymentMethodRepository,
	actions repository.ActionRepository,
	promocodes *promocodeUC,
	gateway adapter.BillingGateway,
	tm repository.TransactionManager,
	meta adapter.InvoiceMeta,
	log *zerolog.Logger,
) *paymentUC {
	return &paymentUC{
		payments:        payments,
		accountServices: accountServices,
		serviceCosts:    serviceCosts,
		paymentMethods:  paymentMethods,
		actions:         actions,
		promocodes:      promocodes,
		gateway:         gateway,
		tm:              tm,
		meta:            meta,
		log:             log,
	}
}

// maskNotFound keeps authorization opaque: a non-admin probing an id that
// does not exist gets the same answer as one probing an id they don't own.
func maskNotFound(actor domain.Actor, err error) error {
	if errors.Is(err, domain.ErrNotFound) && !actor.IsAdmin() {
		return domain.ErrNotEnoughPermissions
	}
	return err
}

func (u *paymentUC) Create(ctx context.Context, actor domain.Actor, in CreatePaymentInput) (int64, error) {
	p := &model.Payment{
		AccountServiceID:        in.AccountServiceID,
		ServiceCostID:           in.ServiceCostID,
		PaymentMethodIDStr:      in.PaymentMethod,
		PaymentMethodCurrencyID: in.PaymentMethodCurrencyID,
		State:                   model.PaymentStateCreating,
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// Locks the account service row; concurrent creations for the same
		// subscription serialize here.
		svc, err := u.accountServices.FindByID(ctx, tx, in.AccountServiceID)
		if err != nil {
			return maskNotFound(actor, err)
		}
		if err := actor.Authorize(svc.AccountID); err != nil {
			return err
		}

		open, err := u.payments.HasOpenBill(ctx, tx, svc.ID)
		if err != nil {
			return err
		}
		if open {
			if !actor.IsAdmin() {
				return domain.ErrUnpaidBillExists
			}
			u.log.Warn().
				Int64("account_service_id", svc.ID).
				Int64("admin_account_id", actor.AccountID).
				Msg("open bill check bypassed by admin")
		}

		sc, err := u.serviceCosts.FindByID(ctx, tx, in.ServiceCostID)
		if err != nil {
			return err
		}
		if _, err := u.paymentMethods.FindByIDStr(ctx, tx, in.PaymentMethod); err != nil {
			return err
		}
		mc, err := u.paymentMethods.FindCurrencyByID(ctx, tx, in.PaymentMethodCurrencyID)
		if err != nil {
			return err
		}

		cost := sc.Cost
		if in.Promocode != "" {
			final, promoID, err := u.promocodes.apply(ctx, tx, actor, in.Promocode, mc.CurrencyIDStr, sc.Cost)
			if err != nil {
				return err
			}
			cost = final
			p.PromocodeID = promoID
		}
		p.Cost = cost

		if err := u.payments.Create(ctx, tx, p); err != nil {
			return err
		}

		params := map[string]any{
			"creator":                    actor.AccountID,
			"account_service_id":         in.AccountServiceID,
			"service_cost_id":            in.ServiceCostID,
			"payment_method":             in.PaymentMethod,
			"payment_method_currency_id": in.PaymentMethodCurrencyID,
			"cost":                       cost.String(),
		}
		if actor.IsAdmin() {
			params["by_admin"] = true
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:      "payments",
			ModelID:    p.ID,
			Action:     "create",
			Parameters: params,
		})
	})
	if err != nil {
		return 0, err
	}

	if err := u.openInvoice(ctx, p); err != nil {
		// The payment stays in `creating`; the reconciler expires it if the
		// caller never retries.
		u.log.Error().Err(err).Int64("payment_id", p.ID).Msg("open invoice failed")
		return 0, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}

	metrics.IncPayment(string(model.PaymentStateWaiting))
	return p.ID, nil
}

// openInvoice opens and activates the remote invoice, then flips the payment
// to waiting with its correlation record. The invoice name doubles as the
// idempotency key, so retrying after a partial failure is safe.
func (u *paymentUC) openInvoice(ctx context.Context, p *model.Payment) error {
	token, err := u.gateway.Authenticate(ctx)
	if err != nil {
		return err
	}
	invoiceID, err := u.gateway.CreateInvoice(ctx, token, p.InvoiceName(), p.Cost, u.meta)
	if err != nil {
		return err
	}
	if err := u.gateway.ActivateInvoice(ctx, token, invoiceID); err != nil {
		return err
	}
	link, err := u.gateway.PaymentLink(ctx, token, invoiceID)
	if err != nil {
		return err
	}

	data := &model.GatewayData{
		InvoiceName: p.InvoiceName(),
		UUID:        invoiceID,
		PaymentLink: link,
		EripID:      u.meta.ServiceID,
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.UpdateData(ctx, tx, p.ID, data); err != nil {
			return err
		}
		moved, err := u.payments.UpdateStateIf(ctx, tx, p.ID, model.PaymentStateCreating, model.PaymentStateWaiting)
		if err != nil {
			return err
		}
		if moved {
			p.State = model.PaymentStateWaiting
			p.Data = data
		}
		return nil
	})
}

func (u *paymentUC) Cancel(ctx context.Context, actor domain.Actor, id int64) error {
	var data *model.GatewayData
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, id)
		if err != nil {
			return maskNotFound(actor, err)
		}
		svc, err := u.accountServices.FindByID(ctx, tx, p.AccountServiceID)
		if err != nil {
			return err
		}
		if err := actor.Authorize(svc.AccountID); err != nil {
			return err
		}
		if p.State != model.PaymentStateWaiting {
			return domain.ErrPaymentCannotBeCancelled
		}
		if err := u.payments.UpdateState(ctx, tx, id, model.PaymentStateCancelled); err != nil {
			return err
		}
		data = p.Data
		return u.actions.Create(ctx, tx, &model.Action{
			Model:   "payments",
			ModelID: id,
			Action:  "update",
			Parameters: map[string]any{
				"updater": actor.AccountID,
				"state":   string(model.PaymentStateCancelled),
			},
		})
	})
	if err != nil {
		return err
	}

	metrics.IncPayment(string(model.PaymentStateCancelled))

	// Best effort: the local state is authoritative, a dangling remote
	// invoice only costs the gateway a slot until its due date.
	if data != nil && data.UUID != "" {
		if token, err := u.gateway.Authenticate(ctx); err != nil {
			u.log.Error().Err(err).Int64("payment_id", id).Msg("deactivate invoice: auth failed")
		} else if err := u.gateway.DeactivateInvoice(ctx, token, data.UUID); err != nil {
			u.log.Error().Err(err).Int64("payment_id", id).Msg("deactivate invoice failed")
		}
	}
	return nil
}

func (u *paymentUC) Update(ctx context.Context, actor domain.Actor, id int64, state *model.PaymentState, data *model.GatewayData) error {
	if state == nil && data == nil {
		return domain.ErrNoRequiredParameters
	}
	if state != nil && !model.ValidPaymentState(*state) {
		return domain.ErrInvalidPaymentState
	}

	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, id)
		if err != nil {
			return maskNotFound(actor, err)
		}
		svc, err := u.accountServices.FindByID(ctx, tx, p.AccountServiceID)
		if err != nil {
			return err
		}
		if err := actor.Authorize(svc.AccountID); err != nil {
			return err
		}

		params := map[string]any{"updater": actor.AccountID}
		if state != nil {
			if err := u.payments.UpdateState(ctx, tx, id, *state); err != nil {
				return err
			}
			params["state"] = string(*state)
		}
		if data != nil {
			if err := u.payments.UpdateData(ctx, tx, id, data); err != nil {
				return err
			}
			params["data"] = data.InvoiceName
		}
		if actor.IsAdmin() {
			params["by_admin"] = true
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:      "payments",
			ModelID:    id,
			Action:     "update",
			Parameters: params,
		})
	})
}

func (u *paymentUC) Get(ctx context.Context, actor domain.Actor, id int64) (*model.Payment, error) {
	p, err := u.payments.FindByID(ctx, nil, id)
	if err != nil {
		return nil, maskNotFound(actor, err)
	}
	svc, err := u.accountServices.FindByID(ctx, nil, p.AccountServiceID)
	if err != nil {
		return nil, err
	}
	if err := actor.Authorize(svc.AccountID); err != nil {
		return nil, err
	}
	return p, nil
}

func (u *paymentUC) ListByAccountService(ctx context.Context, actor domain.Actor, accountServiceID int64) ([]*model.Payment, error) {
	svc, err := u.accountServices.FindByID(ctx, nil, accountServiceID)
	if err != nil {
		return nil, maskNotFound(actor, err)
	}
	if err := actor.Authorize(svc.AccountID); err != nil {
		return nil, err
	}
	return u.payments.ListByAccountService(ctx, nil, accountServiceID)
}
