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
)

var _ PromocodeUseCase = (*promocodeUC)(nil)

// PromocodeCheckResult is what a successful discount computation yields.
type PromocodeCheckResult struct {
	DiscountAmount decimal.Decimal
	Type           model.PromocodeType
	FinalCost      decimal.Decimal
}

type CreatePromocodeInput struct {
	IDStr         string
	UsageQuantity int
	DateFrom      time.Time
	DateTo        *time.Time
	Type          model.PromocodeType
	// Currency id -> discount amount in that currency.
	Currencies map[string]decimal.Decimal
}

type PromocodeUseCase interface {
	// Check validates the code against the service cost without spending a
	// use. Read-only; safe to expose to clients pre-purchase.
	Check(ctx context.Context, code, currencyIDStr string, serviceCostID int64) (PromocodeCheckResult, error)
	Create(ctx context.Context, actor domain.Actor, in CreatePromocodeInput) (int64, error)
	Delete(ctx context.Context, actor domain.Actor, idStr string) error
	Get(ctx context.Context, idStr string) (*model.Promocode, []*model.PromocodeCurrency, error)
	List(ctx context.Context, actor domain.Actor) ([]*model.Promocode, error)
}

type promocodeUC struct {
	promocodes   repository.PromocodeRepository
	serviceCosts repository.ServiceCostRepository
	actions      repository.ActionRepository
	tm           repository.TransactionManager

	allowBypass bool
	bypassCode  string

	log *zerolog.Logger
}

func NewPromocodeUseCase(
	promocodes repository.PromocodeRepository,
	serviceCosts repository.ServiceCostRepository,
	actions repository.ActionRepository,
	tm repository.TransactionManager,
	allowBypass bool,
	bypassCode string,
	log *zerolog.Logger,
) *promocodeUC {
	return &promocodeUC{
		promocodes:   promocodes,
		serviceCosts: serviceCosts,
		actions:      actions,
		tm:           tm,
		allowBypass:  allowBypass,
		bypassCode:   bypassCode,
		log:          log,
	}
}

func (u *promocodeUC) Check(ctx context.Context, code, currencyIDStr string, serviceCostID int64) (PromocodeCheckResult, error) {
	sc, err := u.serviceCosts.FindByID(ctx, nil, serviceCostID)
	if err != nil {
		return PromocodeCheckResult{}, err
	}
	res, _, err := u.evaluate(ctx, nil, code, currencyIDStr, sc.Cost)
	return res, err
}

func (u *promocodeUC) Create(ctx context.Context, actor domain.Actor, in CreatePromocodeInput) (int64, error) {
	if !actor.IsAdmin() {
		return 0, domain.ErrNotEnoughPermissions
	}
	if !model.ValidPromocodeType(in.Type) {
		return 0, domain.ErrInvalidPromocodeType
	}
	if in.IDStr == "" || in.UsageQuantity <= 0 {
		return 0, domain.ErrInvalidArgument
	}

	p := &model.Promocode{
		IDStr:             in.IDStr,
		UsageQuantity:     in.UsageQuantity,
		RemainingQuantity: in.UsageQuantity,
		DateFrom:          in.DateFrom,
		DateTo:            in.DateTo,
		Type:              in.Type,
	}
	currencies := make([]*model.PromocodeCurrency, 0, len(in.Currencies))
	for cur, amount := range in.Currencies {
		currencies = append(currencies, &model.PromocodeCurrency{CurrencyIDStr: cur, Amount: amount})
	}

	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.promocodes.Create(ctx, tx, p, currencies); err != nil {
			return err
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:   "promocodes",
			ModelID: p.ID,
			Action:  "create",
			Parameters: map[string]any{
				"creator":        actor.AccountID,
				"id_str":         in.IDStr,
				"usage_quantity": in.UsageQuantity,
				"type":           string(in.Type),
				"by_admin":       true,
			},
		})
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (u *promocodeUC) Delete(ctx context.Context, actor domain.Actor, idStr string) error {
	if !actor.IsAdmin() {
		return domain.ErrNotEnoughPermissions
	}
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.promocodes.FindByIDStr(ctx, tx, idStr)
		if err != nil {
			return err
		}
		if err := u.promocodes.Delete(ctx, tx, idStr); err != nil {
			return err
		}
		return u.actions.Create(ctx, tx, &model.Action{
			Model:   "promocodes",
			ModelID: p.ID,
			Action:  "delete",
			Parameters: map[string]any{
				"deleter":  actor.AccountID,
				"by_admin": true,
			},
		})
	})
}

func (u *promocodeUC) Get(ctx context.Context, idStr string) (*model.Promocode, []*model.PromocodeCurrency, error) {
	p, err := u.promocodes.FindByIDStr(ctx, nil, idStr)
	if err != nil {
		return nil, nil, err
	}
	currencies, err := u.promocodes.ListCurrencies(ctx, nil, p.ID)
	if err != nil {
		return nil, nil, err
	}
	return p, currencies, nil
}

func (u *promocodeUC) List(ctx context.Context, actor domain.Actor) ([]*model.Promocode, error) {
	if !actor.IsAdmin() {
		return nil, domain.ErrNotEnoughPermissions
	}
	return u.promocodes.List(ctx, nil)
}

// evaluate validates the code and computes the discounted cost. When called
// under a transaction the promocode row comes back locked, so a following
// Decrement cannot race another purchase. The returned promocode is nil for
// the bypass code.
func (u *promocodeUC) evaluate(ctx context.Context, tx repository.Tx, code, currencyIDStr string, cost decimal.Decimal) (PromocodeCheckResult, *model.Promocode, error) {
	if u.allowBypass && u.bypassCode != "" && code == u.bypassCode {
		u.log.Warn().Str("currency", currencyIDStr).Msg("bypass promocode used")
		return PromocodeCheckResult{
			DiscountAmount: decimal.NewFromInt(100),
			Type:           model.PromocodeTypePercent,
			FinalCost:      model.NominalCost,
		}, nil, nil
	}

	p, err := u.promocodes.FindByIDStr(ctx, tx, code)
	if err != nil {
		return PromocodeCheckResult{}, nil, err
	}
	if !p.Usable(time.Now()) {
		return PromocodeCheckResult{}, nil, domain.ErrPromocodeExpired
	}

	currencies, err := u.promocodes.ListCurrencies(ctx, tx, p.ID)
	if err != nil {
		return PromocodeCheckResult{}, nil, err
	}
	var match *model.PromocodeCurrency
	for _, pc := range currencies {
		if pc.CurrencyIDStr == currencyIDStr {
			match = pc
			break
		}
	}
	if match == nil {
		return PromocodeCheckResult{}, nil, domain.ErrPromocodeWrongCurrency
	}

	return PromocodeCheckResult{
		DiscountAmount: match.Amount,
		Type:           p.Type,
		FinalCost:      model.ApplyDiscount(cost, p.Type, match.Amount),
	}, p, nil
}

// apply is the purchase-time path: validate, compute, then spend exactly one
// use. Must run inside the payment-creation transaction.
func (u *promocodeUC) apply(ctx context.Context, tx repository.Tx, actor domain.Actor, code, currencyIDStr string, cost decimal.Decimal) (decimal.Decimal, *int64, error) {
	res, p, err := u.evaluate(ctx, tx, code, currencyIDStr, cost)
	if err != nil {
		return decimal.Decimal{}, nil, err
	}
	if p == nil { // bypass code spends nothing
		return res.FinalCost, nil, nil
	}
	spent, err := u.promocodes.Decrement(ctx, tx, p.ID)
	if err != nil {
		return decimal.Decimal{}, nil, err
	}
	if !spent {
		return decimal.Decimal{}, nil, domain.ErrPromocodeExpired
	}
	if err := u.actions.Create(ctx, tx, &model.Action{
		Model:   "promocodes",
		ModelID: p.ID,
		Action:  "use",
		Parameters: map[string]any{
			"updater":            actor.AccountID,
			"remaining_quantity": p.RemainingQuantity - 1,
		},
	}); err != nil {
		return decimal.Decimal{}, nil, err
	}
	return res.FinalCost, &p.ID, nil
}
