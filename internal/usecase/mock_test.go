//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/adapter"
	"fitness-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

// ---- Transaction manager ----

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately without a real transaction. Tests that
// need to observe transaction boundaries assign WithTxFunc.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- Payment repository ----

type MockPaymentRepo struct {
	mu     sync.Mutex
	data   map[int64]*model.Payment
	nextID int64

	CreateFunc        func(ctx context.Context, tx repository.Tx, p *model.Payment) error
	FindByIDFunc      func(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error)
	HasOpenBillFunc   func(ctx context.Context, tx repository.Tx, accountServiceID int64) (bool, error)
	UpdateStateIfFunc func(ctx context.Context, tx repository.Tx, id int64, from, to model.PaymentState) (bool, error)
}

var _ repository.PaymentRepository = (*MockPaymentRepo)(nil)

func NewMockPaymentRepo() *MockPaymentRepo {
	return &MockPaymentRepo{data: map[int64]*model.Payment{}}
}

func (r *MockPaymentRepo) Create(ctx context.Context, tx repository.Tx, p *model.Payment) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, p)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	cp := *p
	r.data[p.ID] = &cp
	return nil
}

func (r *MockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Payment, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPaymentRepo) HasOpenBill(ctx context.Context, tx repository.Tx, accountServiceID int64) (bool, error) {
	if r.HasOpenBillFunc != nil {
		return r.HasOpenBillFunc(ctx, tx, accountServiceID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.AccountServiceID != accountServiceID {
			continue
		}
		if p.State == model.PaymentStateWaiting {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockPaymentRepo) ListByAccountService(ctx context.Context, tx repository.Tx, accountServiceID int64) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.AccountServiceID == accountServiceID {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ListByState(ctx context.Context, tx repository.Tx, state model.PaymentState, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.State == state && (limit <= 0 || len(out) < limit) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) ListStaleCreating(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Payment
	for _, p := range r.data {
		if p.State == model.PaymentStateCreating && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockPaymentRepo) UpdateState(ctx context.Context, tx repository.Tx, id int64, state model.PaymentState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.State = state
	return nil
}

func (r *MockPaymentRepo) UpdateStateIf(ctx context.Context, tx repository.Tx, id int64, from, to model.PaymentState) (bool, error) {
	if r.UpdateStateIfFunc != nil {
		return r.UpdateStateIfFunc(ctx, tx, id, from, to)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok || p.State != from {
		return false, nil
	}
	p.State = to
	return true, nil
}

func (r *MockPaymentRepo) UpdateData(ctx context.Context, tx repository.Tx, id int64, data *model.GatewayData) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	cp := *data
	p.Data = &cp
	return nil
}

// ---- Account service repository ----

type MockAccountServiceRepo struct {
	mu     sync.Mutex
	data   map[int64]*model.AccountService
	nextID int64

	FindByIDFunc   func(ctx context.Context, tx repository.Tx, id int64) (*model.AccountService, error)
	SaveWindowFunc func(ctx context.Context, tx repository.Tx, s *model.AccountService) error
}

var _ repository.AccountServiceRepository = (*MockAccountServiceRepo)(nil)

func NewMockAccountServiceRepo() *MockAccountServiceRepo {
	return &MockAccountServiceRepo{data: map[int64]*model.AccountService{}}
}

func (r *MockAccountServiceRepo) Create(ctx context.Context, tx repository.Tx, s *model.AccountService) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == 0 {
		r.nextID++
		s.ID = r.nextID
	}
	cp := *s
	r.data[s.ID] = &cp
	return nil
}

func (r *MockAccountServiceRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.AccountService, error) {
	if r.FindByIDFunc != nil {
		return r.FindByIDFunc(ctx, tx, id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *MockAccountServiceRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID int64) ([]*model.AccountService, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.AccountService
	for _, s := range r.data {
		if s.AccountID == accountID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *MockAccountServiceRepo) Update(ctx context.Context, tx repository.Tx, id int64, upd repository.AccountServiceUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.data[id]
	if !ok {
		return domain.ErrNotFound
	}
	if upd.Answers != nil {
		s.Answers = *upd.Answers
	}
	if upd.State != nil {
		s.State = *upd.State
	}
	return nil
}

func (r *MockAccountServiceRepo) SaveWindow(ctx context.Context, tx repository.Tx, s *model.AccountService) error {
	if r.SaveWindowFunc != nil {
		return r.SaveWindowFunc(ctx, tx, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.data[s.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.State = s.State
	stored.DatetimeFrom = s.DatetimeFrom
	stored.DatetimeTo = s.DatetimeTo
	return nil
}

// ---- Promocode repository ----

type MockPromocodeRepo struct {
	mu         sync.Mutex
	data       map[string]*model.Promocode
	currencies map[int64][]*model.PromocodeCurrency
	nextID     int64

	DecrementFunc func(ctx context.Context, tx repository.Tx, promocodeID int64) (bool, error)
}

var _ repository.PromocodeRepository = (*MockPromocodeRepo)(nil)

func NewMockPromocodeRepo() *MockPromocodeRepo {
	return &MockPromocodeRepo{
		data:       map[string]*model.Promocode{},
		currencies: map[int64][]*model.PromocodeCurrency{},
	}
}

func (r *MockPromocodeRepo) Create(ctx context.Context, tx repository.Tx, p *model.Promocode, currencies []*model.PromocodeCurrency) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == 0 {
		r.nextID++
		p.ID = r.nextID
	}
	cp := *p
	r.data[p.IDStr] = &cp
	for _, c := range currencies {
		ccp := *c
		ccp.PromocodeID = p.ID
		r.currencies[p.ID] = append(r.currencies[p.ID], &ccp)
	}
	return nil
}

func (r *MockPromocodeRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.Promocode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.data[idStr]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MockPromocodeRepo) ListCurrencies(ctx context.Context, tx repository.Tx, promocodeID int64) ([]*model.PromocodeCurrency, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.PromocodeCurrency
	for _, c := range r.currencies[promocodeID] {
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockPromocodeRepo) List(ctx context.Context, tx repository.Tx) ([]*model.Promocode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Promocode
	for _, p := range r.data {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *MockPromocodeRepo) Decrement(ctx context.Context, tx repository.Tx, promocodeID int64) (bool, error) {
	if r.DecrementFunc != nil {
		return r.DecrementFunc(ctx, tx, promocodeID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.data {
		if p.ID == promocodeID {
			if p.RemainingQuantity <= 0 {
				return false, nil
			}
			p.RemainingQuantity--
			return true, nil
		}
	}
	return false, nil
}

func (r *MockPromocodeRepo) Delete(ctx context.Context, tx repository.Tx, idStr string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.data[idStr]; !ok {
		return domain.ErrNotFound
	}
	delete(r.data, idStr)
	return nil
}

// ---- Catalog repositories ----

type MockServiceRepo struct {
	Services map[string]*model.Service
}

var _ repository.ServiceRepository = (*MockServiceRepo)(nil)

func (r *MockServiceRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.Service, error) {
	if s, ok := r.Services[idStr]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

type MockServiceCostRepo struct {
	Costs map[int64]*model.ServiceCost
}

var _ repository.ServiceCostRepository = (*MockServiceCostRepo)(nil)

func (r *MockServiceCostRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.ServiceCost, error) {
	if c, ok := r.Costs[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

type MockPaymentMethodRepo struct {
	Methods    map[string]*model.PaymentMethod
	Currencies map[int64]*model.PaymentMethodCurrency
}

var _ repository.PaymentMethodRepository = (*MockPaymentMethodRepo)(nil)

func (r *MockPaymentMethodRepo) FindByIDStr(ctx context.Context, tx repository.Tx, idStr string) (*model.PaymentMethod, error) {
	if m, ok := r.Methods[idStr]; ok {
		cp := *m
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (r *MockPaymentMethodRepo) FindCurrencyByID(ctx context.Context, tx repository.Tx, id int64) (*model.PaymentMethodCurrency, error) {
	if c, ok := r.Currencies[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

// ---- Action repository ----

type MockActionRepo struct {
	mu      sync.Mutex
	Actions []*model.Action

	CreateFunc func(ctx context.Context, tx repository.Tx, a *model.Action) error
}

var _ repository.ActionRepository = (*MockActionRepo)(nil)

func (r *MockActionRepo) Create(ctx context.Context, tx repository.Tx, a *model.Action) error {
	if r.CreateFunc != nil {
		return r.CreateFunc(ctx, tx, a)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.Actions = append(r.Actions, &cp)
	return nil
}

// ---- Billing gateway ----

type MockGateway struct {
	AuthenticateFunc      func(ctx context.Context) (string, error)
	CreateInvoiceFunc     func(ctx context.Context, token, invoiceName string, amount decimal.Decimal, meta adapter.InvoiceMeta) (string, error)
	ActivateInvoiceFunc   func(ctx context.Context, token, invoiceID string) error
	DeactivateInvoiceFunc func(ctx context.Context, token, invoiceID string) error
	QueryInvoiceFunc      func(ctx context.Context, token, invoiceName string) (adapter.InvoiceStatus, error)
	PaymentLinkFunc       func(ctx context.Context, token, invoiceID string) (string, error)

	Deactivated []string
}

var _ adapter.BillingGateway = (*MockGateway)(nil)

func (g *MockGateway) Authenticate(ctx context.Context) (string, error) {
	if g.AuthenticateFunc != nil {
		return g.AuthenticateFunc(ctx)
	}
	return "test-token", nil
}

func (g *MockGateway) CreateInvoice(ctx context.Context, token, invoiceName string, amount decimal.Decimal, meta adapter.InvoiceMeta) (string, error) {
	if g.CreateInvoiceFunc != nil {
		return g.CreateInvoiceFunc(ctx, token, invoiceName, amount, meta)
	}
	return "invoice-" + invoiceName, nil
}

func (g *MockGateway) ActivateInvoice(ctx context.Context, token, invoiceID string) error {
	if g.ActivateInvoiceFunc != nil {
		return g.ActivateInvoiceFunc(ctx, token, invoiceID)
	}
	return nil
}

func (g *MockGateway) DeactivateInvoice(ctx context.Context, token, invoiceID string) error {
	if g.DeactivateInvoiceFunc != nil {
		return g.DeactivateInvoiceFunc(ctx, token, invoiceID)
	}
	g.Deactivated = append(g.Deactivated, invoiceID)
	return nil
}

func (g *MockGateway) QueryInvoice(ctx context.Context, token, invoiceName string) (adapter.InvoiceStatus, error) {
	if g.QueryInvoiceFunc != nil {
		return g.QueryInvoiceFunc(ctx, token, invoiceName)
	}
	return adapter.InvoiceStatus{}, nil
}

func (g *MockGateway) PaymentLink(ctx context.Context, token, invoiceID string) (string, error) {
	if g.PaymentLinkFunc != nil {
		return g.PaymentLinkFunc(ctx, token, invoiceID)
	}
	return "https://pay.example/" + invoiceID, nil
}
