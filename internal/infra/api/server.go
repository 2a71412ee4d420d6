package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fitness-billing/internal/domain"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/repository"
	"fitness-billing/internal/usecase"
)

// Server wires the billing API routes to the use cases.
type Server struct {
	payments   usecase.PaymentUseCase
	subs       usecase.SubscriptionUseCase
	promocodes usecase.PromocodeUseCase
	auth       *AuthManager
	log        *zerolog.Logger
}

func NewServer(
	payments usecase.PaymentUseCase,
	subs usecase.SubscriptionUseCase,
	promocodes usecase.PromocodeUseCase,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		payments:   payments,
		subs:       subs,
		promocodes: promocodes,
		auth:       auth,
		log:        logger,
	}
}

// Router builds the full route tree, middleware included.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(TraceID(), Recover(s.log), RequestLog(s.log))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Authenticated(s.auth))

		r.Route("/payments", func(r chi.Router) {
			r.Post("/", s.handleCreatePayment)
			r.Get("/{id}", s.handleGetPayment)
			r.Post("/{id}/cancel", s.handleCancelPayment)
			r.Patch("/{id}", s.handleUpdatePayment)
		})

		r.Route("/account-services", func(r chi.Router) {
			r.Get("/", s.handleListAccountServices)
			r.Post("/", s.handleEnroll)
			r.Get("/{id}", s.handleGetAccountService)
			r.Patch("/{id}", s.handleUpdateAccountService)
			r.Get("/{id}/payments", s.handleListPayments)
		})

		r.Route("/promocodes", func(r chi.Router) {
			r.Get("/check", s.handleCheckPromocode)
			r.Post("/", s.handleCreatePromocode)
			r.Get("/", s.handleListPromocodes)
			r.Get("/{idStr}", s.handleGetPromocode)
			r.Delete("/{idStr}", s.handleDeletePromocode)
		})
	})
	return r
}

// ===== payments =====

type createPaymentRequest struct {
	AccountServiceID        int64  `json:"account_service_id"`
	ServiceCostID           int64  `json:"service_cost_id"`
	PaymentMethod           string `json:"payment_method"`
	PaymentMethodCurrencyID int64  `json:"payment_method_currency_id"`
	Promocode               string `json:"promocode,omitempty"`
}

func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	id, err := s.payments.Create(r.Context(), actor, usecase.CreatePaymentInput{
		AccountServiceID:        req.AccountServiceID,
		ServiceCostID:           req.ServiceCostID,
		PaymentMethod:           req.PaymentMethod,
		PaymentMethodCurrencyID: req.PaymentMethodCurrencyID,
		Promocode:               req.Promocode,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type paymentResponse struct {
	ID               int64              `json:"id"`
	AccountServiceID int64              `json:"account_service_id"`
	Cost             string             `json:"cost"`
	State            model.PaymentState `json:"state"`
	PaymentLink      string             `json:"payment_link,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	out := paymentResponse{
		ID:               p.ID,
		AccountServiceID: p.AccountServiceID,
		Cost:             p.Cost.String(),
		State:            p.State,
		CreatedAt:        p.CreatedAt,
	}
	if p.Data != nil {
		out.PaymentLink = p.Data.PaymentLink
	}
	return out
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.payments.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"payment": toPaymentResponse(p)})
}

func (s *Server) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := s.payments.Cancel(r.Context(), actor, id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

type updatePaymentRequest struct {
	State *model.PaymentState `json:"state,omitempty"`
	Data  *model.GatewayData  `json:"data,omitempty"`
}

func (s *Server) handleUpdatePayment(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if err := s.payments.Update(r.Context(), actor, id, req.State, req.Data); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	list, err := s.payments.ListByAccountService(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]paymentResponse, 0, len(list))
	for _, p := range list {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"payments": out})
}

// ===== account services =====

type enrollRequest struct {
	AccountID int64  `json:"account_id"`
	Service   string `json:"service"`
	Answers   string `json:"answers"`
}

func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	if req.AccountID == 0 {
		req.AccountID = actor.AccountID
	}
	id, err := s.subs.Enroll(r.Context(), actor, req.AccountID, req.Service, req.Answers)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type accountServiceResponse struct {
	ID           int64                     `json:"id"`
	AccountID    int64                     `json:"account_id"`
	ServiceID    int64                     `json:"service_id"`
	State        model.AccountServiceState `json:"state"`
	Answers      string                    `json:"answers,omitempty"`
	DatetimeFrom *time.Time                `json:"datetime_from,omitempty"`
	DatetimeTo   *time.Time                `json:"datetime_to,omitempty"`
}

func (s *Server) handleGetAccountService(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	svc, err := s.subs.Get(r.Context(), actor, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_service": accountServiceResponse{
		ID:           svc.ID,
		AccountID:    svc.AccountID,
		ServiceID:    svc.ServiceID,
		State:        svc.State,
		Answers:      svc.Answers,
		DatetimeFrom: svc.DatetimeFrom,
		DatetimeTo:   svc.DatetimeTo,
	}})
}

func (s *Server) handleListAccountServices(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	accountID := actor.AccountID
	if raw := r.URL.Query().Get("account_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		accountID = id
	}
	list, err := s.subs.ListByAccount(r.Context(), actor, accountID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]accountServiceResponse, 0, len(list))
	for _, svc := range list {
		out = append(out, accountServiceResponse{
			ID:           svc.ID,
			AccountID:    svc.AccountID,
			ServiceID:    svc.ServiceID,
			State:        svc.State,
			Answers:      svc.Answers,
			DatetimeFrom: svc.DatetimeFrom,
			DatetimeTo:   svc.DatetimeTo,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"account_services": out})
}

type updateAccountServiceRequest struct {
	Answers *string                    `json:"answers,omitempty"`
	State   *model.AccountServiceState `json:"state,omitempty"`
}

func (s *Server) handleUpdateAccountService(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req updateAccountServiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	err = s.subs.Update(r.Context(), actor, id, repository.AccountServiceUpdate{
		Answers: req.Answers,
		State:   req.State,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// ===== promocodes =====

func (s *Server) handleCheckPromocode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	currency := q.Get("currency")
	serviceCostID, err := strconv.ParseInt(q.Get("service_cost_id"), 10, 64)
	if code == "" || currency == "" || err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	res, err := s.promocodes.Check(r.Context(), code, currency, serviceCostID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"discount_amount": res.DiscountAmount.String(),
		"promocode_type":  string(res.Type),
		"cost":            res.FinalCost.String(),
	})
}

type createPromocodeRequest struct {
	IDStr         string              `json:"id_str"`
	UsageQuantity int                 `json:"usage_quantity"`
	DateFrom      time.Time           `json:"date_from"`
	DateTo        *time.Time          `json:"date_to,omitempty"`
	Type          model.PromocodeType `json:"type"`
	Currencies    map[string]string   `json:"currencies"` // currency -> amount
}

func (s *Server) handleCreatePromocode(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	var req createPromocodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrInvalidArgument)
		return
	}
	currencies := make(map[string]decimal.Decimal, len(req.Currencies))
	for cur, amount := range req.Currencies {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			writeError(w, domain.ErrInvalidArgument)
			return
		}
		currencies[cur] = d
	}
	id, err := s.promocodes.Create(r.Context(), actor, usecase.CreatePromocodeInput{
		IDStr:         req.IDStr,
		UsageQuantity: req.UsageQuantity,
		DateFrom:      req.DateFrom,
		DateTo:        req.DateTo,
		Type:          req.Type,
		Currencies:    currencies,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

func (s *Server) handleListPromocodes(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	list, err := s.promocodes.List(r.Context(), actor)
	if err != nil {
		writeError(w, err)
		return
	}
	type promo struct {
		ID                int64  `json:"id"`
		IDStr             string `json:"id_str"`
		UsageQuantity     int    `json:"usage_quantity"`
		RemainingQuantity int    `json:"remaining_quantity"`
		Type              string `json:"type"`
	}
	out := make([]promo, 0, len(list))
	for _, p := range list {
		out = append(out, promo{
			ID:                p.ID,
			IDStr:             p.IDStr,
			UsageQuantity:     p.UsageQuantity,
			RemainingQuantity: p.RemainingQuantity,
			Type:              string(p.Type),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"promocodes": out})
}

func (s *Server) handleGetPromocode(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if !actor.IsAdmin() {
		writeError(w, domain.ErrNotEnoughPermissions)
		return
	}
	p, currencies, err := s.promocodes.Get(r.Context(), chi.URLParam(r, "idStr"))
	if err != nil {
		writeError(w, err)
		return
	}
	curs := make(map[string]string, len(currencies))
	for _, c := range currencies {
		curs[c.CurrencyIDStr] = c.Amount.String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"promocode": map[string]any{
			"id":                 p.ID,
			"id_str":             p.IDStr,
			"usage_quantity":     p.UsageQuantity,
			"remaining_quantity": p.RemainingQuantity,
			"date_from":          p.DateFrom,
			"date_to":            p.DateTo,
			"type":               string(p.Type),
			"currencies":         curs,
		},
	})
}

func (s *Server) handleDeletePromocode(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFrom(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := s.promocodes.Delete(r.Context(), actor, chi.URLParam(r, "idStr")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

// ===== helpers =====

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.ErrInvalidArgument
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotEnoughPermissions):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnpaidBillExists),
		errors.Is(err, domain.ErrPaymentCannotBeCancelled):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidPaymentState),
		errors.Is(err, domain.ErrNoRequiredParameters),
		errors.Is(err, domain.ErrInvalidPromocodeType),
		errors.Is(err, domain.ErrPromocodeExpired),
		errors.Is(err, domain.ErrPromocodeWrongCurrency),
		errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrGatewayUnavailable):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
