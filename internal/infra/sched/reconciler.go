package sched

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"fitness-billing/internal/config"
	"fitness-billing/internal/domain/model"
	"fitness-billing/internal/domain/ports/adapter"
	"fitness-billing/internal/domain/ports/repository"
	"fitness-billing/internal/infra/metrics"
	"fitness-billing/internal/infra/redis"
	"fitness-billing/internal/usecase"
)

// PaymentReconciler periodically polls the gateway for every payment awaiting
// settlement. Fully paid invoices settle the payment and extend the
// subscription window; invoices past their due date expire. A per-payment
// redis lease keeps overlapping runs (or a second process) off the same
// payment, and a per-item failure never aborts the rest of the batch.
type PaymentReconciler struct {
	payments   repository.PaymentRepository
	subs       usecase.SubscriptionUseCase
	gateway    adapter.BillingGateway
	locker     redis.Locker
	notifier   adapter.Notifier
	interval   time.Duration
	batchLimit int
	leaseTTL   time.Duration
	staleAfter time.Duration
	log        *zerolog.Logger

	running atomic.Bool
}

func NewPaymentReconciler(
	payments repository.PaymentRepository,
	subs usecase.SubscriptionUseCase,
	gw adapter.BillingGateway,
	locker redis.Locker,
	notifier adapter.Notifier,
	cfg config.ReconcilerConfig,
	log *zerolog.Logger,
) *PaymentReconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = 200
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = time.Minute
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = time.Hour
	}
	return &PaymentReconciler{
		payments:   payments,
		subs:       subs,
		gateway:    gw,
		locker:     locker,
		notifier:   notifier,
		interval:   cfg.Interval,
		batchLimit: cfg.BatchLimit,
		leaseTTL:   cfg.LeaseTTL,
		staleAfter: cfg.StaleAfter,
		log:        log,
	}
}

// Start blocks until ctx is cancelled.
func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("payment reconciler started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("payment reconciler stopped")
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	// A slow pass must not stack a second one on top of itself.
	if !w.running.CompareAndSwap(false, true) {
		w.log.Warn().Msg("previous reconciliation pass still running, skipping tick")
		return
	}
	defer w.running.Store(false)

	w.expireStale(ctx)

	waiting, err := w.payments.ListByState(ctx, nil, model.PaymentStateWaiting, w.batchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list waiting payments failed")
		return
	}
	for _, p := range waiting {
		if err := w.reconcileOne(ctx, p); err != nil {
			metrics.IncReconcilerFailure()
			w.log.Error().Err(err).Int64("payment_id", p.ID).Msg("reconcile payment failed, will retry next run")
		}
		if ctx.Err() != nil {
			return
		}
	}
	metrics.IncReconcilerRun()
}

func (w *PaymentReconciler) reconcileOne(ctx context.Context, p *model.Payment) error {
	key := fmt.Sprintf("reconcile:payment:%d", p.ID)
	token, err := w.locker.TryLock(ctx, key, w.leaseTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockHeld) {
			metrics.IncReconciled("skipped")
			return nil
		}
		return err
	}
	defer func() {
		if err := w.locker.Unlock(ctx, key, token); err != nil {
			w.log.Warn().Err(err).Str("key", key).Msg("reconciler: unlock failed")
		}
	}()

	gwToken, err := w.gateway.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	status, err := w.gateway.QueryInvoice(ctx, gwToken, p.InvoiceName())
	if err != nil {
		return fmt.Errorf("query invoice %s: %w", p.InvoiceName(), err)
	}

	switch {
	case status.TotalAmount.Equal(status.AmountPaid):
		res, err := w.subs.Settle(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("settle: %w", err)
		}
		if !res.Extended {
			// Another run already settled it; the window moved exactly once.
			metrics.IncReconciled("skipped")
			return nil
		}
		metrics.IncReconciled("settled")
		w.log.Info().
			Int64("payment_id", p.ID).
			Int64("account_service_id", res.AccountServiceID).
			Str("amount", res.Amount.String()).
			Msg("payment settled, subscription extended")
		w.notify(ctx, res)
		return nil

	case time.Now().After(status.DueDate):
		moved, err := w.payments.UpdateStateIf(ctx, nil, p.ID, model.PaymentStateWaiting, model.PaymentStateExpired)
		if err != nil {
			return fmt.Errorf("expire: %w", err)
		}
		if moved {
			metrics.IncPayment(string(model.PaymentStateExpired))
			metrics.IncReconciled("expired")
			w.log.Info().Int64("payment_id", p.ID).Msg("invoice past due, payment expired")
		}
		return nil

	default:
		// Still open and partially or not paid; look again next run.
		return nil
	}
}

// expireStale sweeps payments stuck in `creating`: the invoice was never
// opened (process crash, gateway outage) and nobody will come back for them.
func (w *PaymentReconciler) expireStale(ctx context.Context) {
	cutoff := time.Now().Add(-w.staleAfter)
	stale, err := w.payments.ListStaleCreating(ctx, nil, cutoff, w.batchLimit)
	if err != nil {
		w.log.Error().Err(err).Msg("reconciler: list stale creating payments failed")
		return
	}
	for _, p := range stale {
		moved, err := w.payments.UpdateStateIf(ctx, nil, p.ID, model.PaymentStateCreating, model.PaymentStateExpired)
		if err != nil {
			w.log.Error().Err(err).Int64("payment_id", p.ID).Msg("reconciler: expire stale payment failed")
			continue
		}
		if moved {
			metrics.IncPayment(string(model.PaymentStateExpired))
			w.log.Info().Int64("payment_id", p.ID).Msg("stale creating payment expired")
		}
	}
}

func (w *PaymentReconciler) notify(ctx context.Context, res usecase.SettlementResult) {
	if w.notifier == nil {
		return
	}
	if err := w.notifier.PurchaseConfirmed(ctx, res.AccountID, res.AccountServiceID, res.Amount, res.Currency); err != nil {
		w.log.Warn().Err(err).Int64("account_service_id", res.AccountServiceID).Msg("purchase notification failed")
	}
}
