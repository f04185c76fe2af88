package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bazaarhub/bazaar-backend/internal/orders"
	"github.com/bazaarhub/bazaar-backend/pkg/db/models"
	"github.com/bazaarhub/bazaar-backend/pkg/enums"
	pkgerrors "github.com/bazaarhub/bazaar-backend/pkg/errors"
	"github.com/bazaarhub/bazaar-backend/pkg/logger"
	"github.com/bazaarhub/bazaar-backend/pkg/metrics"
	"github.com/bazaarhub/bazaar-backend/pkg/money"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox"
	"github.com/bazaarhub/bazaar-backend/pkg/outbox/payloads"
	"github.com/bazaarhub/bazaar-backend/pkg/square"
	sq "github.com/square/square-go-sdk"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

const (
	defaultOrphanAfter    = 30 * time.Minute
	defaultReconcileBatch = 100
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type gatewayOrderReader interface {
	GetOrder(ctx context.Context, orderID string) (*sq.Order, error)
}

type paymentSettler interface {
	SettlePayment(ctx context.Context, payment *models.Payment, gatewayPaymentID string, actor *outbox.Actor) error
}

// PaymentReconcileJobParams configure the pending payment sweep.
type PaymentReconcileJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Orders      orders.Repository
	Gateway     gatewayOrderReader
	Settler     paymentSettler
	Outbox      outboxEmitter
	Metrics     *metrics.CheckoutMetrics
	OrphanAfter time.Duration
	BatchSize   int
}

// NewPaymentReconcileJob builds the job that resolves combined payments left
// pending past OrphanAfter.
func NewPaymentReconcileJob(params PaymentReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("payment settler required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	orphanAfter := params.OrphanAfter
	if orphanAfter <= 0 {
		orphanAfter = defaultOrphanAfter
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &paymentReconcileJob{
		logg:        params.Logger,
		db:          params.DB,
		orders:      params.Orders,
		gateway:     params.Gateway,
		settler:     params.Settler,
		outbox:      params.Outbox,
		metrics:     params.Metrics,
		orphanAfter: orphanAfter,
		batch:       batch,
		now:         time.Now,
	}, nil
}

type paymentReconcileJob struct {
	logg        *logger.Logger
	db          txRunner
	orders      orders.Repository
	gateway     gatewayOrderReader
	settler     paymentSettler
	outbox      outboxEmitter
	metrics     *metrics.CheckoutMetrics
	orphanAfter time.Duration
	batch       int
	now         func() time.Time
}

type reconcileOutcome int

const (
	outcomeUnchanged reconcileOutcome = iota
	outcomeOrphaned
	outcomeSettled
	outcomeFailed
	outcomeMismatch
)

func (j *paymentReconcileJob) Name() string { return "payment-reconcile" }

func (j *paymentReconcileJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.orphanAfter)
	pending, err := j.orders.ListPendingPaymentsBefore(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("list pending payments: %w", err)
	}

	var errs error
	counts := map[reconcileOutcome]int{}
	for i := range pending {
		outcome, err := j.reconcilePayment(ctx, &pending[i])
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		counts[outcome]++
	}
	j.metrics.AddOrphanedPayments(counts[outcomeOrphaned])

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":     cutoff,
		"candidates": len(pending),
		"orphaned":   counts[outcomeOrphaned],
		"settled":    counts[outcomeSettled],
		"failed":     counts[outcomeFailed],
		"mismatched": counts[outcomeMismatch],
	}), "payment reconcile sweep complete")
	return errs
}

func (j *paymentReconcileJob) reconcilePayment(ctx context.Context, payment *models.Payment) (reconcileOutcome, error) {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"payment_id":       payment.ID.String(),
		"gateway_order_id": payment.GatewayOrderID,
	})

	count, err := j.orders.CountOrdersByPaymentRef(logCtx, payment.GatewayOrderID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("count orders for %s: %w", payment.GatewayOrderID, err)
	}
	if count == 0 {
		err := j.markOrphaned(logCtx, payment)
		if errors.Is(err, orders.ErrStatusChanged) {
			return outcomeUnchanged, nil
		}
		if err != nil {
			return outcomeUnchanged, fmt.Errorf("mark payment %s orphaned: %w", payment.ID, err)
		}
		j.logg.Warn(logCtx, "payment has no seller orders; marked orphaned")
		return outcomeOrphaned, nil
	}

	order, err := j.gateway.GetOrder(logCtx, payment.GatewayOrderID)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("fetch gateway order %s: %w", payment.GatewayOrderID, err)
	}

	switch {
	case square.OrderCompleted(order):
		if total := square.OrderTotalMinor(order); total >= 0 && total != payment.AmountMinor {
			j.metrics.IncReconciliationMismatch()
			j.logg.Warn(j.logg.WithFields(logCtx, map[string]any{
				"gateway_total_minor": total,
				"gateway_total":       money.Format(money.FromMinorUnits(total)),
				"amount_minor":        payment.AmountMinor,
			}), "gateway order total does not match payment")
			return outcomeMismatch, nil
		}
		if err := j.settler.SettlePayment(logCtx, payment, square.OrderPaymentID(order), nil); err != nil {
			if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
				return outcomeUnchanged, nil
			}
			return outcomeUnchanged, fmt.Errorf("settle payment %s: %w", payment.ID, err)
		}
		return outcomeSettled, nil
	case square.OrderCanceled(order):
		err := j.db.WithTx(logCtx, func(tx *gorm.DB) error {
			return j.orders.WithTx(tx).MarkPaymentStatus(logCtx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusFailed)
		})
		if errors.Is(err, orders.ErrStatusChanged) {
			return outcomeUnchanged, nil
		}
		if err != nil {
			return outcomeUnchanged, fmt.Errorf("mark payment %s failed: %w", payment.ID, err)
		}
		return outcomeFailed, nil
	default:
		return outcomeUnchanged, nil
	}
}

func (j *paymentReconcileJob) markOrphaned(ctx context.Context, payment *models.Payment) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.orders.WithTx(tx).MarkPaymentStatus(ctx, payment.ID, enums.PaymentStatusPending, enums.PaymentStatusOrphaned); err != nil {
			return err
		}
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentOrphaned,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data: payloads.PaymentOrphanedEvent{
				PaymentID:      payment.ID,
				GatewayOrderID: payment.GatewayOrderID,
				Amount:         payment.Amount,
				CreatedAt:      payment.CreatedAt,
			},
		})
	})
}
