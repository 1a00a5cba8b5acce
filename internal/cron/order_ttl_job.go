package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/agrilink/agrilink-backend/pkg/db/models"
	"github.com/agrilink/agrilink-backend/pkg/logger"
)

const orderExpirationDays = 7

// OrderTTLJobParams configure the stale order expiration job.
type OrderTTLJobParams struct {
	Logger     *logger.Logger
	Orders     staleOrderReader
	Settlement orderCanceller
	Expiration int
}

type staleOrderReader interface {
	FindUnpaidBefore(ctx context.Context, cutoff time.Time) ([]models.Order, error)
}

type orderCanceller interface {
	Cancel(ctx context.Context, orderID uuid.UUID, actorID uuid.UUID) error
}

// NewOrderTTLJob builds the cron job that cancels orders whose payment never
// arrived. Each order is cancelled through the settlement service so stock
// release and event emission follow the same path as a manual cancellation.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders reader required")
	}
	if params.Settlement == nil {
		return nil, fmt.Errorf("settlement service required")
	}
	expiration := params.Expiration
	if expiration <= 0 {
		expiration = orderExpirationDays
	}
	return &orderTTLJob{
		logg:       params.Logger,
		orders:     params.Orders,
		settlement: params.Settlement,
		expiration: expiration,
		now:        time.Now,
	}, nil
}

type orderTTLJob struct {
	logg       *logger.Logger
	orders     staleOrderReader
	settlement orderCanceller
	expiration int
	now        func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.expiration) * 24 * time.Hour)
	stale, err := j.orders.FindUnpaidBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("query unpaid orders: %w", err)
	}

	var errs error
	cancelled := 0
	for _, order := range stale {
		if err := j.settlement.Cancel(ctx, order.ID, uuid.Nil); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cancel order %s: %w", order.ID, err))
			continue
		}
		cancelled++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"expiration_days": j.expiration,
		"stale":           len(stale),
		"cancelled":       cancelled,
	})
	j.logg.Info(logCtx, "order ttl sweep complete")
	return errs
}
