// Package collector advances freshly created orders to OPEN by capturing
// their remote detail snapshot and deriving the trigger schedule.
package collector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/scheduler"
)

type DetailFetcher interface {
	GetShipmentOrder(ctx context.Context, orderNumber string) (*intelipost.OrderDetail, []byte, error)
}

type OrderStore interface {
	ListByStatus(ctx context.Context, status repository.ProcessStatus) ([]*repository.Order, error)
	MarkOpen(ctx context.Context, upd repository.OpenUpdate) error
}

type Collector struct {
	orders  OrderStore
	fetcher DetailFetcher
	rnd     *rand.Rand
	now     func() time.Time
	logger  *zap.Logger
	audit   audit.Publisher
}

func New(orders OrderStore, fetcher DetailFetcher, rnd *rand.Rand, now func() time.Time, logger *zap.Logger, auditPub audit.Publisher) *Collector {
	return &Collector{
		orders:  orders,
		fetcher: fetcher,
		rnd:     rnd,
		now:     now,
		logger:  logger,
		audit:   auditPub,
	}
}

// Run processes every CREATED order once. Per-order failures leave the
// row untouched for the next scheduled invocation; only listing failures
// abort the pass.
func (c *Collector) Run(ctx context.Context) error {
	orders, err := c.orders.ListByStatus(ctx, repository.StatusCreated)
	if err != nil {
		return fmt.Errorf("failed to list created orders: %w", err)
	}
	if len(orders) == 0 {
		c.logger.Info("no new orders to query")
		return nil
	}

	for _, order := range orders {
		if err := c.processOrder(ctx, order.OrderNumber); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("collect").Inc()
			c.logger.Error("failed to query order, will retry next run",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (c *Collector) processOrder(ctx context.Context, orderNumber string) error {
	detail, raw, err := c.fetcher.GetShipmentOrder(ctx, orderNumber)
	if err != nil {
		return err
	}

	latestState := "N/A"
	if len(detail.Volumes) > 0 && detail.Volumes[0].State != "" {
		latestState = detail.Volumes[0].State
	}

	// All three triggers are set together at the OPEN transition; a
	// snapshot without both dates cannot be scheduled and is treated as
	// a malformed response.
	if detail.CreatedISO == "" || detail.EstimatedDeliveryDateISO == "" {
		return fmt.Errorf("detail snapshot missing created/estimated dates")
	}
	createdAt, err := time.Parse(time.RFC3339, detail.CreatedISO)
	if err != nil {
		return fmt.Errorf("invalid created_iso %q: %w", detail.CreatedISO, err)
	}
	estimated, err := time.Parse(time.RFC3339, detail.EstimatedDeliveryDateISO)
	if err != nil {
		return fmt.Errorf("invalid estimated_delivery_date_iso %q: %w", detail.EstimatedDeliveryDateISO, err)
	}

	triggers := scheduler.Compute(createdAt, estimated, c.rnd)
	now := c.now()

	upd := repository.OpenUpdate{
		OrderNumber:           orderNumber,
		LatestVolumeState:     latestState,
		CreatedAt:             detail.CreatedISO,
		EstimatedDeliveryDate: detail.EstimatedDeliveryDateISO,
		DeliveryMethodID:      detail.DeliveryMethodID.String(),
		RawSnapshot:           string(raw),
		TriggerInTransit:      triggers.InTransit.Format(repository.DateOnly),
		TriggerToBeDelivered:  triggers.ToBeDelivered.Format(repository.DateOnly),
		TriggerDelivered:      triggers.Delivered.Format(repository.DateOnly),
		UpdatedInDB:           now.Format(time.RFC3339),
	}
	if err := c.orders.MarkOpen(ctx, upd); err != nil {
		return fmt.Errorf("failed to persist open transition: %w", err)
	}

	metrics.OrdersOpenedTotal.Inc()
	_ = c.audit.Publish(ctx, audit.Entry{
		Timestamp:   now,
		OrderNumber: orderNumber,
		Action:      "order_opened",
		OldState:    string(repository.StatusCreated),
		NewState:    string(repository.StatusOpen),
	})
	c.logger.Info("order queried, triggers scheduled",
		zap.String("order_number", orderNumber),
		zap.String("latest_volume_state", latestState),
		zap.String("trigger_in_transit", upd.TriggerInTransit),
		zap.String("trigger_delivered", upd.TriggerDelivered),
	)
	return nil
}
