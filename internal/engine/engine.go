// Package engine is the per-order state machine that emits tracking
// events once an order's trigger dates come due. Intended events are
// recorded in the outbox before the first send, each send is marked
// individually, and local state advances only after every event of the
// transition has been accepted remotely.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/carrier"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type OrderStore interface {
	ListByStatus(ctx context.Context, status repository.ProcessStatus) ([]*repository.Order, error)
	UpdateVolumeStateTx(ctx context.Context, tx db.Tx, orderNumber, state, updatedAt string) error
	CompleteTx(ctx context.Context, tx db.Tx, orderNumber, updatedAt string) error
}

type EventOutbox interface {
	CreateBatchTx(ctx context.Context, tx db.Tx, events []*repository.OutboxEvent) error
	ListOpenByOrder(ctx context.Context, orderNumber string) ([]*repository.OutboxEvent, error)
	MarkSent(ctx context.Context, id uuid.UUID, updatedAt string) error
	MarkFailed(ctx context.Context, id uuid.UUID, lastError, updatedAt string) error
	MarkDoneForOrderTx(ctx context.Context, tx db.Tx, orderNumber, updatedAt string) error
}

type EventSender interface {
	AddTrackingEvent(ctx context.Context, carrierAPIKey, orderNumber string, event intelipost.TrackingEvent) error
}

type Engine struct {
	db       db.DB
	orders   OrderStore
	outbox   EventOutbox
	sender   EventSender
	carriers *carrier.Table
	now      func() time.Time
	loc      *time.Location
	logger   *zap.Logger
	audit    audit.Publisher
}

func New(database db.DB, orders OrderStore, outbox EventOutbox, sender EventSender, carriers *carrier.Table, now func() time.Time, loc *time.Location, logger *zap.Logger, auditPub audit.Publisher) *Engine {
	return &Engine{
		db:       database,
		orders:   orders,
		outbox:   outbox,
		sender:   sender,
		carriers: carriers,
		now:      now,
		loc:      loc,
		logger:   logger,
		audit:    auditPub,
	}
}

// Run makes one sequential pass over all OPEN orders. Each order decides
// at most one state change; per-order failures never stop the batch.
func (e *Engine) Run(ctx context.Context) error {
	orders, err := e.orders.ListByStatus(ctx, repository.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to list open orders: %w", err)
	}
	if len(orders) == 0 {
		e.logger.Info("no open orders to process")
		return nil
	}

	for _, order := range orders {
		if err := e.processOrder(ctx, order); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("advance").Inc()
			e.logger.Error("order transition failed, will retry next run",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (e *Engine) processOrder(ctx context.Context, order *repository.Order) error {
	methodID := ""
	if order.DeliveryMethodID != nil {
		methodID = *order.DeliveryMethodID
	}
	car, ok := e.carriers.Lookup(methodID)
	if !ok {
		// Permanent stall until the method is mapped; by contract this
		// is a warning, never a run failure.
		metrics.OrdersSkippedUnmappedTotal.Inc()
		e.logger.Warn("delivery method not mapped, skipping order",
			zap.String("order_number", order.OrderNumber),
			zap.String("delivery_method_id", methodID),
		)
		return nil
	}

	pending, err := e.outbox.ListOpenByOrder(ctx, order.OrderNumber)
	if err != nil {
		return err
	}

	if len(pending) == 0 {
		pending, err = e.planAndRecord(ctx, order, car)
		if err != nil {
			return err
		}
		if pending == nil {
			return nil // nothing due yet
		}
	} else {
		e.logger.Info("resuming in-flight transition",
			zap.String("order_number", order.OrderNumber),
			zap.Int("events", len(pending)),
		)
	}

	for _, ev := range pending {
		if ev.Status == repository.EventStatusSent {
			continue
		}
		if err := e.sendEvent(ctx, order.OrderNumber, car, ev); err != nil {
			return err
		}
	}

	return e.commitTransition(ctx, order, pending)
}

// planAndRecord evaluates the transition table for the order and, when a
// trigger is due, records the transition's events in the outbox. Returns
// nil events when no condition is met.
func (e *Engine) planAndRecord(ctx context.Context, order *repository.Order, car carrier.Carrier) ([]*repository.OutboxEvent, error) {
	now := e.now().In(e.loc)
	today := dateOf(now)
	nowISO := now.Format(time.RFC3339)

	var events []*repository.OutboxEvent

	switch order.LatestVolumeState {
	case repository.StateShipped:
		trigger, ok := repository.TriggerDate(order.TriggerInTransit)
		if !ok || today.Before(trigger) {
			e.logWaiting(order, repository.StateInTransit, order.TriggerInTransit)
			return nil, nil
		}
		events = []*repository.OutboxEvent{{
			OrderNumber: order.OrderNumber,
			Seq:         1,
			EventCode:   car.Codes.InTransit,
			EventDate:   e.eventTime(kindInTransit, trigger, now).Format(time.RFC3339),
			ToState:     repository.StateInTransit,
		}}

	case repository.StateInTransit:
		if order.LateDeliveryFlag {
			trigger, ok := repository.TriggerDate(order.TriggerToBeDelivered)
			if !ok || today.Before(trigger) {
				e.logWaiting(order, repository.StateToBeDelivered, order.TriggerToBeDelivered)
				return nil, nil
			}
			events = []*repository.OutboxEvent{{
				OrderNumber: order.OrderNumber,
				Seq:         1,
				EventCode:   car.Codes.ToBeDelivered,
				EventDate:   e.eventTime(kindToBeDelivered, trigger, now).Format(time.RFC3339),
				ToState:     repository.StateToBeDelivered,
			}}
		} else {
			trigger, ok := repository.TriggerDate(order.TriggerDelivered)
			if !ok || today.Before(trigger) {
				e.logWaiting(order, repository.StateDelivered, order.TriggerDelivered)
				return nil, nil
			}
			// On-time orders jump straight to delivered: the routing
			// event and the delivery event go out back to back, with
			// timestamps a minute apart to keep their order.
			events = []*repository.OutboxEvent{
				{
					OrderNumber:   order.OrderNumber,
					Seq:           1,
					EventCode:     car.Codes.ToBeDelivered,
					EventDate:     e.eventTime(kindToBeDelivered, trigger, now).Format(time.RFC3339),
					ToState:       repository.StateDelivered,
					CompleteOrder: true,
				},
				{
					OrderNumber:   order.OrderNumber,
					Seq:           2,
					EventCode:     car.Codes.Delivered,
					EventDate:     e.eventTime(kindDelivered, trigger, now).Format(time.RFC3339),
					ToState:       repository.StateDelivered,
					CompleteOrder: true,
				},
			}
		}

	case repository.StateToBeDelivered:
		trigger, ok := repository.TriggerDate(order.TriggerDelivered)
		if !ok || today.Before(trigger) {
			e.logWaiting(order, repository.StateDelivered, order.TriggerDelivered)
			return nil, nil
		}
		events = []*repository.OutboxEvent{{
			OrderNumber:   order.OrderNumber,
			Seq:           1,
			EventCode:     car.Codes.Delivered,
			EventDate:     e.eventTime(kindDelivered, trigger, now).Format(time.RFC3339),
			ToState:       repository.StateDelivered,
			CompleteOrder: true,
		}}

	default:
		e.logger.Info("no action defined for volume state",
			zap.String("order_number", order.OrderNumber),
			zap.String("latest_volume_state", order.LatestVolumeState),
		)
		return nil, nil
	}

	for _, ev := range events {
		ev.ID = uuid.New()
		ev.Status = repository.EventStatusPending
		ev.CreatedInDB = nowISO
		ev.UpdatedInDB = nowISO
	}

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin outbox transaction: %w", err)
	}
	if err := e.outbox.CreateBatchTx(ctx, tx, events); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit outbox events: %w", err)
	}
	return events, nil
}

func (e *Engine) sendEvent(ctx context.Context, orderNumber string, car carrier.Carrier, ev *repository.OutboxEvent) error {
	nowISO := e.now().In(e.loc).Format(time.RFC3339)
	err := e.sender.AddTrackingEvent(ctx, car.APIKey, orderNumber, intelipost.TrackingEvent{
		EventDate:    ev.EventDate,
		OriginalCode: ev.EventCode,
	})
	if err != nil {
		if mErr := e.outbox.MarkFailed(ctx, ev.ID, err.Error(), nowISO); mErr != nil {
			e.logger.Error("failed to record outbox failure",
				zap.String("order_number", orderNumber),
				zap.Error(mErr),
			)
		}
		return fmt.Errorf("failed to send event %s: %w", ev.EventCode, err)
	}
	if err := e.outbox.MarkSent(ctx, ev.ID, nowISO); err != nil {
		return fmt.Errorf("failed to mark event %s as sent: %w", ev.EventCode, err)
	}
	metrics.TrackingEventsSentTotal.Inc()
	e.logger.Info("tracking event accepted",
		zap.String("order_number", orderNumber),
		zap.String("original_code", ev.EventCode),
		zap.String("event_date", ev.EventDate),
	)
	return nil
}

// commitTransition advances local state once every event of the
// transition is durably delivered.
func (e *Engine) commitTransition(ctx context.Context, order *repository.Order, events []*repository.OutboxEvent) error {
	now := e.now().In(e.loc)
	nowISO := now.Format(time.RFC3339)
	toState := events[0].ToState
	complete := events[0].CompleteOrder

	tx, err := e.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin commit transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if complete {
		if err := e.orders.CompleteTx(ctx, tx, order.OrderNumber, nowISO); err != nil {
			return fmt.Errorf("failed to complete order: %w", err)
		}
	} else {
		if err := e.orders.UpdateVolumeStateTx(ctx, tx, order.OrderNumber, toState, nowISO); err != nil {
			return fmt.Errorf("failed to update volume state: %w", err)
		}
	}
	if err := e.outbox.MarkDoneForOrderTx(ctx, tx, order.OrderNumber, nowISO); err != nil {
		return fmt.Errorf("failed to close outbox events: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	if complete {
		metrics.OrdersCompletedTotal.Inc()
	}
	_ = e.audit.Publish(ctx, audit.Entry{
		Timestamp:   now,
		OrderNumber: order.OrderNumber,
		Action:      "state_advanced",
		OldState:    order.LatestVolumeState,
		NewState:    toState,
	})
	e.logger.Info("order state advanced",
		zap.String("order_number", order.OrderNumber),
		zap.String("old_state", order.LatestVolumeState),
		zap.String("new_state", toState),
		zap.Bool("complete", complete),
	)
	return nil
}

func (e *Engine) logWaiting(order *repository.Order, nextState string, trigger *string) {
	date := ""
	if trigger != nil {
		date = *trigger
	}
	e.logger.Info("waiting for trigger date",
		zap.String("order_number", order.OrderNumber),
		zap.String("next_state", nextState),
		zap.String("trigger_date", date),
	)
}

type eventKind int

const (
	kindInTransit eventKind = iota
	kindToBeDelivered
	kindDelivered
)

// eventTime implements the catch-up timestamp policy: past triggers get
// a fixed time shortly before that day's end (distinct minutes keep
// multi-event transitions ordered); same-day triggers get a fixed offset
// behind the current moment. Emitted timestamps never exceed now.
func (e *Engine) eventTime(kind eventKind, trigger, now time.Time) time.Time {
	today := dateOf(now)
	if today.After(trigger) {
		minute := map[eventKind]int{
			kindInTransit:     57,
			kindToBeDelivered: 58,
			kindDelivered:     59,
		}[kind]
		return time.Date(trigger.Year(), trigger.Month(), trigger.Day(), 23, minute, 0, 0, e.loc)
	}
	offset := map[eventKind]time.Duration{
		kindInTransit:     3 * time.Hour,
		kindToBeDelivered: 2 * time.Hour,
		kindDelivered:     1 * time.Hour,
	}[kind]
	return now.Add(-offset)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
