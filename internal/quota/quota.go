// Package quota keeps the share of open orders simulating a missed
// delivery window at a fixed target ratio. It is a monotone ratchet:
// runs only ever add flags, never remove them.
package quota

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

// LateRatio is the target fraction of OPEN orders simulating delay.
const LateRatio = 0.02

type OrderStore interface {
	CountByStatus(ctx context.Context, status repository.ProcessStatus) (int, error)
	CountLateOpen(ctx context.Context) (int, error)
	ListLateCandidates(ctx context.Context) ([]*repository.Order, error)
	MarkLate(ctx context.Context, orderNumber, newTriggerDate, updatedAt string) error
}

type Controller struct {
	orders OrderStore
	rnd    *rand.Rand
	now    func() time.Time
	logger *zap.Logger
	audit  audit.Publisher
}

func New(orders OrderStore, rnd *rand.Rand, now func() time.Time, logger *zap.Logger, auditPub audit.Publisher) *Controller {
	return &Controller{
		orders: orders,
		rnd:    rnd,
		now:    now,
		logger: logger,
		audit:  auditPub,
	}
}

// Run flags just enough additional orders to reach the target ratio. A
// run that already meets quota is a pure no-op.
func (c *Controller) Run(ctx context.Context) error {
	totalOpen, err := c.orders.CountByStatus(ctx, repository.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to count open orders: %w", err)
	}
	if totalOpen == 0 {
		c.logger.Info("no open orders to evaluate for delay")
		return nil
	}

	alreadyLate, err := c.orders.CountLateOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to count flagged orders: %w", err)
	}

	target := int(float64(totalOpen) * LateRatio)
	c.logger.Info("late-delivery quota check",
		zap.Int("total_open", totalOpen),
		zap.Int("target", target),
		zap.Int("already_late", alreadyLate),
	)
	if alreadyLate >= target {
		c.logger.Info("late-delivery quota already met, nothing to flag")
		return nil
	}
	need := target - alreadyLate

	candidates, err := c.orders.ListLateCandidates(ctx)
	if err != nil {
		return fmt.Errorf("failed to list candidates: %w", err)
	}
	if len(candidates) == 0 {
		c.logger.Info("no eligible orders without delay flag")
		return nil
	}

	today := dateOf(c.now())

	// Candidates are ordered by closeness of their due date before the
	// draw; the draw itself stays uniform over the whole list.
	sort.SliceStable(candidates, func(i, j int) bool {
		return dueDistance(candidates[i], today) < dueDistance(candidates[j], today)
	})

	count := need
	if count > len(candidates) {
		count = len(candidates)
	}
	selected := make([]*repository.Order, 0, count)
	for _, idx := range c.rnd.Perm(len(candidates))[:count] {
		selected = append(selected, candidates[idx])
	}

	flagged := 0
	nowISO := c.now().Format(time.RFC3339)
	for _, order := range selected {
		oldTrigger, ok := repository.TriggerDate(order.TriggerDelivered)
		if !ok {
			c.logger.Warn("candidate without delivered trigger, skipping",
				zap.String("order_number", order.OrderNumber),
			)
			continue
		}
		newTrigger := oldTrigger.AddDate(0, 0, 1).Format(repository.DateOnly)

		if err := c.orders.MarkLate(ctx, order.OrderNumber, newTrigger, nowISO); err != nil {
			metrics.OperationErrorsTotal.WithLabelValues("flag_late").Inc()
			c.logger.Error("failed to flag order as late",
				zap.String("order_number", order.OrderNumber),
				zap.Error(err),
			)
			continue
		}

		flagged++
		metrics.OrdersFlaggedLateTotal.Inc()
		_ = c.audit.Publish(ctx, audit.Entry{
			Timestamp:   c.now(),
			OrderNumber: order.OrderNumber,
			Action:      "order_flagged_late",
			Detail:      fmt.Sprintf("delivered trigger pushed to %s", newTrigger),
		})
		c.logger.Info("order flagged for late delivery",
			zap.String("order_number", order.OrderNumber),
			zap.String("new_trigger_delivered", newTrigger),
		)
	}

	c.logger.Info("late-delivery quota pass finished", zap.Int("flagged", flagged))
	return nil
}

func dueDistance(order *repository.Order, today time.Time) int {
	due, ok := repository.TriggerDate(order.TriggerDelivered)
	if !ok {
		return int(^uint(0) >> 1)
	}
	days := int(due.Sub(today).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
