// Package purge removes completed orders whose delivered trigger has
// passed, then compacts the ledger file.
package purge

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/metrics"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type OrderStore interface {
	DeleteCompletedThroughTx(ctx context.Context, tx db.Tx, cutoffDate string) (int64, error)
}

type Purger struct {
	db     db.DB
	orders OrderStore
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger
}

func New(database db.DB, orders OrderStore, now func() time.Time, loc *time.Location, logger *zap.Logger) *Purger {
	return &Purger{
		db:     database,
		orders: orders,
		now:    now,
		loc:    loc,
		logger: logger,
	}
}

// Run deletes eligible rows in one transaction. On storage error the
// delete is rolled back and compaction is not attempted.
func (p *Purger) Run(ctx context.Context) error {
	cutoff := p.now().In(p.loc).Format(repository.DateOnly)
	p.logger.Info("purging completed orders", zap.String("cutoff_date", cutoff))

	tx, err := p.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin purge transaction: %w", err)
	}

	deleted, err := p.orders.DeleteCompletedThroughTx(ctx, tx, cutoff)
	if err != nil {
		_ = tx.Rollback()
		metrics.OperationErrorsTotal.WithLabelValues("purge").Inc()
		return fmt.Errorf("failed to delete completed orders: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit purge: %w", err)
	}

	if deleted > 0 {
		metrics.OrdersPurgedTotal.Add(float64(deleted))
		p.logger.Info("removed completed orders", zap.Int64("deleted", deleted))
	} else {
		p.logger.Info("no orders matched the purge criteria")
	}

	p.logger.Info("compacting ledger file")
	if _, err := p.db.Exec(ctx, "VACUUM"); err != nil {
		return fmt.Errorf("failed to compact ledger: %w", err)
	}
	return nil
}
