package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type OutboxRepo struct {
	db db.DB
}

func NewOutboxRepo(db db.DB) *OutboxRepo {
	return &OutboxRepo{db: db}
}

// CreateBatchTx records every intended event of one transition before
// anything is sent.
func (r *OutboxRepo) CreateBatchTx(ctx context.Context, tx db.Tx, events []*repository.OutboxEvent) error {
	for _, ev := range events {
		if ev.ID == uuid.Nil {
			ev.ID = uuid.New()
		}
		_, err := tx.Exec(ctx, `
            INSERT INTO event_outbox (
                id, order_number, seq, event_code, event_date, to_state, complete_order,
                status, attempts, created_in_db, updated_in_db
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)
        `, ev.ID, ev.OrderNumber, ev.Seq, ev.EventCode, ev.EventDate, ev.ToState,
			ev.CompleteOrder, repository.EventStatusPending, ev.CreatedInDB, ev.UpdatedInDB)
		if err != nil {
			return fmt.Errorf("failed to record outbox event for order %s: %w", ev.OrderNumber, err)
		}
	}
	return nil
}

// ListOpenByOrder returns the recorded-but-uncommitted events of an
// order, in send order. Empty means no transition is in flight.
func (r *OutboxRepo) ListOpenByOrder(ctx context.Context, orderNumber string) ([]*repository.OutboxEvent, error) {
	var events []*repository.OutboxEvent
	err := r.db.Select(ctx, &events, `
        SELECT * FROM event_outbox
        WHERE order_number = ? AND status != ?
        ORDER BY seq ASC
    `, orderNumber, repository.EventStatusDone)
	if err != nil {
		return nil, fmt.Errorf("failed to list open outbox events for order %s: %w", orderNumber, err)
	}
	return events, nil
}

func (r *OutboxRepo) MarkSent(ctx context.Context, id uuid.UUID, updatedAt string) error {
	res, err := r.db.Exec(ctx, `
        UPDATE event_outbox
        SET status = ?, attempts = attempts + 1, last_error = NULL, updated_in_db = ?
        WHERE id = ?
    `, repository.EventStatusSent, updatedAt, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *OutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, lastError, updatedAt string) error {
	_, err := r.db.Exec(ctx, `
        UPDATE event_outbox
        SET attempts = attempts + 1, last_error = ?, updated_in_db = ?
        WHERE id = ?
    `, lastError, updatedAt, id)
	return err
}

// MarkDoneForOrderTx closes out a fully sent transition alongside the
// order's own state commit.
func (r *OutboxRepo) MarkDoneForOrderTx(ctx context.Context, tx db.Tx, orderNumber, updatedAt string) error {
	_, err := tx.Exec(ctx, `
        UPDATE event_outbox
        SET status = ?, updated_in_db = ?
        WHERE order_number = ? AND status = ?
    `, repository.EventStatusDone, updatedAt, orderNumber, repository.EventStatusSent)
	return err
}
