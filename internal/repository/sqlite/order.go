package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type OrderRepo struct {
	db db.DB
}

func NewOrderRepo(db db.DB) *OrderRepo {
	return &OrderRepo{db: db}
}

func (r *OrderRepo) Create(ctx context.Context, order *repository.Order) error {
	_, err := r.db.Exec(ctx, `
        INSERT INTO orders (
            order_number, status_processo, latest_volume_state, late_delivery_flag, created_in_db, updated_in_db
        ) VALUES (?, ?, ?, ?, ?, ?)
    `, order.OrderNumber, order.StatusProcesso, order.LatestVolumeState, order.LateDeliveryFlag, order.CreatedInDB, order.UpdatedInDB)
	return err
}

func (r *OrderRepo) GetByNumber(ctx context.Context, orderNumber string) (*repository.Order, error) {
	var order repository.Order
	err := r.db.Get(ctx, &order, "SELECT * FROM orders WHERE order_number = ?", orderNumber)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrObjectNotFound
		}
		return nil, err
	}
	return &order, nil
}

func (r *OrderRepo) ListByStatus(ctx context.Context, status repository.ProcessStatus) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, `
        SELECT * FROM orders
        WHERE status_processo = ?
        ORDER BY order_number ASC
    `, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders with status %s: %w", status, err)
	}
	return orders, nil
}

func (r *OrderRepo) MarkOpen(ctx context.Context, upd repository.OpenUpdate) error {
	res, err := r.db.Exec(ctx, `
        UPDATE orders
        SET
            status_processo = ?,
            latest_volume_state = ?,
            created_at = ?,
            estimated_delivery_date = ?,
            delivery_method_id = ?,
            raw_snapshot = ?,
            trigger_in_transit = ?,
            trigger_to_be_delivered = ?,
            trigger_delivered = ?,
            updated_in_db = ?
        WHERE order_number = ? AND status_processo = ?
    `, repository.StatusOpen, upd.LatestVolumeState, upd.CreatedAt, upd.EstimatedDeliveryDate,
		upd.DeliveryMethodID, upd.RawSnapshot, upd.TriggerInTransit, upd.TriggerToBeDelivered,
		upd.TriggerDelivered, upd.UpdatedInDB, upd.OrderNumber, repository.StatusCreated)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *OrderRepo) CountByStatus(ctx context.Context, status repository.ProcessStatus) (int, error) {
	var count int
	err := r.db.Get(ctx, &count, "SELECT count(*) FROM orders WHERE status_processo = ?", status)
	return count, err
}

func (r *OrderRepo) CountLateOpen(ctx context.Context) (int, error) {
	var count int
	err := r.db.Get(ctx, &count, `
        SELECT count(*) FROM orders
        WHERE status_processo = ? AND late_delivery_flag = 1
    `, repository.StatusOpen)
	return count, err
}

// ListLateCandidates returns OPEN, not-yet-flagged orders that have a
// delivered trigger to push back.
func (r *OrderRepo) ListLateCandidates(ctx context.Context) ([]*repository.Order, error) {
	var orders []*repository.Order
	err := r.db.Select(ctx, &orders, `
        SELECT * FROM orders
        WHERE status_processo = ? AND late_delivery_flag = 0 AND trigger_delivered IS NOT NULL
        ORDER BY order_number ASC
    `, repository.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to list late-delivery candidates: %w", err)
	}
	return orders, nil
}

// MarkLate is the quota ratchet write: the flag goes up and both final
// triggers move to the pushed-back date, in lock-step, exactly once.
func (r *OrderRepo) MarkLate(ctx context.Context, orderNumber, newTriggerDate, updatedAt string) error {
	res, err := r.db.Exec(ctx, `
        UPDATE orders
        SET
            late_delivery_flag = 1,
            trigger_delivered = ?,
            trigger_to_be_delivered = ?,
            updated_in_db = ?
        WHERE order_number = ? AND late_delivery_flag = 0
    `, newTriggerDate, newTriggerDate, updatedAt, orderNumber)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return repository.ErrObjectNotFound
	}
	return nil
}

func (r *OrderRepo) UpdateVolumeStateTx(ctx context.Context, tx db.Tx, orderNumber, state, updatedAt string) error {
	_, err := tx.Exec(ctx, `
        UPDATE orders
        SET latest_volume_state = ?, updated_in_db = ?
        WHERE order_number = ?
    `, state, updatedAt, orderNumber)
	return err
}

func (r *OrderRepo) CompleteTx(ctx context.Context, tx db.Tx, orderNumber, updatedAt string) error {
	_, err := tx.Exec(ctx, `
        UPDATE orders
        SET status_processo = ?, latest_volume_state = ?, updated_in_db = ?
        WHERE order_number = ?
    `, repository.StatusComplete, repository.StateDelivered, updatedAt, orderNumber)
	return err
}

// DeleteCompletedThroughTx removes COMPLETE orders whose delivered
// trigger is on or before the cutoff date.
func (r *OrderRepo) DeleteCompletedThroughTx(ctx context.Context, tx db.Tx, cutoffDate string) (int64, error) {
	res, err := tx.Exec(ctx, `
        DELETE FROM orders
        WHERE status_processo = ? AND date(trigger_delivered) <= ?
    `, repository.StatusComplete, cutoffDate)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
