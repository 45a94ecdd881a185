package repository

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrObjectNotFound = errors.New("not found")

// ProcessStatus is the ledger-side lifecycle of an order. Monotonic:
// CREATED -> OPEN -> COMPLETE, never backward.
type ProcessStatus string

const (
	StatusCreated  ProcessStatus = "CREATED"
	StatusOpen     ProcessStatus = "OPEN"
	StatusComplete ProcessStatus = "COMPLETE"
)

// Volume states as reported to (and mirrored from) the tracking system.
const (
	StateNone          = "NONE"
	StateShipped       = "SHIPPED"
	StateInTransit     = "IN_TRANSIT"
	StateToBeDelivered = "TO_BE_DELIVERED"
	StateDelivered     = "DELIVERED"
)

// DateOnly is the calendar-date layout used for the trigger columns.
const DateOnly = "2006-01-02"

// Order is one ledger row per shipment order. Date columns are stored as
// ISO text, the way SQLite keeps them; parsing happens at the edges.
type Order struct {
	OrderNumber           string        `db:"order_number"`
	StatusProcesso        ProcessStatus `db:"status_processo"`
	LatestVolumeState     string        `db:"latest_volume_state"`
	CreatedAt             *string       `db:"created_at"`
	EstimatedDeliveryDate *string       `db:"estimated_delivery_date"`
	DeliveryMethodID      *string       `db:"delivery_method_id"`
	RawSnapshot           *string       `db:"raw_snapshot"`
	LateDeliveryFlag      bool          `db:"late_delivery_flag"`
	CreatedInDB           string        `db:"created_in_db"`
	UpdatedInDB           string        `db:"updated_in_db"`
	TriggerInTransit      *string       `db:"trigger_in_transit"`
	TriggerToBeDelivered  *string       `db:"trigger_to_be_delivered"`
	TriggerDelivered      *string       `db:"trigger_delivered"`
}

// TriggerDate parses one of the trigger columns. Returns false when the
// column is unset or unparseable.
func TriggerDate(col *string) (time.Time, bool) {
	if col == nil || *col == "" {
		return time.Time{}, false
	}
	d, err := time.Parse(DateOnly, *col)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// OpenUpdate carries everything the collector persists when an order
// moves CREATED -> OPEN. A single statement keeps the write atomic.
type OpenUpdate struct {
	OrderNumber           string
	LatestVolumeState     string
	CreatedAt             string
	EstimatedDeliveryDate string
	DeliveryMethodID      string
	RawSnapshot           string
	TriggerInTransit      string
	TriggerToBeDelivered  string
	TriggerDelivered      string
	UpdatedInDB           string
}

// Outbox event statuses. PENDING rows were recorded but not yet accepted
// by the remote API; SENT rows are durably delivered; DONE rows belong to
// a transition whose local commit already happened.
type EventStatus string

const (
	EventStatusPending EventStatus = "PENDING"
	EventStatusSent    EventStatus = "SENT"
	EventStatusDone    EventStatus = "DONE"
)

// OutboxEvent is one intended tracking event of a transition. All events
// of a transition share to_state and complete_order; seq preserves the
// chronological order of multi-event transitions.
type OutboxEvent struct {
	ID            uuid.UUID   `db:"id"`
	OrderNumber   string      `db:"order_number"`
	Seq           int         `db:"seq"`
	EventCode     string      `db:"event_code"`
	EventDate     string      `db:"event_date"`
	ToState       string      `db:"to_state"`
	CompleteOrder bool        `db:"complete_order"`
	Status        EventStatus `db:"status"`
	Attempts      int         `db:"attempts"`
	LastError     *string     `db:"last_error"`
	CreatedInDB   string      `db:"created_in_db"`
	UpdatedInDB   string      `db:"updated_in_db"`
}
