package engine_test

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/carrier"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/db"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/engine"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }
func (stubTx) Exec(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (stubTx) Get(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (stubTx) Select(context.Context, interface{}, string, ...interface{}) error { return nil }

type stubDB struct{}

func (stubDB) Get(context.Context, interface{}, string, ...interface{}) error    { return nil }
func (stubDB) Select(context.Context, interface{}, string, ...interface{}) error { return nil }
func (stubDB) Exec(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (stubDB) BeginTx(context.Context) (db.Tx, error) { return stubTx{}, nil }

type memOrders struct {
	m map[string]*repository.Order
}

func (s *memOrders) ListByStatus(_ context.Context, status repository.ProcessStatus) ([]*repository.Order, error) {
	var out []*repository.Order
	for _, o := range s.m {
		if o.StatusProcesso == status {
			copied := *o
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNumber < out[j].OrderNumber })
	return out, nil
}

func (s *memOrders) UpdateVolumeStateTx(_ context.Context, _ db.Tx, orderNumber, state, updatedAt string) error {
	o, ok := s.m[orderNumber]
	if !ok {
		return repository.ErrObjectNotFound
	}
	o.LatestVolumeState = state
	o.UpdatedInDB = updatedAt
	return nil
}

func (s *memOrders) CompleteTx(_ context.Context, _ db.Tx, orderNumber, updatedAt string) error {
	o, ok := s.m[orderNumber]
	if !ok {
		return repository.ErrObjectNotFound
	}
	o.StatusProcesso = repository.StatusComplete
	o.LatestVolumeState = repository.StateDelivered
	o.UpdatedInDB = updatedAt
	return nil
}

type memOutbox struct {
	events []*repository.OutboxEvent
}

func (s *memOutbox) CreateBatchTx(_ context.Context, _ db.Tx, events []*repository.OutboxEvent) error {
	s.events = append(s.events, events...)
	return nil
}

func (s *memOutbox) ListOpenByOrder(_ context.Context, orderNumber string) ([]*repository.OutboxEvent, error) {
	var out []*repository.OutboxEvent
	for _, ev := range s.events {
		if ev.OrderNumber == orderNumber && ev.Status != repository.EventStatusDone {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *memOutbox) MarkSent(_ context.Context, id uuid.UUID, updatedAt string) error {
	for _, ev := range s.events {
		if ev.ID == id {
			ev.Status = repository.EventStatusSent
			ev.Attempts++
			ev.UpdatedInDB = updatedAt
			return nil
		}
	}
	return repository.ErrObjectNotFound
}

func (s *memOutbox) MarkFailed(_ context.Context, id uuid.UUID, lastError, updatedAt string) error {
	for _, ev := range s.events {
		if ev.ID == id {
			ev.Attempts++
			ev.LastError = &lastError
			ev.UpdatedInDB = updatedAt
			return nil
		}
	}
	return repository.ErrObjectNotFound
}

func (s *memOutbox) MarkDoneForOrderTx(_ context.Context, _ db.Tx, orderNumber, updatedAt string) error {
	for _, ev := range s.events {
		if ev.OrderNumber == orderNumber && ev.Status == repository.EventStatusSent {
			ev.Status = repository.EventStatusDone
			ev.UpdatedInDB = updatedAt
		}
	}
	return nil
}

type sentEvent struct {
	carrierKey  string
	orderNumber string
	event       intelipost.TrackingEvent
}

type fakeSender struct {
	calls  []sentEvent
	failAt map[int]error // 1-based call index
}

func (s *fakeSender) AddTrackingEvent(_ context.Context, carrierKey, orderNumber string, event intelipost.TrackingEvent) error {
	call := len(s.calls) + 1
	if err, ok := s.failAt[call]; ok {
		return err
	}
	s.calls = append(s.calls, sentEvent{carrierKey: carrierKey, orderNumber: orderNumber, event: event})
	return nil
}

func testCarriers(t *testing.T) *carrier.Table {
	t.Helper()
	keys := make(map[string]string)
	for _, id := range carrier.IDs() {
		keys[id] = "key-" + id
	}
	table, err := carrier.NewTable(keys)
	require.NoError(t, err)
	return table
}

func strPtr(s string) *string { return &s }

type harness struct {
	orders *memOrders
	outbox *memOutbox
	sender *fakeSender
	engine *engine.Engine
}

func newHarness(t *testing.T, now time.Time, orders map[string]*repository.Order) *harness {
	t.Helper()
	h := &harness{
		orders: &memOrders{m: orders},
		outbox: &memOutbox{},
		sender: &fakeSender{},
	}
	h.engine = engine.New(
		stubDB{}, h.orders, h.outbox, h.sender, testCarriers(t),
		func() time.Time { return now }, time.UTC,
		zap.NewNop(), audit.NewConsolePublisher(zap.NewNop()),
	)
	return h
}

func openOrder(number, state, methodID string, late bool, inTransit, toBeDelivered, delivered string) *repository.Order {
	return &repository.Order{
		OrderNumber:          number,
		StatusProcesso:       repository.StatusOpen,
		LatestVolumeState:    state,
		DeliveryMethodID:     strPtr(methodID),
		LateDeliveryFlag:     late,
		TriggerInTransit:     strPtr(inTransit),
		TriggerToBeDelivered: strPtr(toBeDelivered),
		TriggerDelivered:     strPtr(delivered),
	}
}

var now = time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)

func TestEngine_ShippedAdvancesOnTriggerDay(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateShipped, "32", false, "2024-01-10", "2024-01-15", "2024-01-15"),
	})

	require.NoError(t, h.engine.Run(context.Background()))

	o := h.orders.m["PEDIDO-1"]
	assert.Equal(t, repository.StateInTransit, o.LatestVolumeState)
	assert.Equal(t, repository.StatusOpen, o.StatusProcesso)

	require.Len(t, h.sender.calls, 1)
	call := h.sender.calls[0]
	assert.Equal(t, "key-32", call.carrierKey)
	assert.Equal(t, "98", call.event.OriginalCode)
	// Same-day trigger: timestamped three hours behind now.
	assert.Equal(t, "2024-01-10T12:00:00Z", call.event.EventDate)
}

func TestEngine_SameDayRerunIsIdempotent(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateShipped, "32", false, "2024-01-10", "2024-01-15", "2024-01-15"),
	})

	require.NoError(t, h.engine.Run(context.Background()))
	require.NoError(t, h.engine.Run(context.Background()))

	// Second run finds IN_TRANSIT with future triggers: no new events.
	assert.Len(t, h.sender.calls, 1)
	assert.Equal(t, repository.StateInTransit, h.orders.m["PEDIDO-1"].LatestVolumeState)
}

func TestEngine_WaitsBeforeTrigger(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateShipped, "32", false, "2024-01-11", "2024-01-15", "2024-01-15"),
	})

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Empty(t, h.sender.calls)
	assert.Equal(t, repository.StateShipped, h.orders.m["PEDIDO-1"].LatestVolumeState)
}

func TestEngine_OnTimeDeliveryEmitsTwoEventsAndCompletes(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateInTransit, "32", false, "2024-01-05", "2024-01-08", "2024-01-08"),
	})

	require.NoError(t, h.engine.Run(context.Background()))

	o := h.orders.m["PEDIDO-1"]
	assert.Equal(t, repository.StatusComplete, o.StatusProcesso)
	assert.Equal(t, repository.StateDelivered, o.LatestVolumeState)

	require.Len(t, h.sender.calls, 2)
	assert.Equal(t, "31", h.sender.calls[0].event.OriginalCode)
	assert.Equal(t, "01", h.sender.calls[1].event.OriginalCode)
	// Past trigger: catch-up timestamps land on the trigger date, a
	// minute apart to preserve ordering.
	assert.Equal(t, "2024-01-08T23:58:00Z", h.sender.calls[0].event.EventDate)
	assert.Equal(t, "2024-01-08T23:59:00Z", h.sender.calls[1].event.EventDate)
}

func TestEngine_PartialFailureLeavesStateAndResumesWithoutDuplicates(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateInTransit, "32", false, "2024-01-05", "2024-01-08", "2024-01-08"),
	})
	h.sender.failAt = map[int]error{2: fmt.Errorf("gateway timeout")}

	require.NoError(t, h.engine.Run(context.Background()))

	o := h.orders.m["PEDIDO-1"]
	assert.Equal(t, repository.StatusOpen, o.StatusProcesso)
	assert.Equal(t, repository.StateInTransit, o.LatestVolumeState)

	open, err := h.outbox.ListOpenByOrder(context.Background(), "PEDIDO-1")
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, repository.EventStatusSent, open[0].Status)
	assert.Equal(t, repository.EventStatusPending, open[1].Status)
	require.NotNil(t, open[1].LastError)

	firstDate := open[0].EventDate

	// Next run: only the unsent event goes out, with its recorded date.
	h.sender.failAt = nil
	require.NoError(t, h.engine.Run(context.Background()))

	assert.Equal(t, repository.StatusComplete, o.StatusProcesso)
	require.Len(t, h.sender.calls, 2)
	assert.Equal(t, "01", h.sender.calls[1].event.OriginalCode)
	assert.Equal(t, firstDate, h.sender.calls[0].event.EventDate)

	remaining, err := h.outbox.ListOpenByOrder(context.Background(), "PEDIDO-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestEngine_LateOrderTakesExtraHop(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateInTransit, "23", true, "2024-01-05", "2024-01-10", "2024-01-10"),
	})

	require.NoError(t, h.engine.Run(context.Background()))

	o := h.orders.m["PEDIDO-1"]
	assert.Equal(t, repository.StatusOpen, o.StatusProcesso)
	assert.Equal(t, repository.StateToBeDelivered, o.LatestVolumeState)

	require.Len(t, h.sender.calls, 1)
	assert.Equal(t, "101", h.sender.calls[0].event.OriginalCode)

	// Next run finishes the late order with a single delivered event.
	require.NoError(t, h.engine.Run(context.Background()))
	assert.Equal(t, repository.StatusComplete, o.StatusProcesso)
	require.Len(t, h.sender.calls, 2)
	assert.Equal(t, "01", h.sender.calls[1].event.OriginalCode)
}

func TestEngine_UnmappedCarrierSkipsForever(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", repository.StateShipped, "999", false, "2024-01-01", "2024-01-05", "2024-01-05"),
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, h.engine.Run(context.Background()))
	}

	assert.Empty(t, h.sender.calls)
	assert.Equal(t, repository.StateShipped, h.orders.m["PEDIDO-1"].LatestVolumeState)
	assert.Empty(t, h.outbox.events)
}

func TestEngine_UnknownStateIsIgnored(t *testing.T) {
	h := newHarness(t, now, map[string]*repository.Order{
		"PEDIDO-1": openOrder("PEDIDO-1", "N/A", "32", false, "2024-01-01", "2024-01-05", "2024-01-05"),
	})

	require.NoError(t, h.engine.Run(context.Background()))

	assert.Empty(t, h.sender.calls)
	assert.Equal(t, "N/A", h.orders.m["PEDIDO-1"].LatestVolumeState)
}
