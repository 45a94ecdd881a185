package collector_test

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/collector"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/intelipost"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type fakeFetcher struct {
	details map[string]*intelipost.OrderDetail
	err     error
}

func (f *fakeFetcher) GetShipmentOrder(_ context.Context, orderNumber string) (*intelipost.OrderDetail, []byte, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	detail, ok := f.details[orderNumber]
	if !ok {
		return nil, nil, errors.New("unknown order")
	}
	raw, _ := json.Marshal(map[string]any{"content": detail})
	return detail, raw, nil
}

type fakeStore struct {
	created []*repository.Order
	opened  map[string]repository.OpenUpdate
	markErr error
}

func (s *fakeStore) ListByStatus(_ context.Context, status repository.ProcessStatus) ([]*repository.Order, error) {
	if status != repository.StatusCreated {
		return nil, nil
	}
	return s.created, nil
}

func (s *fakeStore) MarkOpen(_ context.Context, upd repository.OpenUpdate) error {
	if s.markErr != nil {
		return s.markErr
	}
	if s.opened == nil {
		s.opened = make(map[string]repository.OpenUpdate)
	}
	s.opened[upd.OrderNumber] = upd
	return nil
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
}

func newCollector(store *fakeStore, fetcher *fakeFetcher) *collector.Collector {
	return collector.New(store, fetcher, rand.New(rand.NewSource(1)), fixedNow, zap.NewNop(), audit.NewConsolePublisher(zap.NewNop()))
}

func TestCollector_OpensOrderAndSchedulesTriggers(t *testing.T) {
	store := &fakeStore{created: []*repository.Order{{OrderNumber: "PEDIDO-1"}}}
	fetcher := &fakeFetcher{details: map[string]*intelipost.OrderDetail{
		"PEDIDO-1": {
			CreatedISO:               "2024-01-01T08:00:00-03:00",
			EstimatedDeliveryDateISO: "2024-01-11T23:59:59-03:00",
			DeliveryMethodID:         json.Number("32"),
			Volumes:                  []intelipost.Volume{{State: "SHIPPED"}},
		},
	}}

	require.NoError(t, newCollector(store, fetcher).Run(context.Background()))

	upd, ok := store.opened["PEDIDO-1"]
	require.True(t, ok, "order should have been marked open")
	assert.Equal(t, "SHIPPED", upd.LatestVolumeState)
	assert.Equal(t, "32", upd.DeliveryMethodID)
	assert.NotEmpty(t, upd.RawSnapshot)

	inTransit, err := time.Parse(repository.DateOnly, upd.TriggerInTransit)
	require.NoError(t, err)
	delivered, err := time.Parse(repository.DateOnly, upd.TriggerDelivered)
	require.NoError(t, err)

	assert.False(t, inTransit.Before(mustDate("2024-01-03")))
	assert.False(t, inTransit.After(mustDate("2024-01-07")))
	assert.False(t, delivered.Before(mustDate("2024-01-09")))
	assert.False(t, delivered.After(mustDate("2024-01-11")))
	assert.Equal(t, upd.TriggerDelivered, upd.TriggerToBeDelivered)
}

func TestCollector_EmptyVolumeListDefaults(t *testing.T) {
	store := &fakeStore{created: []*repository.Order{{OrderNumber: "PEDIDO-2"}}}
	fetcher := &fakeFetcher{details: map[string]*intelipost.OrderDetail{
		"PEDIDO-2": {
			CreatedISO:               "2024-01-01T08:00:00-03:00",
			EstimatedDeliveryDateISO: "2024-01-06T23:59:59-03:00",
			DeliveryMethodID:         json.Number("4"),
		},
	}}

	require.NoError(t, newCollector(store, fetcher).Run(context.Background()))

	upd, ok := store.opened["PEDIDO-2"]
	require.True(t, ok)
	assert.Equal(t, "N/A", upd.LatestVolumeState)
}

func TestCollector_FetchFailureLeavesRowUntouched(t *testing.T) {
	store := &fakeStore{created: []*repository.Order{{OrderNumber: "PEDIDO-3"}}}
	fetcher := &fakeFetcher{err: errors.New("connection refused")}

	// Per-order failures are swallowed; the row is simply not advanced.
	require.NoError(t, newCollector(store, fetcher).Run(context.Background()))
	assert.Empty(t, store.opened)
}

func TestCollector_MissingDatesLeavesRowUntouched(t *testing.T) {
	store := &fakeStore{created: []*repository.Order{{OrderNumber: "PEDIDO-4"}}}
	fetcher := &fakeFetcher{details: map[string]*intelipost.OrderDetail{
		"PEDIDO-4": {DeliveryMethodID: json.Number("32")},
	}}

	require.NoError(t, newCollector(store, fetcher).Run(context.Background()))
	assert.Empty(t, store.opened)
}

func TestCollector_ContinuesPastFailingOrder(t *testing.T) {
	store := &fakeStore{created: []*repository.Order{
		{OrderNumber: "PEDIDO-BAD"},
		{OrderNumber: "PEDIDO-GOOD"},
	}}
	fetcher := &fakeFetcher{details: map[string]*intelipost.OrderDetail{
		"PEDIDO-GOOD": {
			CreatedISO:               "2024-01-01T08:00:00-03:00",
			EstimatedDeliveryDateISO: "2024-01-11T23:59:59-03:00",
			DeliveryMethodID:         json.Number("51"),
			Volumes:                  []intelipost.Volume{{State: "SHIPPED"}},
		},
	}}

	require.NoError(t, newCollector(store, fetcher).Run(context.Background()))

	_, badOpened := store.opened["PEDIDO-BAD"]
	assert.False(t, badOpened)
	_, goodOpened := store.opened["PEDIDO-GOOD"]
	assert.True(t, goodOpened)
}

func mustDate(s string) time.Time {
	d, err := time.Parse(repository.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}
