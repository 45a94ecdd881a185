package quota_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/audit"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/quota"
	"github.com/eduardobarbosa-ip/gestao-pedidos/internal/repository"
)

type memStore struct {
	orders map[string]*repository.Order
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[string]*repository.Order)}
}

func (s *memStore) addOpen(n int, late bool, triggerDelivered string) {
	for i := 0; i < n; i++ {
		num := fmt.Sprintf("PEDIDO-%04d-%t", len(s.orders), late)
		trigger := triggerDelivered
		s.orders[num] = &repository.Order{
			OrderNumber:          num,
			StatusProcesso:       repository.StatusOpen,
			LatestVolumeState:    repository.StateShipped,
			LateDeliveryFlag:     late,
			TriggerDelivered:     &trigger,
			TriggerToBeDelivered: &trigger,
		}
	}
}

func (s *memStore) CountByStatus(_ context.Context, status repository.ProcessStatus) (int, error) {
	count := 0
	for _, o := range s.orders {
		if o.StatusProcesso == status {
			count++
		}
	}
	return count, nil
}

func (s *memStore) CountLateOpen(context.Context) (int, error) {
	count := 0
	for _, o := range s.orders {
		if o.StatusProcesso == repository.StatusOpen && o.LateDeliveryFlag {
			count++
		}
	}
	return count, nil
}

func (s *memStore) ListLateCandidates(context.Context) ([]*repository.Order, error) {
	var out []*repository.Order
	for _, o := range s.orders {
		if o.StatusProcesso == repository.StatusOpen && !o.LateDeliveryFlag && o.TriggerDelivered != nil {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) MarkLate(_ context.Context, orderNumber, newTriggerDate, updatedAt string) error {
	o, ok := s.orders[orderNumber]
	if !ok || o.LateDeliveryFlag {
		return repository.ErrObjectNotFound
	}
	o.LateDeliveryFlag = true
	trigger := newTriggerDate
	o.TriggerDelivered = &trigger
	o.TriggerToBeDelivered = &trigger
	o.UpdatedInDB = updatedAt
	return nil
}

func (s *memStore) lateNumbers() []string {
	var out []string
	for n, o := range s.orders {
		if o.LateDeliveryFlag {
			out = append(out, n)
		}
	}
	return out
}

func fixedNow() time.Time {
	return time.Date(2024, 1, 5, 12, 0, 0, 0, time.UTC)
}

func newController(s *memStore, seed int64) *quota.Controller {
	return quota.New(s, rand.New(rand.NewSource(seed)), fixedNow, zap.NewNop(), audit.NewConsolePublisher(zap.NewNop()))
}

func TestController_FlagsUpToTarget(t *testing.T) {
	store := newMemStore()
	store.addOpen(1, true, "2024-01-09")
	store.addOpen(99, false, "2024-01-09")

	ctrl := newController(store, 1)
	require.NoError(t, ctrl.Run(context.Background()))

	// target = floor(100 * 0.02) = 2, one already flagged.
	assert.Len(t, store.lateNumbers(), 2)
}

func TestController_SecondRunIsNoOp(t *testing.T) {
	store := newMemStore()
	store.addOpen(1, true, "2024-01-09")
	store.addOpen(99, false, "2024-01-09")

	ctrl := newController(store, 1)
	require.NoError(t, ctrl.Run(context.Background()))
	flaggedAfterFirst := store.lateNumbers()

	require.NoError(t, ctrl.Run(context.Background()))
	assert.ElementsMatch(t, flaggedAfterFirst, store.lateNumbers())
}

func TestController_PushesBothTriggersInLockStep(t *testing.T) {
	store := newMemStore()
	store.addOpen(50, false, "2024-01-09")

	ctrl := newController(store, 3)
	require.NoError(t, ctrl.Run(context.Background()))

	flagged := store.lateNumbers()
	require.Len(t, flagged, 1)

	o := store.orders[flagged[0]]
	require.NotNil(t, o.TriggerDelivered)
	assert.Equal(t, "2024-01-10", *o.TriggerDelivered)
	assert.Equal(t, *o.TriggerDelivered, *o.TriggerToBeDelivered)
}

func TestController_NoOpenOrders(t *testing.T) {
	store := newMemStore()
	ctrl := newController(store, 1)

	require.NoError(t, ctrl.Run(context.Background()))
	assert.Empty(t, store.lateNumbers())
}

func TestController_BelowThresholdFlagsNothing(t *testing.T) {
	store := newMemStore()
	store.addOpen(49, false, "2024-01-09")

	// floor(49 * 0.02) = 0: nothing to do.
	ctrl := newController(store, 1)
	require.NoError(t, ctrl.Run(context.Background()))
	assert.Empty(t, store.lateNumbers())
}

func TestController_NeverUnflags(t *testing.T) {
	store := newMemStore()
	store.addOpen(5, true, "2024-01-09")
	store.addOpen(5, false, "2024-01-09")

	// already_late (5) far above target floor(10*0.02)=0.
	ctrl := newController(store, 1)
	require.NoError(t, ctrl.Run(context.Background()))
	assert.Len(t, store.lateNumbers(), 5)
}
