package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain"
	"backoffice/internal/store"
)

func TestLoadAbsentSlot(t *testing.T) {
	s := New()

	_, err := s.Load(context.Background(), store.SlotSales)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Load(context.Background(), store.Slot("other"))
	assert.ErrorIs(t, err, store.ErrInvalidSlot)
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := New()

	snapshot := domain.Snapshot{
		Sales: []domain.Sale{{
			ID:          "sale-1",
			Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.RequireFromString("170.50"),
			Store:       domain.StoreJaguaruana,
			Salesperson: domain.SalespersonThiago,
			Description: "Balcão",
			ProductID:   "p1",
			Quantity:    2,
		}},
		Transactions: []domain.Transaction{{
			ID:       "rev-sale-1",
			Amount:   decimal.RequireFromString("170.50"),
			Category: domain.CategoryRevenue,
			Kind:     domain.KindSaleRevenue,
			SaleID:   "sale-1",
		}},
	}

	require.NoError(t, store.SaveSnapshot(ctx, s, snapshot))
	assert.Equal(t, 1, s.Saves())

	loaded, presence, err := store.LoadSnapshot(ctx, s)
	require.NoError(t, err)

	// all three slots are written together, including the empty one
	for _, slot := range store.Slots() {
		assert.True(t, presence.Has(slot), string(slot))
	}
	require.Len(t, loaded.Sales, 1)
	assert.Equal(t, "sale-1", loaded.Sales[0].ID)
	assert.True(t, loaded.Sales[0].Amount.Equal(decimal.RequireFromString("170.5")))
	assert.True(t, loaded.Sales[0].Date.Equal(snapshot.Sales[0].Date))
	assert.Equal(t, domain.KindSaleRevenue, loaded.Transactions[0].Kind)
	assert.NotNil(t, loaded.Inventory)
	assert.Empty(t, loaded.Inventory)
}

func TestLoadSnapshotFreshStore(t *testing.T) {
	loaded, presence, err := store.LoadSnapshot(context.Background(), New())
	require.NoError(t, err)

	assert.False(t, presence.Has(store.SlotInventory))
	assert.NotNil(t, loaded.Sales)
	assert.NotNil(t, loaded.Transactions)
	assert.NotNil(t, loaded.Inventory)
}

func TestLoadSnapshotCorruptSlot(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.SaveAll(ctx, map[store.Slot][]byte{
		store.SlotSales:        []byte(`{not json`),
		store.SlotTransactions: []byte(`[{"id":"t1","amount":"10","category":"FIXED_COST"}]`),
	}))

	loaded, presence, err := store.LoadSnapshot(ctx, s)
	assert.ErrorIs(t, err, store.ErrInvalidSlot)
	assert.False(t, presence.Has(store.SlotSales))
	assert.True(t, presence.Stored(store.SlotSales))
	assert.True(t, presence.Has(store.SlotTransactions))
	assert.False(t, presence.Stored(store.SlotInventory))
	assert.Equal(t, []store.Slot{store.SlotSales}, presence.Unreadable())
	assert.Empty(t, loaded.Sales)

	// lines saved without an owner are manual
	require.Len(t, loaded.Transactions, 1)
	assert.Equal(t, domain.KindManual, loaded.Transactions[0].Kind)
}

func TestSaveAllCopiesPayload(t *testing.T) {
	ctx := context.Background()
	s := New()
	payload := []byte(`[]`)
	require.NoError(t, s.SaveAll(ctx, map[store.Slot][]byte{store.SlotSales: payload}))

	payload[0] = 'x'
	got, err := s.Load(ctx, store.SlotSales)
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))
}
