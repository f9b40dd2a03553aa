package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	"backoffice/internal/store"
)

func TestSaveAllPersistsEverySlot(t *testing.T) {
	databaseURL := os.Getenv("BACKOFFICE_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("set BACKOFFICE_TEST_DATABASE_URL to run postgres integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, databaseURL)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM app_slots`)
		_ = s.Close()
	})

	if _, err := s.db.ExecContext(ctx, `DELETE FROM app_slots`); err != nil {
		t.Fatalf("reset slots: %v", err)
	}
	if _, err := s.Load(ctx, store.SlotInventory); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}

	snapshot := domain.Snapshot{
		Inventory: []domain.InventoryItem{{
			ID:          "p1",
			Name:        "Camarão Rosa G",
			SKU:         "CAM-RG",
			Quantity:    48,
			MinQuantity: 10,
			UnitPrice:   decimal.NewFromInt(85),
			UnitCost:    decimal.NewFromInt(45),
			Category:    "Frutos do Mar",
		}},
		Sales: []domain.Sale{{
			ID:          "sale-it",
			Date:        time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC),
			Amount:      decimal.NewFromInt(170),
			Store:       domain.StoreFortaleza,
			Salesperson: domain.SalespersonRegis,
			Description: "Integração",
		}},
	}
	if err := store.SaveSnapshot(ctx, s, snapshot); err != nil {
		t.Fatalf("save snapshot: %v", err)
	}

	loaded, presence, err := store.LoadSnapshot(ctx, s)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	for _, slot := range store.Slots() {
		if !presence.Has(slot) {
			t.Fatalf("expected slot %s to be present", slot)
		}
	}
	if len(loaded.Inventory) != 1 || loaded.Inventory[0].Quantity != 48 {
		t.Fatalf("unexpected inventory: %+v", loaded.Inventory)
	}
	if len(loaded.Sales) != 1 || !loaded.Sales[0].Amount.Equal(decimal.NewFromInt(170)) {
		t.Fatalf("unexpected sales: %+v", loaded.Sales)
	}
	if len(loaded.Transactions) != 0 {
		t.Fatalf("expected no transactions, got %d", len(loaded.Transactions))
	}
}
