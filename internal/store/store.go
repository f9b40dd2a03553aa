package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"backoffice/internal/domain"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrInvalidSlot = errors.New("invalid slot")
)

// Slot names one persisted top-level collection.
type Slot string

const (
	SlotSales        Slot = "sales"
	SlotTransactions Slot = "transactions"
	SlotInventory    Slot = "inventory"
)

func Slots() []Slot {
	return []Slot{SlotSales, SlotTransactions, SlotInventory}
}

func (s Slot) Valid() bool {
	switch s {
	case SlotSales, SlotTransactions, SlotInventory:
		return true
	default:
		return false
	}
}

// Repository persists raw slot payloads. Load returns ErrNotFound for a slot
// that was never saved. SaveAll writes every given slot together.
type Repository interface {
	Load(ctx context.Context, slot Slot) ([]byte, error)
	SaveAll(ctx context.Context, payloads map[Slot][]byte) error
	Ping(ctx context.Context) error
	Close() error
}

// Presence records which slots held data at load time. A slot that was
// stored but could not be decoded is kept with a false value.
type Presence map[Slot]bool

// Has reports whether slot was stored and decoded.
func (p Presence) Has(slot Slot) bool {
	return p[slot]
}

// Stored reports whether slot held any payload, readable or not.
func (p Presence) Stored(slot Slot) bool {
	_, ok := p[slot]
	return ok
}

// Unreadable lists the stored slots that failed to decode.
func (p Presence) Unreadable() []Slot {
	var out []Slot
	for _, slot := range Slots() {
		if ok, stored := p[slot]; stored && !ok {
			out = append(out, slot)
		}
	}
	return out
}

// LoadSnapshot reads and decodes all three slots. Absent slots decode to
// empty collections. A slot that fails to decode is reported in the
// returned error alongside whatever else loaded, and is marked unreadable.
func LoadSnapshot(ctx context.Context, repo Repository) (domain.Snapshot, Presence, error) {
	snapshot := domain.Snapshot{
		Sales:        []domain.Sale{},
		Transactions: []domain.Transaction{},
		Inventory:    []domain.InventoryItem{},
	}
	presence := Presence{}

	var decodeErrs []error
	for _, slot := range Slots() {
		payload, err := repo.Load(ctx, slot)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.Snapshot{}, nil, fmt.Errorf("load %s: %w", slot, err)
		}

		if err := decodeSlot(slot, payload, &snapshot); err != nil {
			decodeErrs = append(decodeErrs, fmt.Errorf("%w %s: %v", ErrInvalidSlot, slot, err))
			presence[slot] = false
			continue
		}
		presence[slot] = true
	}

	normalizeTransactions(snapshot.Transactions)
	return snapshot, presence, errors.Join(decodeErrs...)
}

func decodeSlot(slot Slot, payload []byte, snapshot *domain.Snapshot) error {
	switch slot {
	case SlotSales:
		var sales []domain.Sale
		if err := json.Unmarshal(payload, &sales); err != nil {
			return err
		}
		snapshot.Sales = nonNil(sales)
	case SlotTransactions:
		var txs []domain.Transaction
		if err := json.Unmarshal(payload, &txs); err != nil {
			return err
		}
		snapshot.Transactions = nonNil(txs)
	case SlotInventory:
		var items []domain.InventoryItem
		if err := json.Unmarshal(payload, &items); err != nil {
			return err
		}
		snapshot.Inventory = nonNil(items)
	default:
		return ErrInvalidSlot
	}
	return nil
}

// SaveSnapshot encodes and writes all three slots, even when only one of
// the collections changed.
func SaveSnapshot(ctx context.Context, repo Repository, snapshot domain.Snapshot) error {
	return SaveSlots(ctx, repo, snapshot, Slots())
}

// SaveSlots writes only the given slots of snapshot, together.
func SaveSlots(ctx context.Context, repo Repository, snapshot domain.Snapshot, slots []Slot) error {
	values := map[Slot]any{
		SlotSales:        nonNil(snapshot.Sales),
		SlotTransactions: nonNil(snapshot.Transactions),
		SlotInventory:    nonNil(snapshot.Inventory),
	}

	payloads := make(map[Slot][]byte, len(slots))
	for _, slot := range slots {
		value, ok := values[slot]
		if !ok {
			return fmt.Errorf("encode %s: %w", slot, ErrInvalidSlot)
		}
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("encode %s: %w", slot, err)
		}
		payloads[slot] = payload
	}
	return repo.SaveAll(ctx, payloads)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// normalizeTransactions treats lines without a kind as manual entries.
func normalizeTransactions(txs []domain.Transaction) {
	for i := range txs {
		if !txs[i].Kind.Valid() {
			txs[i].Kind = domain.KindManual
			txs[i].SaleID = ""
		}
	}
}
