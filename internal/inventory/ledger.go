package inventory

import (
	"errors"
	"math"
	"slices"
	"sort"

	"backoffice/internal/domain"
)

var ErrUnknownItem = errors.New("unknown inventory item")

// Adjustment describes one applied quantity change.
type Adjustment struct {
	ItemID  string `json:"item_id"`
	Before  int    `json:"before"`
	After   int    `json:"after"`
	Delta   int    `json:"delta"`
	Clamped bool   `json:"clamped"`
}

// Applied is the change that actually reached the stored quantity, which
// differs from Delta when the floor at zero absorbed part of it.
func (a Adjustment) Applied() int {
	return a.After - a.Before
}

// Ledger tracks on-hand quantity for a working copy of the item collection.
// It is not safe for concurrent use; callers own the copy they hand in.
type Ledger struct {
	items []domain.InventoryItem
}

func NewLedger(items []domain.InventoryItem) *Ledger {
	return &Ledger{items: slices.Clone(items)}
}

func (l *Ledger) Items() []domain.InventoryItem {
	return slices.Clone(l.items)
}

func (l *Ledger) Find(id string) (domain.InventoryItem, bool) {
	idx := l.indexOf(id)
	if idx < 0 {
		return domain.InventoryItem{}, false
	}
	return l.items[idx], true
}

// AdjustQuantity applies delta and floors the result at zero. Hitting the
// floor is reported through Adjustment.Clamped, never as an error. Restocks
// saturate at math.MaxInt.
func (l *Ledger) AdjustQuantity(id string, delta int) (Adjustment, error) {
	idx := l.indexOf(id)
	if idx < 0 {
		return Adjustment{}, ErrUnknownItem
	}

	before := l.items[idx].Quantity
	clamped := false
	var after int
	switch {
	case delta > 0 && before > math.MaxInt-delta:
		after = math.MaxInt
	case before+delta < 0:
		after = 0
		clamped = true
	default:
		after = before + delta
	}
	l.items[idx].Quantity = after

	return Adjustment{
		ItemID:  id,
		Before:  before,
		After:   after,
		Delta:   delta,
		Clamped: clamped,
	}, nil
}

// Add prepends item; newest entries come first.
func (l *Ledger) Add(item domain.InventoryItem) {
	l.items = append([]domain.InventoryItem{item}, l.items...)
}

func (l *Ledger) Replace(item domain.InventoryItem) bool {
	idx := l.indexOf(item.ID)
	if idx < 0 {
		return false
	}
	l.items[idx] = item
	return true
}

func (l *Ledger) Remove(id string) bool {
	idx := l.indexOf(id)
	if idx < 0 {
		return false
	}
	l.items = slices.Delete(l.items, idx, idx+1)
	return true
}

func (l *Ledger) indexOf(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(l.items, func(item domain.InventoryItem) bool {
		return item.ID == id
	})
}

// LowStock returns the items at or below their minimum, in collection order.
func LowStock(items []domain.InventoryItem) []domain.InventoryItem {
	out := make([]domain.InventoryItem, 0)
	for _, item := range items {
		if item.LowStock() {
			out = append(out, item)
		}
	}
	return out
}

// Categories returns the distinct non-empty item categories, sorted.
func Categories(items []domain.InventoryItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0)
	for _, item := range items {
		if item.Category == "" {
			continue
		}
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		out = append(out, item.Category)
	}
	sort.Strings(out)
	return out
}
