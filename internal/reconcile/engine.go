package reconcile

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	"backoffice/internal/inventory"
)

// Effects is everything one engine call changed.
type Effects struct {
	Sale        domain.Sale            `json:"sale"`
	Created     []domain.Transaction   `json:"created"`
	Removed     []string               `json:"removed"`
	Adjustments []inventory.Adjustment `json:"adjustments"`
}

// Clamped reports whether any inventory step hit the zero floor.
func (e Effects) Clamped() bool {
	for _, adj := range e.Adjustments {
		if adj.Clamped {
			return true
		}
	}
	return false
}

// Engine keeps sales, their derived ledger lines and stock consistent.
// Every operation works on a copy of the given snapshot and returns the
// result; the input is never modified.
type Engine struct {
	newID func() string
}

func New(newID func() string) *Engine {
	return &Engine{newID: newID}
}

type workingSet struct {
	sales        []domain.Sale
	transactions []domain.Transaction
	ledger       *inventory.Ledger
}

func newWorkingSet(state domain.Snapshot) *workingSet {
	cloned := state.Clone()
	return &workingSet{
		sales:        cloned.Sales,
		transactions: cloned.Transactions,
		ledger:       inventory.NewLedger(cloned.Inventory),
	}
}

func (w *workingSet) snapshot() domain.Snapshot {
	return domain.Snapshot{
		Sales:        w.sales,
		Transactions: w.transactions,
		Inventory:    w.ledger.Items(),
	}
}

func (w *workingSet) saleIndex(id string) int {
	if id == "" {
		return -1
	}
	return slices.IndexFunc(w.sales, func(s domain.Sale) bool { return s.ID == id })
}

// RecordSale stores input under a fresh id and applies its effects. Any id
// already present on input is ignored.
func (e *Engine) RecordSale(state domain.Snapshot, input domain.Sale) (domain.Snapshot, Effects) {
	w := newWorkingSet(state)

	sale := input
	sale.ID = e.newID()

	effects := Effects{Sale: sale}
	applySale(w, sale, &effects)
	w.sales = append([]domain.Sale{sale}, w.sales...)

	return w.snapshot(), effects
}

// ReverseSaleImpact restocks a linked sale's quantity and drops the lines it
// owns. The sale record itself stays. Removing lines that no longer exist is
// a no-op.
func (e *Engine) ReverseSaleImpact(state domain.Snapshot, sale domain.Sale) (domain.Snapshot, Effects) {
	w := newWorkingSet(state)
	effects := Effects{Sale: sale}
	reverseSale(w, sale, &effects)
	return w.snapshot(), effects
}

// UpdateSale replaces the stored sale with the same id. The old effects are
// reversed before the new ones are applied, so stock moves in two clamped
// steps. Returns ok=false and the unchanged state when the id is unknown.
func (e *Engine) UpdateSale(state domain.Snapshot, updated domain.Sale) (domain.Snapshot, Effects, bool) {
	w := newWorkingSet(state)
	idx := w.saleIndex(updated.ID)
	if idx < 0 {
		return state, Effects{}, false
	}

	effects := Effects{Sale: updated}
	reverseSale(w, w.sales[idx], &effects)
	applySale(w, updated, &effects)
	w.sales[idx] = updated

	return w.snapshot(), effects, true
}

// DeleteSale reverses the sale's effects and removes it. Unknown ids are a
// no-op with ok=false.
func (e *Engine) DeleteSale(state domain.Snapshot, saleID string) (domain.Snapshot, Effects, bool) {
	w := newWorkingSet(state)
	idx := w.saleIndex(saleID)
	if idx < 0 {
		return state, Effects{}, false
	}

	sale := w.sales[idx]
	effects := Effects{Sale: sale}
	reverseSale(w, sale, &effects)
	w.sales = slices.Delete(w.sales, idx, idx+1)

	return w.snapshot(), effects, true
}

func applySale(w *workingSet, sale domain.Sale, effects *Effects) {
	created := []domain.Transaction{revenueLine(sale)}

	if sale.Linked() {
		if item, ok := w.ledger.Find(sale.ProductID); ok {
			// cost is fixed from the same stock snapshot that is consumed
			created = append(created, costLine(sale, item))
			if adj, err := w.ledger.AdjustQuantity(item.ID, -sale.Quantity); err == nil {
				effects.Adjustments = append(effects.Adjustments, adj)
			}
		}
	}

	w.transactions = append(slices.Clone(created), w.transactions...)
	effects.Created = append(effects.Created, created...)
}

func reverseSale(w *workingSet, sale domain.Sale, effects *Effects) {
	if sale.Linked() {
		if adj, err := w.ledger.AdjustQuantity(sale.ProductID, sale.Quantity); err == nil {
			effects.Adjustments = append(effects.Adjustments, adj)
		}
	}

	kept := w.transactions[:0]
	for _, tx := range w.transactions {
		if tx.OwnedBy(sale.ID) {
			effects.Removed = append(effects.Removed, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}
	w.transactions = kept
}

func revenueLine(sale domain.Sale) domain.Transaction {
	return domain.Transaction{
		ID:          domain.DerivedTransactionID(domain.KindSaleRevenue, sale.ID),
		Date:        sale.Date,
		Amount:      sale.Amount,
		Category:    domain.CategoryRevenue,
		Description: "Sale: " + sale.Description,
		Store:       sale.Store,
		Kind:        domain.KindSaleRevenue,
		SaleID:      sale.ID,
	}
}

func costLine(sale domain.Sale, item domain.InventoryItem) domain.Transaction {
	return domain.Transaction{
		ID:          domain.DerivedTransactionID(domain.KindSaleCost, sale.ID),
		Date:        sale.Date,
		Amount:      item.UnitCost.Mul(decimal.NewFromInt(int64(sale.Quantity))),
		Category:    domain.CategoryVariableCost,
		Description: fmt.Sprintf("Cost of goods: %s (%dx)", item.Name, sale.Quantity),
		Store:       sale.Store,
		Kind:        domain.KindSaleCost,
		SaleID:      sale.ID,
	}
}
