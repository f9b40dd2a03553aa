package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Sale struct {
	ID          string          `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      decimal.Decimal `json:"amount"`
	Store       Store           `json:"store"`
	Salesperson Salesperson     `json:"salesperson"`
	Description string          `json:"description"`
	ProductID   string          `json:"product_id,omitempty"`
	Quantity    int             `json:"quantity,omitempty"`
}

// Linked reports whether the sale consumes inventory. ProductID and Quantity
// only count together.
func (s Sale) Linked() bool {
	return s.ProductID != "" && s.Quantity > 0
}

type Transaction struct {
	ID          string            `json:"id"`
	Date        time.Time         `json:"date"`
	Amount      decimal.Decimal   `json:"amount"`
	Category    FinancialCategory `json:"category"`
	Description string            `json:"description"`
	Store       Store             `json:"store"`
	Kind        TransactionKind   `json:"kind"`
	SaleID      string            `json:"sale_id,omitempty"`
}

// OwnedBy reports whether the line was derived from the given sale.
func (t Transaction) OwnedBy(saleID string) bool {
	return saleID != "" && t.Kind.Derived() && t.SaleID == saleID
}

// DerivedTransactionID is the stable id of the line a sale owns for kind.
func DerivedTransactionID(kind TransactionKind, saleID string) string {
	switch kind {
	case KindSaleRevenue:
		return "rev-" + saleID
	case KindSaleCost:
		return "cost-" + saleID
	default:
		return saleID
	}
}

type InventoryItem struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	MinQuantity int             `json:"min_quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Category    string          `json:"category"`
}

// LowStock is the restock alert condition.
func (i InventoryItem) LowStock() bool {
	return i.Quantity <= i.MinQuantity
}

// Snapshot is the whole application state: the three persisted collections,
// newest entries first.
type Snapshot struct {
	Sales        []Sale          `json:"sales"`
	Transactions []Transaction   `json:"transactions"`
	Inventory    []InventoryItem `json:"inventory"`
}

// Clone returns a deep copy; the collections hold only value types.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Sales:        make([]Sale, len(s.Sales)),
		Transactions: make([]Transaction, len(s.Transactions)),
		Inventory:    make([]InventoryItem, len(s.Inventory)),
	}
	copy(out.Sales, s.Sales)
	copy(out.Transactions, s.Transactions)
	copy(out.Inventory, s.Inventory)
	return out
}

func (s Snapshot) FindSale(id string) (Sale, bool) {
	for _, sale := range s.Sales {
		if sale.ID == id {
			return sale, true
		}
	}
	return Sale{}, false
}

func (s Snapshot) FindItem(id string) (InventoryItem, bool) {
	for _, item := range s.Inventory {
		if item.ID == id {
			return item, true
		}
	}
	return InventoryItem{}, false
}

func (s Snapshot) FindTransaction(id string) (Transaction, bool) {
	for _, tx := range s.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return Transaction{}, false
}

// ValidationError carries the human readable reasons an input was refused.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return "validation failed"
	}
	return strings.Join(e.Messages, "; ")
}

// NewValidationError returns nil when there is nothing to report.
func NewValidationError(messages []string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

type SaleCreateRequest struct {
	Date        string          `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Store       Store           `json:"store" validate:"store"`
	Salesperson Salesperson     `json:"salesperson" validate:"salesperson"`
	Description string          `json:"description" validate:"min=3"`
	ProductID   string          `json:"product_id,omitempty"`
	Quantity    int             `json:"quantity,omitempty" validate:"gte=0"`
}

// SaleUpdateRequest is the full-record edit. The product link is fixed at
// creation and cannot be changed here.
type SaleUpdateRequest struct {
	Date        string          `json:"date" validate:"required"`
	Amount      decimal.Decimal `json:"amount"`
	Store       Store           `json:"store" validate:"store"`
	Salesperson Salesperson     `json:"salesperson" validate:"salesperson"`
	Description string          `json:"description" validate:"min=3"`
	Quantity    *int            `json:"quantity,omitempty" validate:"omitempty,gte=0"`
}

type SaleResponse struct {
	Sale         Sale          `json:"sale"`
	Transactions []Transaction `json:"transactions"`
}

type SaleMutationResponse struct {
	Found        bool          `json:"found"`
	Sale         *Sale         `json:"sale,omitempty"`
	Transactions []Transaction `json:"transactions,omitempty"`
}

type SaleFilter struct {
	From        time.Time
	To          time.Time
	Salesperson Salesperson
	Store       Store
}

type SaleListResponse struct {
	Sales []Sale          `json:"sales"`
	Total decimal.Decimal `json:"total"`
}

type TransactionCreateRequest struct {
	Date        string            `json:"date" validate:"required"`
	Amount      decimal.Decimal   `json:"amount"`
	Category    FinancialCategory `json:"category" validate:"category"`
	Store       Store             `json:"store" validate:"store"`
	Description string            `json:"description" validate:"min=3"`
}

type TransactionFilter struct {
	From     time.Time
	To       time.Time
	Store    Store
	Category FinancialCategory
	Kind     TransactionKind
}

type TransactionListResponse struct {
	Transactions []Transaction `json:"transactions"`
}

type InventoryItemCreateRequest struct {
	Name        string          `json:"name" validate:"required"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	MinQuantity int             `json:"min_quantity" validate:"gte=0"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Category    string          `json:"category" validate:"required"`
}

type InventoryItemUpdateRequest struct {
	Name        *string          `json:"name,omitempty"`
	SKU         *string          `json:"sku,omitempty"`
	Quantity    *int             `json:"quantity,omitempty"`
	MinQuantity *int             `json:"min_quantity,omitempty"`
	UnitPrice   *decimal.Decimal `json:"unit_price,omitempty"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty"`
	Category    *string          `json:"category,omitempty"`
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

type StockAdjustResponse struct {
	Found   bool           `json:"found"`
	Item    *InventoryItem `json:"item,omitempty"`
	Clamped bool           `json:"clamped"`
}

type InventoryListResponse struct {
	Items      []InventoryItem `json:"items"`
	Categories []string        `json:"categories"`
	LowStock   []InventoryItem `json:"low_stock"`
}
