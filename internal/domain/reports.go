package domain

import "github.com/shopspring/decimal"

type StoreComparison struct {
	Store    Store           `json:"store"`
	Sales    decimal.Decimal `json:"sales"`
	Expenses decimal.Decimal `json:"expenses"`
}

type CategoryTotal struct {
	Category FinancialCategory `json:"category"`
	Label    string            `json:"label"`
	Total    decimal.Decimal   `json:"total"`
}

// DailyFlow is one calendar day of ledger activity, keyed YYYY-MM-DD.
type DailyFlow struct {
	Day     string          `json:"day"`
	Revenue decimal.Decimal `json:"revenue"`
	Expense decimal.Decimal `json:"expense"`
}

type DashboardReport struct {
	TotalRevenue  decimal.Decimal   `json:"total_revenue"`
	TotalExpenses decimal.Decimal   `json:"total_expenses"`
	NetResult     decimal.Decimal   `json:"net_result"`
	SalesCount    int               `json:"sales_count"`
	LowStock      []InventoryItem   `json:"low_stock"`
	ByStore       []StoreComparison `json:"by_store"`
	ByCategory    []CategoryTotal   `json:"by_category"`
	Daily         []DailyFlow       `json:"daily"`
}

type ProductPerformance struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Deleted   bool            `json:"deleted"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Profit    decimal.Decimal `json:"profit"`
	// Margin is profit over revenue as a fraction, zero without revenue.
	Margin decimal.Decimal `json:"margin"`
}

type ProductReport struct {
	Items         []ProductPerformance `json:"items"`
	TotalQuantity int                  `json:"total_quantity"`
	TotalRevenue  decimal.Decimal      `json:"total_revenue"`
	TotalProfit   decimal.Decimal      `json:"total_profit"`
}

type CashFlowReport struct {
	Transactions []Transaction   `json:"transactions"`
	Income       decimal.Decimal `json:"income"`
	Expense      decimal.Decimal `json:"expense"`
	Balance      decimal.Decimal `json:"balance"`
}
