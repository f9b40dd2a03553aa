package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
	"backoffice/internal/inventory"
)

const (
	dailyWindow = 15

	DeletedProductName = "Deleted product"
	DeletedProductSKU  = "---"
)

func Dashboard(snapshot domain.Snapshot) domain.DashboardReport {
	income, expense := SplitFlow(snapshot.Transactions)

	return domain.DashboardReport{
		TotalRevenue:  income,
		TotalExpenses: expense,
		NetResult:     income.Sub(expense),
		SalesCount:    len(snapshot.Sales),
		LowStock:      inventory.LowStock(snapshot.Inventory),
		ByStore:       StoreComparison(snapshot.Sales, snapshot.Transactions),
		ByCategory:    CategoryTotals(snapshot.Transactions),
		Daily:         DailySeries(snapshot.Transactions, dailyWindow),
	}
}

// StoreComparison has one row per store, in declaration order, even for
// stores without activity.
func StoreComparison(sales []domain.Sale, txs []domain.Transaction) []domain.StoreComparison {
	rows := make([]domain.StoreComparison, 0, len(domain.Stores()))
	for _, store := range domain.Stores() {
		row := domain.StoreComparison{Store: store, Sales: decimal.Zero, Expenses: decimal.Zero}
		for _, sale := range sales {
			if sale.Store == store {
				row.Sales = row.Sales.Add(sale.Amount)
			}
		}
		for _, tx := range txs {
			if tx.Store == store && !tx.Category.IsRevenue() {
				row.Expenses = row.Expenses.Add(tx.Amount)
			}
		}
		rows = append(rows, row)
	}
	return rows
}

// CategoryTotals skips categories whose total is not positive.
func CategoryTotals(txs []domain.Transaction) []domain.CategoryTotal {
	totals := make(map[domain.FinancialCategory]decimal.Decimal)
	for _, tx := range txs {
		if !tx.Category.Valid() {
			continue
		}
		totals[tx.Category] = totals[tx.Category].Add(tx.Amount)
	}

	out := make([]domain.CategoryTotal, 0, len(totals))
	for _, category := range domain.Categories() {
		total, ok := totals[category]
		if !ok || !total.IsPositive() {
			continue
		}
		out = append(out, domain.CategoryTotal{Category: category, Label: category.Label(), Total: total})
	}
	return out
}

// DailySeries buckets ledger lines per calendar day, ascending, and keeps
// the last window days that had any activity.
func DailySeries(txs []domain.Transaction, window int) []domain.DailyFlow {
	byDay := make(map[string]*domain.DailyFlow)
	for _, tx := range txs {
		key := DayKey(tx.Date)
		flow, ok := byDay[key]
		if !ok {
			flow = &domain.DailyFlow{Day: key, Revenue: decimal.Zero, Expense: decimal.Zero}
			byDay[key] = flow
		}
		if tx.Category.IsRevenue() {
			flow.Revenue = flow.Revenue.Add(tx.Amount)
		} else {
			flow.Expense = flow.Expense.Add(tx.Amount)
		}
	}

	out := make([]domain.DailyFlow, 0, len(byDay))
	for _, flow := range byDay {
		out = append(out, *flow)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day < out[j].Day })

	if window > 0 && len(out) > window {
		out = out[len(out)-window:]
	}
	return out
}

// ProductPerformance groups product-linked sales in the range by product.
// Cost prefers the ledger line the sale produced, which froze the unit cost
// at sale time, and falls back to the current unit cost.
func ProductPerformance(snapshot domain.Snapshot, from time.Time, to time.Time) domain.ProductReport {
	costBySale := make(map[string]decimal.Decimal)
	for _, tx := range snapshot.Transactions {
		if tx.Kind == domain.KindSaleCost && tx.SaleID != "" {
			costBySale[tx.SaleID] = costBySale[tx.SaleID].Add(tx.Amount)
		}
	}

	stats := make(map[string]*domain.ProductPerformance)
	order := make([]string, 0)
	for _, sale := range FilterSales(snapshot.Sales, domain.SaleFilter{From: from, To: to}) {
		if sale.ProductID == "" {
			continue
		}

		row, ok := stats[sale.ProductID]
		if !ok {
			row = &domain.ProductPerformance{
				ProductID: sale.ProductID,
				Name:      DeletedProductName,
				SKU:       DeletedProductSKU,
				Deleted:   true,
				Revenue:   decimal.Zero,
				Cost:      decimal.Zero,
			}
			if item, found := snapshot.FindItem(sale.ProductID); found {
				row.Name = item.Name
				row.SKU = item.SKU
				row.Deleted = false
			}
			stats[sale.ProductID] = row
			order = append(order, sale.ProductID)
		}

		row.Quantity += sale.Quantity
		row.Revenue = row.Revenue.Add(sale.Amount)
		if cost, found := costBySale[sale.ID]; found {
			row.Cost = row.Cost.Add(cost)
		} else if item, found := snapshot.FindItem(sale.ProductID); found {
			row.Cost = row.Cost.Add(item.UnitCost.Mul(decimal.NewFromInt(int64(sale.Quantity))))
		}
	}

	report := domain.ProductReport{
		Items:        make([]domain.ProductPerformance, 0, len(order)),
		TotalRevenue: decimal.Zero,
		TotalProfit:  decimal.Zero,
	}
	for _, id := range order {
		row := stats[id]
		row.Profit = row.Revenue.Sub(row.Cost)
		row.Margin = Margin(row.Profit, row.Revenue)

		report.Items = append(report.Items, *row)
		report.TotalQuantity += row.Quantity
		report.TotalRevenue = report.TotalRevenue.Add(row.Revenue)
		report.TotalProfit = report.TotalProfit.Add(row.Profit)
	}
	sort.SliceStable(report.Items, func(i, j int) bool {
		return report.Items[i].Revenue.GreaterThan(report.Items[j].Revenue)
	})
	return report
}

// Margin is profit/revenue rounded to four places, zero when revenue is zero.
func Margin(profit decimal.Decimal, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return profit.DivRound(revenue, 4)
}

// CashFlow lists ledger lines for the range and store, newest first.
func CashFlow(txs []domain.Transaction, filter domain.TransactionFilter) domain.CashFlowReport {
	filtered := FilterTransactions(txs, filter)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Date.After(filtered[j].Date)
	})

	income, expense := SplitFlow(filtered)
	return domain.CashFlowReport{
		Transactions: filtered,
		Income:       income,
		Expense:      expense,
		Balance:      income.Sub(expense),
	}
}
