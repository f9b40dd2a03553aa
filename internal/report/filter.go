package report

import (
	"time"

	"github.com/shopspring/decimal"

	"backoffice/internal/domain"
)

const dayLayout = "2006-01-02"

// DayKey is the UTC calendar day of t.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}

// InRange compares calendar days, inclusive on both ends. A zero bound is
// open.
func InRange(t time.Time, from time.Time, to time.Time) bool {
	day := DayKey(t)
	if !from.IsZero() && day < DayKey(from) {
		return false
	}
	if !to.IsZero() && day > DayKey(to) {
		return false
	}
	return true
}

func FilterSales(sales []domain.Sale, filter domain.SaleFilter) []domain.Sale {
	out := make([]domain.Sale, 0, len(sales))
	for _, sale := range sales {
		if !InRange(sale.Date, filter.From, filter.To) {
			continue
		}
		if filter.Salesperson != "" && sale.Salesperson != filter.Salesperson {
			continue
		}
		if filter.Store != "" && sale.Store != filter.Store {
			continue
		}
		out = append(out, sale)
	}
	return out
}

func FilterTransactions(txs []domain.Transaction, filter domain.TransactionFilter) []domain.Transaction {
	out := make([]domain.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !InRange(tx.Date, filter.From, filter.To) {
			continue
		}
		if filter.Store != "" && tx.Store != filter.Store {
			continue
		}
		if filter.Category != "" && tx.Category != filter.Category {
			continue
		}
		if filter.Kind != "" && tx.Kind != filter.Kind {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func SumSales(sales []domain.Sale) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		total = total.Add(sale.Amount)
	}
	return total
}

// SplitFlow sums revenue lines into income and everything else into expense.
func SplitFlow(txs []domain.Transaction) (income decimal.Decimal, expense decimal.Decimal) {
	income, expense = decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if tx.Category.IsRevenue() {
			income = income.Add(tx.Amount)
		} else {
			expense = expense.Add(tx.Amount)
		}
	}
	return income, expense
}
