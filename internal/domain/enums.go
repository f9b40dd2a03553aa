package domain

// Store is a physical or direct sales location.
type Store string

const (
	StoreFortaleza  Store = "Fortaleza"
	StoreJaguaruana Store = "Jaguaruana"
	StoreDireta     Store = "Direta"
)

var stores = []Store{StoreFortaleza, StoreJaguaruana, StoreDireta}

// Stores returns every store in declaration order.
func Stores() []Store {
	out := make([]Store, len(stores))
	copy(out, stores)
	return out
}

func (s Store) Valid() bool {
	for _, known := range stores {
		if s == known {
			return true
		}
	}
	return false
}

// Salesperson is the agent a sale is attributed to.
type Salesperson string

const (
	SalespersonStela  Salesperson = "Stela"
	SalespersonThiago Salesperson = "Thiago"
	SalespersonRegis  Salesperson = "Regis"
)

var salespeople = []Salesperson{SalespersonStela, SalespersonThiago, SalespersonRegis}

func Salespeople() []Salesperson {
	out := make([]Salesperson, len(salespeople))
	copy(out, salespeople)
	return out
}

func (s Salesperson) Valid() bool {
	for _, known := range salespeople {
		if s == known {
			return true
		}
	}
	return false
}

// FinancialCategory classifies a ledger line. Everything that is not
// CategoryRevenue counts as an outflow in every aggregation.
type FinancialCategory string

const (
	CategoryRevenue         FinancialCategory = "REVENUE"
	CategoryFixedCost       FinancialCategory = "FIXED_COST"
	CategoryVariableCost    FinancialCategory = "VARIABLE_COST"
	CategoryFixedExpense    FinancialCategory = "FIXED_EXPENSE"
	CategoryVariableExpense FinancialCategory = "VARIABLE_EXPENSE"
)

var categories = []FinancialCategory{
	CategoryRevenue,
	CategoryFixedCost,
	CategoryVariableCost,
	CategoryFixedExpense,
	CategoryVariableExpense,
}

func Categories() []FinancialCategory {
	out := make([]FinancialCategory, len(categories))
	copy(out, categories)
	return out
}

func (c FinancialCategory) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

func (c FinancialCategory) IsRevenue() bool {
	return c == CategoryRevenue
}

// Label is the human readable name used in reports and exports.
func (c FinancialCategory) Label() string {
	switch c {
	case CategoryRevenue:
		return "Revenue"
	case CategoryFixedCost:
		return "Fixed cost"
	case CategoryVariableCost:
		return "Variable cost"
	case CategoryFixedExpense:
		return "Fixed expense"
	case CategoryVariableExpense:
		return "Variable expense"
	default:
		return string(c)
	}
}

// TransactionKind records who owns a ledger line.
type TransactionKind string

const (
	KindManual      TransactionKind = "manual"
	KindSaleRevenue TransactionKind = "sale_revenue"
	KindSaleCost    TransactionKind = "sale_cost"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case KindManual, KindSaleRevenue, KindSaleCost:
		return true
	default:
		return false
	}
}

// Derived reports whether the line is owned by a sale.
func (k TransactionKind) Derived() bool {
	return k == KindSaleRevenue || k == KindSaleCost
}
