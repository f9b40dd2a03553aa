package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/cache"
	"backoffice/internal/domain"
	"backoffice/internal/metrics"
	"backoffice/internal/store"
	"backoffice/internal/store/memory"
)

func sequentialIDs() func(string) string {
	n := 0
	return func(prefix string) string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func newTestService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	repo := memory.New()
	svc, err := New(context.Background(), repo, Options{SeedInventory: true, NewID: sequentialIDs()})
	require.NoError(t, err)
	return svc, repo
}

func saleRequest(amount string, productID string, qty int) domain.SaleCreateRequest {
	return domain.SaleCreateRequest{
		Date:        "2026-03-10",
		Amount:      decimal.RequireFromString(amount),
		Store:       domain.StoreFortaleza,
		Salesperson: domain.SalespersonStela,
		Description: "Balcão",
		ProductID:   productID,
		Quantity:    qty,
	}
}

func itemQuantity(t *testing.T, svc *Service, id string) int {
	t.Helper()
	state, _ := svc.Snapshot()
	item, ok := state.FindItem(id)
	require.True(t, ok)
	return item.Quantity
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Messages
}

type failingRepo struct {
	*memory.Store
	failSaves bool
}

func (r *failingRepo) SaveAll(ctx context.Context, payloads map[store.Slot][]byte) error {
	if r.failSaves {
		return errors.New("disk full")
	}
	return r.Store.SaveAll(ctx, payloads)
}

type brokenRepo struct {
	*memory.Store
}

func (brokenRepo) Load(context.Context, store.Slot) ([]byte, error) {
	return nil, errors.New("connection refused")
}

type countingCache struct {
	entries map[string]any
	gets    int
	sets    int
}

func (c *countingCache) Get(_ context.Context, key string, dest any) (bool, error) {
	c.gets++
	value, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*(dest.(*domain.DashboardReport)) = value.(domain.DashboardReport)
	return true, nil
}

func (c *countingCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.sets++
	c.entries[key] = value
	return nil
}

func TestNewSeedsInventoryOnFirstStart(t *testing.T) {
	svc, repo := newTestService(t)

	list := svc.ListInventory("")
	require.Len(t, list.Items, 2)
	assert.Equal(t, "p1", list.Items[0].ID)
	assert.Equal(t, []string{"Carnes", "Frutos do Mar"}, list.Categories)
	assert.Equal(t, 1, repo.Saves())

	loaded, presence, err := store.LoadSnapshot(context.Background(), repo)
	require.NoError(t, err)
	assert.True(t, presence.Has(store.SlotInventory))
	assert.Len(t, loaded.Inventory, 2)
}

func TestNewKeepsSavedEmptyInventory(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	require.NoError(t, store.SaveSnapshot(ctx, repo, domain.Snapshot{}))

	svc, err := New(ctx, repo, Options{SeedInventory: true})
	require.NoError(t, err)

	assert.Empty(t, svc.ListInventory("").Items)
}

func TestNewLeavesUnreadableInventoryAlone(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	corrupt := []byte(`[{"id":"x1","quantity":"many"}]`)
	require.NoError(t, repo.SaveAll(ctx, map[store.Slot][]byte{store.SlotInventory: corrupt}))

	svc, err := New(ctx, repo, Options{SeedInventory: true})
	require.NoError(t, err)
	assert.Empty(t, svc.ListInventory("").Items)

	_, err = svc.RecordSale(ctx, saleRequest("40", "", 0))
	require.NoError(t, err)

	raw, err := repo.Load(ctx, store.SlotInventory)
	require.NoError(t, err)
	assert.Equal(t, corrupt, raw)

	sales, err := repo.Load(ctx, store.SlotSales)
	require.NoError(t, err)
	assert.Contains(t, string(sales), "Balcão")
}

func TestNewWithoutSeeding(t *testing.T) {
	svc, err := New(context.Background(), memory.New(), Options{SeedInventory: false})
	require.NoError(t, err)
	assert.Empty(t, svc.ListInventory("").Items)
}

func TestNewFailsWhenStorageUnavailable(t *testing.T) {
	_, err := New(context.Background(), brokenRepo{memory.New()}, Options{})
	assert.Error(t, err)
}

func TestRecordSaleLinkedConsumesStock(t *testing.T) {
	svc, repo := newTestService(t)

	resp, err := svc.RecordSale(context.Background(), saleRequest("170", "p1", 2))
	require.NoError(t, err)

	assert.Equal(t, "sale-1", resp.Sale.ID)
	assert.Equal(t, time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC), resp.Sale.Date)
	require.Len(t, resp.Transactions, 2)
	assert.True(t, resp.Transactions[1].Amount.Equal(decimal.NewFromInt(90)))
	assert.Equal(t, 48, itemQuantity(t, svc, "p1"))
	assert.Equal(t, 2, repo.Saves())
}

func TestRecordSaleValidation(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.RecordSale(context.Background(), domain.SaleCreateRequest{
		Date:        "10/03/2026",
		Amount:      decimal.Zero,
		Store:       "Recife",
		Salesperson: domain.SalespersonRegis,
		Description: " ab ",
	})
	messages := validationMessages(t, err)
	assert.Contains(t, messages, "amount must be greater than zero")
	assert.Contains(t, messages, "description must have at least 3 characters")
	assert.Contains(t, messages, "store must be one of Fortaleza, Jaguaruana, Direta")
	assert.Contains(t, messages, "date must be YYYY-MM-DD")

	_, err = svc.RecordSale(context.Background(), saleRequest("100", "p2", 31))
	assert.Equal(t, []string{"insufficient stock (available 30)"}, validationMessages(t, err))

	_, err = svc.RecordSale(context.Background(), saleRequest("100", "p2", 0))
	assert.Equal(t, []string{"quantity must be at least 1"}, validationMessages(t, err))

	_, err = svc.RecordSale(context.Background(), saleRequest("100", "nope", 1))
	assert.Equal(t, []string{"product not found"}, validationMessages(t, err))

	state, revision := svc.Snapshot()
	assert.Empty(t, state.Sales)
	assert.Zero(t, revision)
	assert.Equal(t, 1, repo.Saves())
}

func TestRecordSaleWithoutProductIgnoresQuantity(t *testing.T) {
	svc, _ := newTestService(t)

	resp, err := svc.RecordSale(context.Background(), saleRequest("40", "", 3))
	require.NoError(t, err)
	assert.Zero(t, resp.Sale.Quantity)
	assert.Len(t, resp.Transactions, 1)
}

func TestUpdateSaleStockAllowanceIncludesOwnQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordSale(ctx, saleRequest("650", "p2", 10))
	require.NoError(t, err)
	require.Equal(t, 20, itemQuantity(t, svc, "p2"))

	update := domain.SaleUpdateRequest{
		Date:        "2026-03-11",
		Amount:      decimal.NewFromInt(1950),
		Store:       domain.StoreJaguaruana,
		Salesperson: domain.SalespersonThiago,
		Description: "Atacado",
	}

	tooMany := 31
	update.Quantity = &tooMany
	_, err = svc.UpdateSale(ctx, created.Sale.ID, update)
	assert.Equal(t, []string{"insufficient stock (available 30)"}, validationMessages(t, err))

	all := 30
	update.Quantity = &all
	resp, err := svc.UpdateSale(ctx, created.Sale.ID, update)
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.Equal(t, 0, itemQuantity(t, svc, "p2"))
	assert.Equal(t, "p2", resp.Sale.ProductID)
	assert.Equal(t, domain.StoreJaguaruana, resp.Sale.Store)

	state, _ := svc.Snapshot()
	cost, ok := state.FindTransaction("cost-" + created.Sale.ID)
	require.True(t, ok)
	assert.True(t, cost.Amount.Equal(decimal.NewFromInt(1050)))
	assert.Equal(t, domain.StoreJaguaruana, cost.Store)
}

func TestUpdateSaleKeepsQuantityWhenOmitted(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	resp, err := svc.UpdateSale(ctx, created.Sale.ID, domain.SaleUpdateRequest{
		Date:        "2026-03-10",
		Amount:      decimal.NewFromInt(180),
		Store:       domain.StoreFortaleza,
		Salesperson: domain.SalespersonStela,
		Description: "Balcão",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Sale.Quantity)
	assert.Equal(t, 48, itemQuantity(t, svc, "p1"))
}

func TestUpdateAndDeleteUnknownSale(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	resp, err := svc.UpdateSale(ctx, "missing", domain.SaleUpdateRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Found)

	assert.False(t, svc.DeleteSale(ctx, "missing").Found)
	assert.Equal(t, 1, repo.Saves())
}

func TestDeleteSaleRestoresState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	resp := svc.DeleteSale(ctx, created.Sale.ID)
	require.True(t, resp.Found)
	assert.Equal(t, 50, itemQuantity(t, svc, "p1"))
	assert.Empty(t, svc.ListTransactions(domain.TransactionFilter{}).Transactions)
	assert.Empty(t, svc.ListSales(domain.SaleFilter{}).Sales)
}

func TestListSalesFiltersAndTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)
	other := saleRequest("40.50", "", 0)
	other.Salesperson = domain.SalespersonRegis
	other.Date = "2026-03-12"
	_, err = svc.RecordSale(ctx, other)
	require.NoError(t, err)

	all := svc.ListSales(domain.SaleFilter{})
	assert.Len(t, all.Sales, 2)
	assert.True(t, all.Total.Equal(decimal.RequireFromString("210.5")))

	regis := svc.ListSales(domain.SaleFilter{Salesperson: domain.SalespersonRegis})
	require.Len(t, regis.Sales, 1)
	assert.True(t, regis.Total.Equal(decimal.RequireFromString("40.5")))

	from, _ := ParseDate("2026-03-11")
	assert.Len(t, svc.ListSales(domain.SaleFilter{From: from}).Sales, 1)
}

func TestManualTransactionLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordTransaction(ctx, domain.TransactionCreateRequest{
		Date: "2026-03-01", Amount: decimal.NewFromInt(-5), Category: "RENT", Store: domain.StoreDireta, Description: "x",
	})
	messages := validationMessages(t, err)
	assert.Contains(t, messages, "amount must be positive")
	assert.Contains(t, messages, "description must have at least 3 characters")
	assert.Contains(t, messages, "category must be one of REVENUE, FIXED_COST, VARIABLE_COST, FIXED_EXPENSE, VARIABLE_EXPENSE")

	tx, err := svc.RecordTransaction(ctx, domain.TransactionCreateRequest{
		Date: "2026-03-01", Amount: decimal.NewFromInt(1200), Category: domain.CategoryFixedExpense, Store: domain.StoreDireta, Description: "Aluguel",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.KindManual, tx.Kind)
	assert.Equal(t, "tx-1", tx.ID)

	listed := svc.ListTransactions(domain.TransactionFilter{Kind: domain.KindManual})
	require.Len(t, listed.Transactions, 1)

	found, err := svc.DeleteTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = svc.DeleteTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestDeleteDerivedTransactionRefused(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	found, err := svc.DeleteTransaction(ctx, "rev-"+created.Sale.ID)
	assert.True(t, found)
	validationMessages(t, err)
	assert.Len(t, svc.ListTransactions(domain.TransactionFilter{}).Transactions, 2)
}

func TestManualTransactionSurvivesSaleDeletion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, domain.TransactionCreateRequest{
		Date: "2026-03-10", Amount: decimal.NewFromInt(20), Category: domain.CategoryVariableExpense, Store: domain.StoreFortaleza, Description: "Gelo",
	})
	require.NoError(t, err)

	svc.DeleteSale(ctx, created.Sale.ID)

	txs := svc.ListTransactions(domain.TransactionFilter{}).Transactions
	require.Len(t, txs, 1)
	assert.Equal(t, "Gelo", txs[0].Description)
}

func TestInventoryItemLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{Quantity: -1, UnitPrice: decimal.Zero, UnitCost: decimal.NewFromInt(-1)})
	messages := validationMessages(t, err)
	assert.Contains(t, messages, "name is required")
	assert.Contains(t, messages, "category is required")
	assert.Contains(t, messages, "quantity must be 0 or greater")
	assert.Contains(t, messages, "unit_price must be greater than zero")
	assert.Contains(t, messages, "unit_cost must be greater than zero")

	item, err := svc.CreateInventoryItem(ctx, domain.InventoryItemCreateRequest{
		Name: "Queijo Coalho", SKU: " qc-01 ", Quantity: 12, MinQuantity: 4,
		UnitPrice: decimal.NewFromInt(30), UnitCost: decimal.NewFromInt(18), Category: "Laticínios",
	})
	require.NoError(t, err)
	assert.Equal(t, "QC-01", item.SKU)
	assert.Equal(t, item.ID, svc.ListInventory("").Items[0].ID)
	assert.Len(t, svc.ListInventory("Laticínios").Items, 1)

	negative := -3
	zeroPrice := decimal.Zero
	updated, found, err := svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{Quantity: &negative, UnitPrice: &zeroPrice})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 0, updated.Quantity)
	assert.True(t, updated.UnitPrice.Equal(decimal.RequireFromString("0.01")))
	assert.True(t, updated.UnitCost.Equal(decimal.NewFromInt(18)))

	blank := " "
	_, found, err = svc.UpdateInventoryItem(ctx, item.ID, domain.InventoryItemUpdateRequest{Name: &blank})
	assert.True(t, found)
	assert.Equal(t, []string{"name is required"}, validationMessages(t, err))

	_, found, err = svc.UpdateInventoryItem(ctx, "missing", domain.InventoryItemUpdateRequest{})
	require.NoError(t, err)
	assert.False(t, found)

	assert.True(t, svc.DeleteInventoryItem(ctx, item.ID))
	assert.False(t, svc.DeleteInventoryItem(ctx, item.ID))
}

func TestAdjustStockClamps(t *testing.T) {
	m := metrics.New()
	svc, err := New(context.Background(), memory.New(), Options{SeedInventory: true, Metrics: m})
	require.NoError(t, err)
	ctx := context.Background()

	resp, err := svc.AdjustStock(ctx, "p1", -1000)
	require.NoError(t, err)
	require.True(t, resp.Found)
	assert.True(t, resp.Clamped)
	assert.Equal(t, 0, resp.Item.Quantity)
	assert.True(t, resp.Item.LowStock())

	resp, err = svc.AdjustStock(ctx, "p1", 5)
	require.NoError(t, err)
	assert.Equal(t, 5, resp.Item.Quantity)

	resp, err = svc.AdjustStock(ctx, "missing", 1)
	require.NoError(t, err)
	assert.False(t, resp.Found)

	assert.Len(t, svc.ListInventory("").LowStock, 1)
}

func TestDeletedProductShowsPlaceholderInReport(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)
	require.True(t, svc.DeleteInventoryItem(ctx, "p1"))

	report := svc.ProductPerformance(ctx, time.Time{}, time.Time{})
	require.Len(t, report.Items, 1)
	assert.True(t, report.Items[0].Deleted)
	assert.True(t, report.Items[0].Cost.Equal(decimal.NewFromInt(90)))

	state, _ := svc.Snapshot()
	assert.Equal(t, "p1", state.Sales[0].ProductID)
}

func TestSaveFailureKeepsInMemoryChange(t *testing.T) {
	repo := &failingRepo{Store: memory.New()}
	svc, err := New(context.Background(), repo, Options{SeedInventory: true})
	require.NoError(t, err)

	repo.failSaves = true
	resp, err := svc.RecordSale(context.Background(), saleRequest("170", "p1", 2))
	require.NoError(t, err)

	state, revision := svc.Snapshot()
	assert.Equal(t, resp.Sale.ID, state.Sales[0].ID)
	assert.Equal(t, uint64(1), revision)
	assert.Equal(t, 48, itemQuantity(t, svc, "p1"))

	persisted, _, err := store.LoadSnapshot(context.Background(), repo)
	require.NoError(t, err)
	assert.Empty(t, persisted.Sales)
}

func TestStateSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	first, err := New(ctx, repo, Options{SeedInventory: true})
	require.NoError(t, err)
	created, err := first.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	second, err := New(ctx, repo, Options{SeedInventory: true})
	require.NoError(t, err)

	state, _ := second.Snapshot()
	require.Len(t, state.Sales, 1)
	assert.Equal(t, created.Sale.ID, state.Sales[0].ID)
	assert.Equal(t, 48, itemQuantity(t, second, "p1"))
	assert.Len(t, state.Transactions, 2)
}

func TestDashboardCachedPerRevision(t *testing.T) {
	c := &countingCache{entries: map[string]any{}}
	svc, err := New(context.Background(), memory.New(), Options{SeedInventory: true, Cache: c})
	require.NoError(t, err)
	ctx := context.Background()

	first := svc.Dashboard(ctx)
	second := svc.Dashboard(ctx)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, c.sets)

	_, err = svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	third := svc.Dashboard(ctx)
	assert.Equal(t, 2, c.sets)
	assert.Equal(t, 1, third.SalesCount)
	assert.True(t, third.TotalRevenue.Equal(decimal.NewFromInt(170)))
	assert.True(t, third.TotalExpenses.Equal(decimal.NewFromInt(90)))
}

func TestReportCacheSharedAcrossRestart(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	c := &countingCache{entries: map[string]any{}}

	first, err := New(ctx, repo, Options{SeedInventory: true, Cache: c})
	require.NoError(t, err)
	assert.Zero(t, first.Dashboard(ctx).SalesCount)

	_, err = first.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)

	// the restarted service starts again at revision zero
	second, err := New(ctx, repo, Options{SeedInventory: true, Cache: c})
	require.NoError(t, err)
	_, revision := second.Snapshot()
	require.Zero(t, revision)

	report := second.Dashboard(ctx)
	assert.Equal(t, 1, report.SalesCount)
	assert.True(t, report.TotalRevenue.Equal(decimal.NewFromInt(170)))
	assert.Equal(t, 2, c.sets)
}

func TestCashFlowByStore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, saleRequest("170", "p1", 2))
	require.NoError(t, err)
	_, err = svc.RecordTransaction(ctx, domain.TransactionCreateRequest{
		Date: "2026-03-02", Amount: decimal.NewFromInt(300), Category: domain.CategoryFixedCost, Store: domain.StoreDireta, Description: "Internet",
	})
	require.NoError(t, err)

	flow := svc.CashFlow(ctx, domain.TransactionFilter{Store: domain.StoreFortaleza})
	assert.Len(t, flow.Transactions, 2)
	assert.True(t, flow.Balance.Equal(decimal.NewFromInt(80)))

	all := svc.CashFlow(ctx, domain.TransactionFilter{})
	assert.True(t, all.Balance.Equal(decimal.NewFromInt(-220)))
	assert.Equal(t, "Internet", all.Transactions[2].Description)
}

var _ cache.ReportCache = (*countingCache)(nil)
