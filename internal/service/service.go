package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"backoffice/internal/cache"
	"backoffice/internal/domain"
	"backoffice/internal/inventory"
	"backoffice/internal/logging"
	"backoffice/internal/metrics"
	"backoffice/internal/reconcile"
	"backoffice/internal/report"
	"backoffice/internal/store"
	"backoffice/internal/xid"
)

var minUnitMoney = decimal.RequireFromString("0.01")

type Options struct {
	Cache    cache.ReportCache
	CacheTTL time.Duration
	Metrics  *metrics.Metrics
	// SeedInventory installs the default items when no inventory was ever saved.
	SeedInventory bool
	NewID         func(prefix string) string
}

// Service owns the application state. Every snapshot it holds is treated as
// immutable: mutations build new collections and swap them in under mu, so
// readers may keep using a snapshot after releasing the lock.
type Service struct {
	mu       sync.Mutex
	state    domain.Snapshot
	revision uint64
	epoch    string // separates this process's revisions in a shared cache
	writable []store.Slot // slots unreadable at load are never written back

	repo     store.Repository
	engine   *reconcile.Engine
	cache    cache.ReportCache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	validate *validator.Validate
	newID    func(prefix string) string
	logger   zerolog.Logger
}

// New loads the persisted slots and returns a ready service. A slot that
// cannot be decoded is logged, served as empty and never written back.
func New(ctx context.Context, repo store.Repository, opts Options) (*Service, error) {
	if opts.Cache == nil {
		opts.Cache = cache.NoopReportCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.NewID == nil {
		opts.NewID = xid.New
	}

	s := &Service{
		repo:     repo,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		validate: newValidator(),
		newID:    opts.NewID,
		epoch:    xid.New("epoch"),
		logger:   logging.Component("service"),
	}
	s.engine = reconcile.New(func() string { return s.newID("sale") })

	snapshot, presence, err := store.LoadSnapshot(ctx, repo)
	if err != nil {
		if !errors.Is(err, store.ErrInvalidSlot) {
			return nil, fmt.Errorf("load state: %w", err)
		}
		s.logger.Warn().Err(err).Msg("ignoring unreadable slots")
	}
	s.state = snapshot

	unreadable := presence.Unreadable()
	for _, slot := range store.Slots() {
		if !slices.Contains(unreadable, slot) {
			s.writable = append(s.writable, slot)
		}
	}
	if len(unreadable) > 0 {
		s.logger.Warn().Interface("slots", unreadable).Msg("unreadable slots are left untouched in storage")
	}

	if !presence.Stored(store.SlotInventory) && opts.SeedInventory {
		s.state.Inventory = DefaultInventory()
		s.logger.Info().Int("items", len(s.state.Inventory)).Msg("seeded default inventory")
		s.persist(ctx)
	}

	s.logger.Info().
		Int("sales", len(s.state.Sales)).
		Int("transactions", len(s.state.Transactions)).
		Int("inventory", len(s.state.Inventory)).
		Msg("state loaded")
	return s, nil
}

// DefaultInventory is the example stock installed on first start.
func DefaultInventory() []domain.InventoryItem {
	return []domain.InventoryItem{
		{
			ID:          "p1",
			Name:        "Camarão Rosa G",
			SKU:         "CAM-RG",
			Quantity:    50,
			MinQuantity: 10,
			UnitPrice:   decimal.NewFromInt(85),
			UnitCost:    decimal.NewFromInt(45),
			Category:    "Frutos do Mar",
		},
		{
			ID:          "p2",
			Name:        "Carne de Sol Especial",
			SKU:         "CS-ESP",
			Quantity:    30,
			MinQuantity: 5,
			UnitPrice:   decimal.NewFromInt(65),
			UnitCost:    decimal.NewFromInt(35),
			Category:    "Carnes",
		},
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Snapshot returns the current state and its revision.
func (s *Service) Snapshot() (domain.Snapshot, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.revision
}

// commit swaps in next and saves it. Callers hold mu. A failed save is
// logged and leaves the in-memory change in place.
func (s *Service) commit(ctx context.Context, next domain.Snapshot) {
	s.state = next
	s.revision++
	s.persist(ctx)
}

func (s *Service) persist(ctx context.Context) {
	if len(s.writable) == 0 {
		return
	}
	startedAt := time.Now()
	err := store.SaveSlots(ctx, s.repo, s.state, s.writable)
	s.metrics.RecordSave(err == nil, time.Since(startedAt))
	if err != nil {
		s.logger.Warn().Err(err).Uint64("revision", s.revision).Msg("failed to save state")
	}
}

func (s *Service) reject(entity string, messages []string) error {
	s.metrics.RecordValidationReject(entity)
	return domain.NewValidationError(messages)
}

func (s *Service) recordEffects(operation string, effects reconcile.Effects) {
	s.metrics.RecordSaleOperation(operation)
	for _, tx := range effects.Created {
		s.metrics.RecordLedgerEntry(string(tx.Kind))
	}
	for _, adj := range effects.Adjustments {
		s.metrics.RecordStockAdjustment("sale", adj.Clamped)
		if adj.Clamped {
			s.logger.Warn().
				Str("sale_id", effects.Sale.ID).
				Str("item_id", adj.ItemID).
				Int("before", adj.Before).
				Int("delta", adj.Delta).
				Msg("stock clamped at zero")
		}
	}
}

func (s *Service) RecordSale(ctx context.Context, req domain.SaleCreateRequest) (domain.SaleResponse, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Description = strings.TrimSpace(req.Description)
	req.ProductID = strings.TrimSpace(req.ProductID)

	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.structMessages(req)
	date, messages := dateMessages(req.Date, messages)
	if !req.Amount.IsPositive() {
		messages = append(messages, "amount must be greater than zero")
	}

	quantity := 0
	if req.ProductID != "" {
		quantity = req.Quantity
		item, ok := s.state.FindItem(req.ProductID)
		switch {
		case !ok:
			messages = append(messages, "product not found")
		case quantity < 1:
			messages = append(messages, "quantity must be at least 1")
		case quantity > item.Quantity:
			messages = append(messages, fmt.Sprintf("insufficient stock (available %d)", item.Quantity))
		}
	}
	if len(messages) > 0 {
		return domain.SaleResponse{}, s.reject("sale", messages)
	}

	sale := domain.Sale{
		Date:        date,
		Amount:      req.Amount,
		Store:       req.Store,
		Salesperson: req.Salesperson,
		Description: req.Description,
		ProductID:   req.ProductID,
		Quantity:    quantity,
	}
	next, effects := s.engine.RecordSale(s.state, sale)
	s.commit(ctx, next)
	s.recordEffects("record", effects)

	s.logger.Info().Str("sale_id", effects.Sale.ID).Str("amount", sale.Amount.StringFixed(2)).Msg("sale recorded")
	return domain.SaleResponse{Sale: effects.Sale, Transactions: effects.Created}, nil
}

// UpdateSale merges the editable fields onto the stored sale. The product
// link set at creation is kept. Unknown ids report Found=false.
func (s *Service) UpdateSale(ctx context.Context, id string, req domain.SaleUpdateRequest) (domain.SaleMutationResponse, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Description = strings.TrimSpace(req.Description)

	s.mu.Lock()
	defer s.mu.Unlock()

	old, ok := s.state.FindSale(id)
	if !ok {
		return domain.SaleMutationResponse{Found: false}, nil
	}

	messages := s.structMessages(req)
	date, messages := dateMessages(req.Date, messages)
	if !req.Amount.IsPositive() {
		messages = append(messages, "amount must be greater than zero")
	}

	quantity := old.Quantity
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if old.ProductID != "" {
		if quantity < 1 {
			messages = append(messages, "quantity must be at least 1")
		} else if item, found := s.state.FindItem(old.ProductID); found {
			// the sale's own consumption is given back before the new one applies
			available := item.Quantity
			if old.Linked() {
				available += old.Quantity
			}
			if quantity > available {
				messages = append(messages, fmt.Sprintf("insufficient stock (available %d)", available))
			}
		}
	} else {
		quantity = 0
	}
	if len(messages) > 0 {
		return domain.SaleMutationResponse{}, s.reject("sale", messages)
	}

	updated := old
	updated.Date = date
	updated.Amount = req.Amount
	updated.Store = req.Store
	updated.Salesperson = req.Salesperson
	updated.Description = req.Description
	updated.Quantity = quantity

	next, effects, ok := s.engine.UpdateSale(s.state, updated)
	if !ok {
		return domain.SaleMutationResponse{Found: false}, nil
	}
	s.commit(ctx, next)
	s.recordEffects("update", effects)

	s.logger.Info().Str("sale_id", id).Msg("sale updated")
	return domain.SaleMutationResponse{Found: true, Sale: &updated, Transactions: effects.Created}, nil
}

func (s *Service) DeleteSale(ctx context.Context, id string) domain.SaleMutationResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, effects, ok := s.engine.DeleteSale(s.state, id)
	if !ok {
		return domain.SaleMutationResponse{Found: false}
	}
	s.commit(ctx, next)
	s.recordEffects("delete", effects)

	s.logger.Info().Str("sale_id", id).Strs("removed", effects.Removed).Msg("sale deleted")
	sale := effects.Sale
	return domain.SaleMutationResponse{Found: true, Sale: &sale}
}

func (s *Service) ListSales(filter domain.SaleFilter) domain.SaleListResponse {
	state, _ := s.Snapshot()
	sales := report.FilterSales(state.Sales, filter)
	return domain.SaleListResponse{Sales: sales, Total: report.SumSales(sales)}
}

func (s *Service) RecordTransaction(ctx context.Context, req domain.TransactionCreateRequest) (domain.Transaction, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Description = strings.TrimSpace(req.Description)

	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.structMessages(req)
	date, messages := dateMessages(req.Date, messages)
	if !req.Amount.IsPositive() {
		messages = append(messages, "amount must be positive")
	}
	if len(messages) > 0 {
		return domain.Transaction{}, s.reject("transaction", messages)
	}

	tx := domain.Transaction{
		ID:          s.newID("tx"),
		Date:        date,
		Amount:      req.Amount,
		Category:    req.Category,
		Description: req.Description,
		Store:       req.Store,
		Kind:        domain.KindManual,
	}

	next := s.state
	next.Transactions = append([]domain.Transaction{tx}, s.state.Transactions...)
	s.commit(ctx, next)
	s.metrics.RecordLedgerEntry(string(tx.Kind))

	s.logger.Info().Str("transaction_id", tx.ID).Str("category", string(tx.Category)).Msg("transaction recorded")
	return tx, nil
}

// DeleteTransaction removes a manual ledger line. Lines owned by a sale are
// refused; they follow their sale.
func (s *Service) DeleteTransaction(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.state.Transactions, func(tx domain.Transaction) bool { return tx.ID == id })
	if idx < 0 {
		return false, nil
	}
	if s.state.Transactions[idx].Kind.Derived() {
		return true, s.reject("transaction", []string{"transactions created by a sale are removed by editing or deleting the sale"})
	}

	next := s.state
	next.Transactions = slices.Delete(slices.Clone(s.state.Transactions), idx, idx+1)
	s.commit(ctx, next)

	s.logger.Info().Str("transaction_id", id).Msg("transaction deleted")
	return true, nil
}

func (s *Service) ListTransactions(filter domain.TransactionFilter) domain.TransactionListResponse {
	state, _ := s.Snapshot()
	return domain.TransactionListResponse{Transactions: report.FilterTransactions(state.Transactions, filter)}
}

func (s *Service) CreateInventoryItem(ctx context.Context, req domain.InventoryItemCreateRequest) (domain.InventoryItem, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.SKU = strings.ToUpper(strings.TrimSpace(req.SKU))
	req.Category = strings.TrimSpace(req.Category)

	s.mu.Lock()
	defer s.mu.Unlock()

	messages := s.structMessages(req)
	if !req.UnitPrice.IsPositive() {
		messages = append(messages, "unit_price must be greater than zero")
	}
	if !req.UnitCost.IsPositive() {
		messages = append(messages, "unit_cost must be greater than zero")
	}
	if len(messages) > 0 {
		return domain.InventoryItem{}, s.reject("inventory", messages)
	}

	item := domain.InventoryItem{
		ID:          s.newID("item"),
		Name:        req.Name,
		SKU:         req.SKU,
		Quantity:    req.Quantity,
		MinQuantity: req.MinQuantity,
		UnitPrice:   req.UnitPrice,
		UnitCost:    req.UnitCost,
		Category:    req.Category,
	}

	ledger := inventory.NewLedger(s.state.Inventory)
	ledger.Add(item)
	next := s.state
	next.Inventory = ledger.Items()
	s.commit(ctx, next)

	s.logger.Info().Str("item_id", item.ID).Str("sku", item.SKU).Msg("inventory item created")
	return item, nil
}

// UpdateInventoryItem applies a partial edit. Quantities are floored at
// zero and money fields at 0.01 instead of being rejected.
func (s *Service) UpdateInventoryItem(ctx context.Context, id string, req domain.InventoryItemUpdateRequest) (domain.InventoryItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := inventory.NewLedger(s.state.Inventory)
	item, ok := ledger.Find(id)
	if !ok {
		return domain.InventoryItem{}, false, nil
	}

	var messages []string
	if req.Name != nil {
		item.Name = strings.TrimSpace(*req.Name)
		if item.Name == "" {
			messages = append(messages, "name is required")
		}
	}
	if req.Category != nil {
		item.Category = strings.TrimSpace(*req.Category)
		if item.Category == "" {
			messages = append(messages, "category is required")
		}
	}
	if len(messages) > 0 {
		return domain.InventoryItem{}, true, s.reject("inventory", messages)
	}

	if req.SKU != nil {
		item.SKU = strings.ToUpper(strings.TrimSpace(*req.SKU))
	}
	if req.Quantity != nil {
		item.Quantity = max(0, *req.Quantity)
	}
	if req.MinQuantity != nil {
		item.MinQuantity = max(0, *req.MinQuantity)
	}
	if req.UnitPrice != nil {
		item.UnitPrice = decimal.Max(minUnitMoney, *req.UnitPrice)
	}
	if req.UnitCost != nil {
		item.UnitCost = decimal.Max(minUnitMoney, *req.UnitCost)
	}

	ledger.Replace(item)
	next := s.state
	next.Inventory = ledger.Items()
	s.commit(ctx, next)

	s.logger.Info().Str("item_id", id).Msg("inventory item updated")
	return item, true, nil
}

// AdjustStock applies a manual restock or consumption.
func (s *Service) AdjustStock(ctx context.Context, id string, delta int) (domain.StockAdjustResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := inventory.NewLedger(s.state.Inventory)
	adj, err := ledger.AdjustQuantity(id, delta)
	if err != nil {
		return domain.StockAdjustResponse{Found: false}, nil
	}

	next := s.state
	next.Inventory = ledger.Items()
	s.commit(ctx, next)
	s.metrics.RecordStockAdjustment("manual", adj.Clamped)

	item, _ := ledger.Find(id)
	s.logger.Info().Str("item_id", id).Int("before", adj.Before).Int("after", adj.After).Bool("clamped", adj.Clamped).Msg("stock adjusted")
	return domain.StockAdjustResponse{Found: true, Item: &item, Clamped: adj.Clamped}, nil
}

// DeleteInventoryItem removes the item only. Sales keep pointing at the id
// and reports show it as a deleted product.
func (s *Service) DeleteInventoryItem(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ledger := inventory.NewLedger(s.state.Inventory)
	if !ledger.Remove(id) {
		return false
	}
	next := s.state
	next.Inventory = ledger.Items()
	s.commit(ctx, next)

	s.logger.Info().Str("item_id", id).Msg("inventory item deleted")
	return true
}

// ListInventory filters by category when one is given. Categories and low
// stock always cover the whole inventory.
func (s *Service) ListInventory(category string) domain.InventoryListResponse {
	state, _ := s.Snapshot()
	category = strings.TrimSpace(category)

	items := make([]domain.InventoryItem, 0, len(state.Inventory))
	for _, item := range state.Inventory {
		if category == "" || item.Category == category {
			items = append(items, item)
		}
	}
	return domain.InventoryListResponse{
		Items:      items,
		Categories: inventory.Categories(state.Inventory),
		LowStock:   inventory.LowStock(state.Inventory),
	}
}
