package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"procurement-service/internal/models"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LedgerService derives per-supplier debt, payment and receipt totals from
// the supplier registry, the suppliers embedded in products and the order
// history. The merged view is never written back.
type LedgerService struct {
	store    store.Repository
	cache    Cache
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewLedgerService creates a new ledger service. cache may be nil.
func NewLedgerService(store store.Repository, cache Cache, cacheTTL time.Duration) *LedgerService {
	if cache == nil {
		cache = noopCache{}
	}
	return &LedgerService{
		store:    store,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

// ListSuppliersWithLedger returns every known supplier with its ledger, sorted by name
func (ls *LedgerService) ListSuppliersWithLedger(ctx context.Context) ([]models.SupplierLedger, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.ListSuppliersWithLedger")
	defer span.End()

	// The generation is read before the scan. An invalidation during the
	// scan moves readers to a newer generation than the one written below.
	gen, err := ls.cache.LedgerGeneration(ctx)
	cacheable := err == nil
	if err != nil {
		ls.logger.Warn("Ledger cache generation read failed", zap.Error(err))
	}

	if cacheable {
		if data, err := ls.cache.GetLedger(ctx, gen); err == nil {
			var ledgers []models.SupplierLedger
			if err := json.Unmarshal(data, &ledgers); err == nil {
				util.LedgerCacheRequests.WithLabelValues("hit").Inc()
				return ledgers, nil
			}
			ls.logger.Warn("Discarding undecodable ledger cache entry", zap.Int64("generation", gen))
		} else if !errors.Is(err, ErrCacheMiss) {
			ls.logger.Warn("Ledger cache read failed", zap.Error(err))
		}
	}
	util.LedgerCacheRequests.WithLabelValues("miss").Inc()

	start := time.Now()
	defer func() {
		util.LedgerReconcileLatency.Observe(time.Since(start).Seconds())
	}()

	registry, products, orders, err := ls.scan(ctx)
	if err != nil {
		return nil, err
	}
	ledgers := reconcile(registry, products, orders)

	if !cacheable {
		return ledgers, nil
	}
	if data, err := json.Marshal(ledgers); err == nil {
		if err := ls.cache.SetLedger(ctx, gen, data, ls.cacheTTL); err != nil {
			ls.logger.Warn("Ledger cache write failed", zap.Error(err))
		}
	}
	return ledgers, nil
}

// GetSupplierLedger returns the ledger of a single supplier
func (ls *LedgerService) GetSupplierLedger(ctx context.Context, name string) (*models.SupplierLedger, error) {
	ledgers, err := ls.ListSuppliersWithLedger(ctx)
	if err != nil {
		return nil, err
	}
	i := sort.Search(len(ledgers), func(i int) bool { return ledgers[i].Name >= name })
	if i == len(ledgers) || ledgers[i].Name != name {
		return nil, fmt.Errorf("%w: %q", ErrSupplierNotFound, name)
	}
	return &ledgers[i], nil
}

// GetSupplierProducts lists the catalog products a supplier offers, with its price
func (ls *LedgerService) GetSupplierProducts(ctx context.Context, name string) ([]models.SupplierProduct, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetSupplierProducts")
	defer span.End()

	products, err := ls.store.GetProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}

	offered := supplierProducts(products, name)
	if len(offered) > 0 {
		return offered, nil
	}

	_, err = ls.store.GetSupplierByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrSupplierNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read supplier registry: %w", err)
	}
	return offered, nil
}

// GetSupplierOrders lists a supplier's delivered orders, newest first,
// filtered by paid flag (unpaid, paid or all)
func (ls *LedgerService) GetSupplierOrders(ctx context.Context, name, filter string) ([]models.Order, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.GetSupplierOrders")
	defer span.End()

	if filter == "" {
		filter = models.SupplierOrdersAll
	}
	switch filter {
	case models.SupplierOrdersAll, models.SupplierOrdersPaid, models.SupplierOrdersUnpaid:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidFilter, filter)
	}

	delivered, err := ls.store.ListOrders(ctx, models.OrderFilter{
		Status:   models.OrderStatusDelivered,
		Supplier: name,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}

	if filter == models.SupplierOrdersAll {
		return delivered, nil
	}
	wantPaid := filter == models.SupplierOrdersPaid
	orders := make([]models.Order, 0, len(delivered))
	for _, o := range delivered {
		if o.IsPaid == wantPaid {
			orders = append(orders, o)
		}
	}
	return orders, nil
}

// SupplierSources reports where each supplier name comes from and which
// delivered orders back its totals
func (ls *LedgerService) SupplierSources(ctx context.Context) (*models.SupplierSources, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.SupplierSources")
	defer span.End()

	registry, products, orders, err := ls.scan(ctx)
	if err != nil {
		return nil, err
	}
	return supplierSources(registry, products, orders), nil
}

// DebugSnapshot projects the whole store: products with their offers,
// orders with per-status counts and both supplier sources
func (ls *LedgerService) DebugSnapshot(ctx context.Context) (*models.DebugSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "LedgerService.DebugSnapshot")
	defer span.End()

	registry, products, orders, err := ls.scan(ctx)
	if err != nil {
		return nil, err
	}
	return debugSnapshot(registry, products, orders), nil
}

// scan reads the three sources independently. Each read is its own snapshot;
// skew between them is tolerated.
func (ls *LedgerService) scan(ctx context.Context) ([]models.Supplier, []models.Product, []models.Order, error) {
	registry, err := ls.store.GetSuppliers(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read supplier registry: %w", err)
	}
	products, err := ls.store.GetProducts(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read products: %w", err)
	}
	orders, err := ls.store.ListOrders(ctx, models.OrderFilter{})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to read orders: %w", err)
	}
	return registry, products, orders, nil
}

type ledgerEntry struct {
	models.SupplierLedger
	derived bool
}

// mergeSuppliers builds the name-keyed supplier view: registry entries first,
// then names only found in product supplier lists.
func mergeSuppliers(registry []models.Supplier, products []models.Product) map[string]*ledgerEntry {
	entries := make(map[string]*ledgerEntry, len(registry))

	for _, sup := range registry {
		if _, ok := entries[sup.Name]; ok {
			continue
		}
		entries[sup.Name] = &ledgerEntry{SupplierLedger: models.SupplierLedger{
			Name:          sup.Name,
			Phone:         sup.Phone,
			Email:         sup.Email,
			TotalDebt:     sup.TotalDebt,
			TotalPaid:     sup.TotalPaid,
			TotalReceived: decimal.Zero,
		}}
	}

	for _, product := range products {
		for _, offer := range product.Suppliers {
			entry, ok := entries[offer.Name]
			if !ok {
				entries[offer.Name] = &ledgerEntry{SupplierLedger: models.SupplierLedger{
					Name:          offer.Name,
					Phone:         offer.Phone,
					TotalDebt:     decimal.Zero,
					TotalPaid:     decimal.Zero,
					TotalReceived: decimal.Zero,
				}}
				continue
			}
			if entry.Phone == "" && offer.Phone != "" {
				entry.Phone = offer.Phone
			}
		}
	}
	return entries
}

// reconcile folds the order history into the merged supplier view.
// Registry totals are kept only for suppliers without any delivered order.
// Orders naming an unknown supplier are ignored.
func reconcile(registry []models.Supplier, products []models.Product, orders []models.Order) []models.SupplierLedger {
	entries := mergeSuppliers(registry, products)

	for _, order := range orders {
		entry, ok := entries[order.Supplier]
		if !ok {
			continue
		}
		entry.AllOrdersCount++
		if order.Status != models.OrderStatusDelivered {
			continue
		}

		if !entry.derived {
			entry.TotalDebt = decimal.Zero
			entry.TotalPaid = decimal.Zero
			entry.derived = true
		}

		entry.TotalReceived = entry.TotalReceived.Add(order.TotalAmount)
		if order.IsPaid {
			entry.TotalPaid = entry.TotalPaid.Add(order.TotalAmount)
			entry.PaidOrdersCount++
		} else {
			entry.TotalDebt = entry.TotalDebt.Add(order.TotalAmount)
			entry.UnpaidOrdersCount++
		}
	}

	ledgers := make([]models.SupplierLedger, 0, len(entries))
	for _, entry := range entries {
		ledgers = append(ledgers, entry.SupplierLedger)
	}
	sort.Slice(ledgers, func(i, j int) bool { return ledgers[i].Name < ledgers[j].Name })
	return ledgers
}

func supplierProducts(products []models.Product, name string) []models.SupplierProduct {
	offered := []models.SupplierProduct{}
	for _, product := range products {
		offer, ok := product.SupplierByName(name)
		if !ok {
			continue
		}
		offered = append(offered, models.SupplierProduct{
			ProductID:    product.ID,
			ProductName:  product.Name,
			CurrentStock: product.CurrentStock,
			PricePerUnit: offer.PricePerUnit,
			Phone:        offer.Phone,
		})
	}
	return offered
}

func supplierSources(registry []models.Supplier, products []models.Product, orders []models.Order) *models.SupplierSources {
	known := mergeSuppliers(registry, products)
	sources := &models.SupplierSources{
		Registry:     registry,
		FromProducts: []models.EmbeddedSupplier{},
		Debts:        []models.SupplierDebtDetail{},
	}

	seen := map[string]int{}
	for _, product := range products {
		for _, offer := range product.Suppliers {
			i, ok := seen[offer.Name]
			if !ok {
				i = len(sources.FromProducts)
				seen[offer.Name] = i
				sources.FromProducts = append(sources.FromProducts, models.EmbeddedSupplier{
					Name:  offer.Name,
					Phone: offer.Phone,
				})
			}
			embedded := &sources.FromProducts[i]
			if embedded.Phone == "" {
				embedded.Phone = offer.Phone
			}
			embedded.Products = append(embedded.Products, models.SupplierProduct{
				ProductID:    product.ID,
				ProductName:  product.Name,
				CurrentStock: product.CurrentStock,
				PricePerUnit: offer.PricePerUnit,
				Phone:        offer.Phone,
			})
		}
	}

	debtIndex := map[string]int{}
	for _, order := range orders {
		if order.Status != models.OrderStatusDelivered || order.IsPaid {
			continue
		}
		i, ok := debtIndex[order.Supplier]
		if !ok {
			i = len(sources.Debts)
			debtIndex[order.Supplier] = i
			_, isKnown := known[order.Supplier]
			sources.Debts = append(sources.Debts, models.SupplierDebtDetail{
				Supplier: order.Supplier,
				Known:    isKnown,
				Total:    decimal.Zero,
			})
		}
		detail := &sources.Debts[i]
		detail.Total = detail.Total.Add(order.TotalAmount)
		detail.OrderIDs = append(detail.OrderIDs, order.ID)
	}
	return sources
}

func debugSnapshot(registry []models.Supplier, products []models.Product, orders []models.Order) *models.DebugSnapshot {
	snap := &models.DebugSnapshot{
		Products: models.DebugProducts{
			Count: len(products),
			All:   make([]models.DebugProduct, 0, len(products)),
		},
		Orders: models.DebugOrders{
			Count: len(orders),
			ByStatus: map[string]int{
				models.OrderStatusPending:   0,
				models.OrderStatusSent:      0,
				models.OrderStatusDelivered: 0,
				models.OrderStatusCancelled: 0,
			},
			Details: make([]models.DebugOrder, 0, len(orders)),
		},
		Suppliers: models.DebugSuppliers{
			Registry: models.DebugRegistry{
				Count: len(registry),
				All:   registry,
			},
			FromProducts: models.DebugNameIndex{Names: []string{}},
		},
	}
	if snap.Suppliers.Registry.All == nil {
		snap.Suppliers.Registry.All = []models.Supplier{}
	}

	seen := map[string]bool{}
	for _, product := range products {
		snap.Products.All = append(snap.Products.All, models.DebugProduct{
			ID:             product.ID,
			Name:           product.Name,
			CurrentStock:   product.CurrentStock,
			OrderQuantity:  product.OrderQuantity,
			SuppliersCount: len(product.Suppliers),
			Suppliers:      product.Suppliers,
		})
		for _, offer := range product.Suppliers {
			if !seen[offer.Name] {
				seen[offer.Name] = true
				snap.Suppliers.FromProducts.Names = append(snap.Suppliers.FromProducts.Names, offer.Name)
			}
		}
	}
	snap.Suppliers.FromProducts.Count = len(snap.Suppliers.FromProducts.Names)

	for _, order := range orders {
		snap.Orders.ByStatus[order.Status]++
		snap.Orders.Details = append(snap.Orders.Details, models.DebugOrder{
			ID:            order.ID,
			Supplier:      order.Supplier,
			TotalAmount:   order.TotalAmount,
			Status:        order.Status,
			IsPaid:        order.IsPaid,
			ProductsCount: len(order.Products),
			Products:      order.Products,
			CreatedAt:     order.CreatedAt,
		})
	}
	return snap
}
