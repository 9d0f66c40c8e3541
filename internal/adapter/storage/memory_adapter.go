package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

// MemoryAdapter implements port.Store in process. Transactions stage their
// writes and apply them only on commit, under one mutex, so concurrent
// checkouts are serialized and a failed one leaves nothing behind.
type MemoryAdapter struct {
	mu        sync.Mutex
	products  map[string]domain.Product
	sales     map[string]domain.Sale
	saleOrder []string
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		products: make(map[string]domain.Product),
		sales:    make(map[string]domain.Sale),
	}
}

func (m *MemoryAdapter) WithinTx(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{
		store:  m,
		staged: make(map[string]domain.Product),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for id, p := range tx.staged {
		m.products[id] = p
	}
	for _, sale := range tx.sales {
		m.sales[sale.ID] = sale
		m.saleOrder = append(m.saleOrder, sale.ID)
	}
	return nil
}

type memoryTx struct {
	store  *MemoryAdapter
	staged map[string]domain.Product
	sales  []domain.Sale
}

func (t *memoryTx) GetProductForUpdate(ctx context.Context, productID string) (*domain.Product, error) {
	p, ok := t.staged[productID]
	if !ok {
		p, ok = t.store.products[productID]
	}
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	return &p, nil
}

func (t *memoryTx) DecrementStock(ctx context.Context, productID string, quantity int) error {
	p, err := t.GetProductForUpdate(ctx, productID)
	if err != nil {
		return err
	}
	if p.StockQty < quantity {
		return domain.ErrConflict
	}
	p.StockQty -= quantity
	p.Version++
	t.staged[productID] = *p
	return nil
}

func (t *memoryTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	t.sales = append(t.sales, copySale(*sale))
	return nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.products {
		if existing.Code == p.Code {
			return domain.ErrCodeInUse
		}
	}
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.products[productID]
	if !ok {
		return nil, &domain.ProductNotFoundError{ProductID: productID}
	}
	return &p, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryAdapter) SearchProducts(ctx context.Context, query string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	q := strings.ToLower(query)
	var products []domain.Product
	for _, p := range m.products {
		if strings.Contains(strings.ToLower(p.Name), q) || strings.Contains(strings.ToLower(p.Code), q) {
			products = append(products, p)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.products[p.ID]
	if !ok {
		return &domain.ProductNotFoundError{ProductID: p.ID}
	}
	if existing.Version != p.Version {
		return domain.ErrConflict
	}
	for _, other := range m.products {
		if other.ID != p.ID && other.Code == p.Code {
			return domain.ErrCodeInUse
		}
	}

	updated := *p
	updated.Version++
	m.products[p.ID] = updated
	return nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[productID]; !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	delete(m.products, productID)
	return nil
}

func (m *MemoryAdapter) ListSales(ctx context.Context) ([]domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sales := make([]domain.Sale, 0, len(m.saleOrder))
	for i := len(m.saleOrder) - 1; i >= 0; i-- {
		sales = append(sales, copySale(m.sales[m.saleOrder[i]]))
	}
	return sales, nil
}

func (m *MemoryAdapter) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sale, ok := m.sales[saleID]
	if !ok {
		return nil, domain.ErrSaleNotFound
	}
	out := copySale(sale)
	return &out, nil
}

func copySale(sale domain.Sale) domain.Sale {
	items := make([]domain.SaleItem, len(sale.Items))
	copy(items, sale.Items)
	sale.Items = items
	return sale
}
