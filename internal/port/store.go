package port

import (
	"context"

	"github.com/openretail/pos/internal/core/domain"
)

// UnitOfWork is a transaction-scoped handle over the durable store. All
// calls made through one UnitOfWork commit or roll back together.
type UnitOfWork interface {
	// GetProductForUpdate loads a product with a write lock held until the
	// transaction ends, so the returned stock quantity stays valid for the
	// subsequent DecrementStock.
	GetProductForUpdate(ctx context.Context, productID string) (*domain.Product, error)

	// DecrementStock reduces a product's stock by quantity. It fails with
	// domain.ErrConflict instead of applying against a quantity that no
	// longer covers the decrement.
	DecrementStock(ctx context.Context, productID string, quantity int) error

	// InsertSale persists a sale with all its items.
	InsertSale(ctx context.Context, sale *domain.Sale) error
}

// TxRunner owns the transaction boundary. fn runs against a single unit of
// work; a non-nil return rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

// ProductRepository covers catalog reads and administrative writes that
// commit on their own, outside the checkout transaction.
type ProductRepository interface {
	CreateProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	SearchProducts(ctx context.Context, query string) ([]domain.Product, error)

	// UpdateProduct applies the given fields if the stored version still
	// matches product.Version, and fails with domain.ErrConflict otherwise.
	UpdateProduct(ctx context.Context, product *domain.Product) error

	DeleteProduct(ctx context.Context, productID string) error
}

// SaleRepository reads the append-only sale ledger.
type SaleRepository interface {
	// ListSales returns all sales, most recent first.
	ListSales(ctx context.Context) ([]domain.Sale, error)

	GetSale(ctx context.Context, saleID string) (*domain.Sale, error)
}

// Store is the full durable-store surface consumed by the services.
type Store interface {
	TxRunner
	ProductRepository
	SaleRepository
}
