package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

const (
	// maxCommitAttempts bounds the validate-and-commit retries when a
	// concurrent checkout wins the race on a shared product.
	maxCommitAttempts = 3

	// commitTimeout bounds the whole transaction so a wedged store fails
	// the call instead of hanging it.
	commitTimeout = 5 * time.Second
)

// SaleService turns a cart into a durable sale: it validates the lines,
// reserves stock and writes the ledger in one transaction, then notifies
// subscribers. It holds no mutable state and is safe for concurrent use.
type SaleService struct {
	store     port.Store
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewSaleService(store port.Store, publisher port.EventPublisher, logger *zap.Logger) *SaleService {
	return &SaleService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateSale processes one checkout. Either every line's stock is deducted
// and the sale is durable, or nothing is observable. Notifications are
// emitted only after the commit and never affect the outcome.
func (s *SaleService) CreateSale(ctx context.Context, lines []domain.CartLine) (*domain.Sale, error) {
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &domain.InvalidCartLineError{ProductID: line.ProductID, Reason: "quantity must be positive"}
		}
		if line.Price.IsNegative() {
			return nil, &domain.InvalidCartLineError{ProductID: line.ProductID, Reason: "price must not be negative"}
		}
	}

	// Lock rows in ascending product order so no two checkouts can
	// deadlock by acquiring them in opposite orders.
	sorted := make([]domain.CartLine, len(lines))
	copy(sorted, lines)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ProductID < sorted[j].ProductID })

	var lastErr error
	for attempt := 1; attempt <= maxCommitAttempts; attempt++ {
		sale, changed, err := s.commitSale(ctx, lines, sorted)
		if err == nil {
			s.notify(ctx, sale, changed)
			return sale, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("stock conflict, retrying checkout", zap.Int("attempt", attempt))
	}
	return nil, lastErr
}

// commitSale runs steps 2-5 of the checkout as one transaction and returns
// the persisted sale plus the products whose stock it changed. Rows are
// locked in the sorted order; the sale's items keep the caller's cart order.
func (s *SaleService) commitSale(ctx context.Context, lines, sorted []domain.CartLine) (*domain.Sale, []domain.Product, error) {
	txCtx, cancel := context.WithTimeout(ctx, commitTimeout)
	defer cancel()

	var (
		sale    *domain.Sale
		changed []domain.Product
	)
	err := s.store.WithinTx(txCtx, func(uow port.UnitOfWork) error {
		changed = changed[:0]
		products := make(map[string]*domain.Product, len(sorted))

		for _, line := range sorted {
			product, ok := products[line.ProductID]
			if !ok {
				var err error
				product, err = uow.GetProductForUpdate(txCtx, line.ProductID)
				if err != nil {
					return err
				}
				products[line.ProductID] = product
			}
			if product.StockQty < line.Quantity {
				return &domain.InsufficientStockError{
					ProductID: product.ID,
					Name:      product.Name,
					Requested: line.Quantity,
					Available: product.StockQty,
				}
			}

			if err := uow.DecrementStock(txCtx, product.ID, line.Quantity); err != nil {
				return err
			}
			product.StockQty -= line.Quantity
			product.Version++
		}

		items := make([]domain.SaleItem, 0, len(lines))
		total := decimal.Zero
		for _, line := range lines {
			product := products[line.ProductID]
			subtotal := line.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
			items = append(items, domain.SaleItem{
				ProductID:   product.ID,
				ProductName: product.Name,
				ProductCode: product.Code,
				Quantity:    line.Quantity,
				Price:       line.Price,
				Subtotal:    subtotal,
			})
			total = total.Add(subtotal)
		}

		// One stock.changed per product, carrying its final quantity.
		seen := make(map[string]bool, len(products))
		for _, line := range sorted {
			if seen[line.ProductID] {
				continue
			}
			seen[line.ProductID] = true
			changed = append(changed, *products[line.ProductID])
		}

		sale = &domain.Sale{
			ID:        uuid.NewString(),
			Items:     items,
			Total:     total,
			CreatedAt: time.Now().UTC(),
		}
		return uow.InsertSale(txCtx, sale)
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil, fmt.Errorf("%w: checkout did not commit within %s", domain.ErrStoreUnavailable, commitTimeout)
		}
		return nil, nil, err
	}
	return sale, changed, nil
}

func (s *SaleService) notify(ctx context.Context, sale *domain.Sale, changed []domain.Product) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewSaleCreatedEvent(sale)); err != nil {
		s.logger.Warn("failed to publish sale.created",
			zap.String("sale_id", sale.ID), zap.Error(err))
	}
	for i := range changed {
		if err := s.publisher.Publish(ctx, domain.NewStockChangedEvent(&changed[i])); err != nil {
			s.logger.Warn("failed to publish stock.changed",
				zap.String("product_id", changed[i].ID), zap.Error(err))
		}
	}
}

// ListSales returns all sales, most recent first.
func (s *SaleService) ListSales(ctx context.Context) ([]domain.Sale, error) {
	return s.store.ListSales(ctx)
}

// GetSale returns one sale with its items, or domain.ErrSaleNotFound.
func (s *SaleService) GetSale(ctx context.Context, saleID string) (*domain.Sale, error) {
	return s.store.GetSale(ctx, saleID)
}
