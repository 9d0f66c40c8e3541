package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openretail/pos/internal/core/domain"
	"github.com/openretail/pos/internal/port"
)

// ProductInput carries the caller-editable fields of a product.
type ProductInput struct {
	Name     string
	Code     string
	Price    decimal.Decimal
	StockQty int
}

func (in ProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return &domain.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	if strings.TrimSpace(in.Code) == "" {
		return &domain.ValidationError{Field: "code", Reason: "must not be empty"}
	}
	if in.Price.IsNegative() {
		return &domain.ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if in.StockQty < 0 {
		return &domain.ValidationError{Field: "stock_qty", Reason: "must not be negative"}
	}
	return nil
}

// ProductService manages the catalog. Administrative writes commit on their
// own and broadcast product.updated to subscribers.
type ProductService struct {
	store     port.Store
	publisher port.EventPublisher
	logger    *zap.Logger
}

func NewProductService(store port.Store, publisher port.EventPublisher, logger *zap.Logger) *ProductService {
	return &ProductService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

func (s *ProductService) Create(ctx context.Context, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Code:      in.Code,
		Price:     in.Price,
		StockQty:  in.StockQty,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateProduct(ctx, product); err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, product)
	return product, nil
}

func (s *ProductService) Get(ctx context.Context, productID string) (*domain.Product, error) {
	return s.store.GetProduct(ctx, productID)
}

func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}

// Search matches the query against product names and codes.
func (s *ProductService) Search(ctx context.Context, query string) ([]domain.Product, error) {
	return s.store.SearchProducts(ctx, query)
}

// Update overwrites the editable fields. It fails with domain.ErrConflict
// if another writer changed the product since it was loaded.
func (s *ProductService) Update(ctx context.Context, productID string, in ProductInput) (*domain.Product, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}

	product.Name = in.Name
	product.Code = in.Code
	product.Price = in.Price
	product.StockQty = in.StockQty
	product.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, err
	}
	product.Version++

	s.publishUpdate(ctx, product)
	return product, nil
}

func (s *ProductService) Delete(ctx context.Context, productID string) error {
	product, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, productID); err != nil {
		return err
	}

	s.publishUpdate(ctx, product)
	return nil
}

func (s *ProductService) publishUpdate(ctx context.Context, product *domain.Product) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewProductUpdatedEvent(product)); err != nil {
		s.logger.Warn("failed to publish product.updated",
			zap.String("product_id", product.ID), zap.Error(err))
	}
}
