package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCart rejects a checkout with no lines.
	ErrEmptyCart = errors.New("sale must have at least one item")

	// ErrConflict signals that a concurrent transaction modified stock
	// between validation and commit. Callers may retry the whole checkout.
	ErrConflict = errors.New("concurrent stock modification")

	// ErrStoreUnavailable wraps infrastructure failures (store unreachable,
	// commit timeout) so callers can tell them apart from business errors.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrSaleNotFound is returned when a sale lookup misses.
	ErrSaleNotFound = errors.New("sale not found")

	// ErrCodeInUse rejects a product whose short code is already taken.
	ErrCodeInUse = errors.New("product code already in use")

	// ErrDuplicateRequest rejects a checkout replayed with an
	// idempotency key that was already consumed.
	ErrDuplicateRequest = errors.New("duplicate request")
)

// ProductNotFoundError names the missing product identifier.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InsufficientStockError reports the shortfall for one product.
type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.Name, e.Requested, e.Available)
}

// ValidationError reports a caller-supplied field that is out of bounds.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidCartLineError reports a line whose quantity or price is out of bounds.
type InvalidCartLineError struct {
	ProductID string
	Reason    string
}

func (e *InvalidCartLineError) Error() string {
	return fmt.Sprintf("invalid cart line for product %s: %s", e.ProductID, e.Reason)
}
