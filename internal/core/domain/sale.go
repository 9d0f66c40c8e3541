package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine is one client-supplied purchase intent. It lives only for the
// duration of a checkout request and is never persisted.
type CartLine struct {
	ProductID string
	Quantity  int
	Price     decimal.Decimal
}

// SaleItem captures one cart line at the moment of commit. Name, code and
// price are copied from the product so later catalog changes never alter a
// historical sale.
type SaleItem struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	ProductCode string          `json:"product_code"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// Sale is the immutable record of a completed checkout. Total always equals
// the exact sum of the item subtotals.
type Sale struct {
	ID        string          `json:"id"`
	Items     []SaleItem      `json:"items"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
