package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the authoritative inventory record for one sellable item.
// StockQty is only ever reduced through the sale path's guarded decrement;
// Version backs optimistic locking on administrative updates.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Code      string          `json:"code"`
	Price     decimal.Decimal `json:"price"`
	StockQty  int             `json:"stock_qty"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
