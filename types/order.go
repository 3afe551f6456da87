package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// The setting is process-wide; see the package documentation.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// Order is an immutable purchase record created at checkout.
type Order struct {
	// ID is the unique identifier of the order.
	ID string `json:"id" db:"id"`

	// UserID references the user who placed the order. It always comes from
	// the verified identity, never from the request body.
	UserID string `json:"user_id" db:"user_id"`

	// Items is the ordered snapshot of purchased lines.
	Items []OrderItem `json:"items" db:"items"`

	// TotalAmount is the order total at creation time.
	TotalAmount decimal.Decimal `json:"total_amount" db:"total_amount"`

	// CreatedAt is the timestamp at which the order was placed.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// OrderItem is a line item snapshotted at purchase time. Later catalog
// changes do not affect it.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price multiplied by quantity.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// SumItems returns the sum of line subtotals.
func SumItems(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}
