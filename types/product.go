package types

import "github.com/shopspring/decimal"

// Product represents an entry in the grocery catalog.
type Product struct {
	// ID is the unique identifier of the product.
	ID string `json:"id" db:"id"`

	// Name is the human-readable product name.
	Name string `json:"name" db:"name"`

	// Price is the unit price. It is always strictly positive.
	Price decimal.Decimal `json:"price" db:"price"`

	// Description is a free-form description shown on the product card.
	Description string `json:"description" db:"description"`

	// Image is the object storage key of the product image, or an empty
	// string when the product has no image.
	Image string `json:"image" db:"image"`

	// Category is a free-text grouping label (e.g. "fruits", "dairy").
	Category string `json:"category" db:"category"`
}

// CentPlaces is the finest decimal precision a price or total may carry.
const CentPlaces = 2

// IsWholeCents reports whether d has no fraction finer than a cent.
func IsWholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(CentPlaces))
}
