package mongostore

import (
	"strings"

	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal strings so no precision is lost in BSON.

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func newProductDoc(p types.Product) productDoc {
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price.String(),
		Description: p.Description,
		Image:       p.Image,
		Category:    p.Category,
	}
}

func (d productDoc) toProduct() (types.Product, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return types.Product{}, err
	}
	return types.Product{
		ID:          d.ID,
		Name:        d.Name,
		Price:       price,
		Description: d.Description,
		Image:       d.Image,
		Category:    d.Category,
	}, nil
}

func newOrderDoc(o types.Order) orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemDoc{
			ProductID: item.ProductID,
			Name:      item.Name,
			Price:     item.Price.String(),
			Quantity:  item.Quantity,
		})
	}
	return orderDoc{
		ID:          o.ID,
		UserID:      o.UserID,
		Items:       items,
		TotalAmount: o.TotalAmount.String(),
		CreatedAt:   o.CreatedAt,
	}
}

func (d orderDoc) toOrder() (types.Order, error) {
	total, err := decimal.NewFromString(d.TotalAmount)
	if err != nil {
		return types.Order{}, err
	}
	items := make([]types.OrderItem, 0, len(d.Items))
	for _, doc := range d.Items {
		price, err := decimal.NewFromString(doc.Price)
		if err != nil {
			return types.Order{}, err
		}
		items = append(items, types.OrderItem{
			ProductID: doc.ProductID,
			Name:      doc.Name,
			Price:     price,
			Quantity:  doc.Quantity,
		})
	}
	return types.Order{
		ID:          d.ID,
		UserID:      d.UserID,
		Items:       items,
		TotalAmount: total,
		CreatedAt:   d.CreatedAt,
	}, nil
}
