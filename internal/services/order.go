package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quickcart/apiserver/internal/metrics"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	// PricingSnapshot persists the client's line prices and total as sent.
	PricingSnapshot = "snapshot"

	// PricingCatalog re-prices every line from the live catalog.
	PricingCatalog = "catalog"

	// EventOrderCreated is the type of the event published per order.
	EventOrderCreated = "order.created"
)

// OrderRepository defines persistence operations for orders.
type OrderRepository interface {
	Create(ctx context.Context, order types.Order) (types.Order, error)
	ListByUser(ctx context.Context, userID string) ([]types.Order, error)
}

// ProductLookup resolves catalog products by id.
type ProductLookup interface {
	Get(ctx context.Context, id string) (types.Product, error)
}

// EventPublisher delivers an event payload to a channel. mq.MQ satisfies it.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// OrderEvent is published after an order is persisted.
type OrderEvent struct {
	Type        string          `json:"type"`
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	ItemCount   int             `json:"item_count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	CreatedAt   time.Time       `json:"created_at"`
}

// OrderOptions tunes OrderService behavior.
type OrderOptions struct {
	Pricing       string
	EventsChannel string
}

// OrderService encapsulates order placement and history.
type OrderService struct {
	repo     OrderRepository
	products ProductLookup
	events   EventPublisher
	opts     OrderOptions
	log      logrus.FieldLogger
}

// NewOrderService constructs an OrderService. events may be nil.
func NewOrderService(repo OrderRepository, products ProductLookup, events EventPublisher, opts OrderOptions, log logrus.FieldLogger) *OrderService {
	if opts.Pricing == "" {
		opts.Pricing = PricingSnapshot
	}
	return &OrderService{repo: repo, products: products, events: events, opts: opts, log: log}
}

// Create places an order for userID. userID must come from the verified
// identity.
func (s *OrderService) Create(ctx context.Context, userID string, items []types.OrderItem, total decimal.Decimal) (types.Order, error) {
	if strings.TrimSpace(userID) == "" {
		return types.Order{}, ErrUnauthorized
	}
	if len(items) == 0 {
		return types.Order{}, invalid("order must contain at least one item")
	}
	for _, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return types.Order{}, invalid("item product id is required")
		}
		if item.Quantity <= 0 {
			return types.Order{}, invalid("item quantity must be positive")
		}
	}

	var err error
	switch s.opts.Pricing {
	case PricingCatalog:
		items, total, err = s.priceFromCatalog(ctx, items)
		if err != nil {
			return types.Order{}, err
		}
	default:
		for _, item := range items {
			if item.Price.IsNegative() {
				return types.Order{}, invalid("item price must not be negative")
			}
			if !types.IsWholeCents(item.Price) {
				return types.Order{}, invalid("item price must not have more than 2 decimal places")
			}
		}
	}
	if !total.IsPositive() {
		return types.Order{}, invalid("total amount must be positive")
	}
	if !types.IsWholeCents(total) {
		return types.Order{}, invalid("total amount must not have more than 2 decimal places")
	}

	order, err := s.repo.Create(ctx, types.Order{
		UserID:      userID,
		Items:       items,
		TotalAmount: total,
	})
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Error("create order failed")
		return types.Order{}, fmt.Errorf("create order: %w", err)
	}

	metrics.RecordOrder(order.TotalAmount.InexactFloat64())
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount.String(),
	}).Info("order created")
	s.publishCreated(ctx, order)
	return order, nil
}

// ListForUser returns the user's orders, newest first.
func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]types.Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *OrderService) priceFromCatalog(ctx context.Context, items []types.OrderItem) ([]types.OrderItem, decimal.Decimal, error) {
	priced := make([]types.OrderItem, 0, len(items))
	for _, item := range items {
		product, err := s.products.Get(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, decimal.Zero, invalid(fmt.Sprintf("product %s is not in the catalog", item.ProductID))
			}
			return nil, decimal.Zero, fmt.Errorf("load product: %w", err)
		}
		priced = append(priced, types.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  item.Quantity,
		})
	}
	return priced, types.SumItems(priced), nil
}

func (s *OrderService) publishCreated(ctx context.Context, order types.Order) {
	if s.events == nil || s.opts.EventsChannel == "" {
		return
	}
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	payload, err := json.Marshal(OrderEvent{
		Type:        EventOrderCreated,
		OrderID:     order.ID,
		UserID:      order.UserID,
		ItemCount:   count,
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
	})
	if err != nil {
		s.log.WithError(err).Warn("encode order event failed")
		return
	}
	attrs := map[string]string{
		"type":     EventOrderCreated,
		"order_id": order.ID,
		"user_id":  order.UserID,
	}
	if _, err := s.events.Publish(ctx, s.opts.EventsChannel, payload, attrs); err != nil {
		s.log.WithError(err).WithField("order_id", order.ID).Warn("publish order event failed")
	}
}
