package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/types"
)

// OrderRepository handles persistence for orders. Line items are stored as
// a single JSONB document per order.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt = time.Now().UTC()

	itemsJSON, err := json.Marshal(order.Items)
	if err != nil {
		return types.Order{}, err
	}

	const query = `
		INSERT INTO orders (id, user_id, items, total_amount, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		itemsJSON,
		order.TotalAmount,
		order.CreatedAt,
	); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]types.Order, error) {
	const query = `
		SELECT id, user_id, items, total_amount, created_at
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]types.Order, 0)
	for rows.Next() {
		var order types.Order
		var itemsJSON []byte
		if err := rows.Scan(
			&order.ID,
			&order.UserID,
			&itemsJSON,
			&order.TotalAmount,
			&order.CreatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(itemsJSON, &order.Items); err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
