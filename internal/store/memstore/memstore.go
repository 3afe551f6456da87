// Package memstore holds in-memory repositories with the same semantics as
// the postgres and mongo stores. It backs unit tests of the upper layers.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/internal/store"
	"github.com/quickcart/apiserver/types"
)

type UserRepository struct {
	mu    sync.Mutex
	users []types.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.ID == id {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range r.users {
		if strings.ToLower(u.Email) == email {
			return u, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	user.CreatedAt = time.Now().UTC()
	r.users = append(r.users, user)
	return user, nil
}

// Count returns the number of stored users.
func (r *UserRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.users)
}

type ProductRepository struct {
	mu       sync.Mutex
	products map[string]types.Product
}

func NewProductRepository(seed ...types.Product) *ProductRepository {
	r := &ProductRepository{products: make(map[string]types.Product)}
	for _, p := range seed {
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		r.products[p.ID] = p
	}
	return r
}

func (r *ProductRepository) List(ctx context.Context, category string) ([]types.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Product, 0, len(r.products))
	for _, p := range r.products {
		if category == "" || p.Category == category {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (types.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product.ID = uuid.NewString()
	r.products[product.ID] = product
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (types.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return types.Product{}, store.ErrNotFound
	}
	delete(r.products, id)
	return p, nil
}

type OrderRepository struct {
	mu     sync.Mutex
	orders []types.Order
	now    func() time.Time
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{now: time.Now}
}

// WithClock overrides the creation timestamp source.
func (r *OrderRepository) WithClock(now func() time.Time) *OrderRepository {
	r.now = now
	return r
}

func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = uuid.NewString()
	order.CreatedAt = r.now().UTC()
	order.Items = append([]types.OrderItem(nil), order.Items...)
	r.orders = append(r.orders, order)
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]types.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Order, 0)
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}
