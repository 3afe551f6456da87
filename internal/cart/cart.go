// Package cart keeps the shopper's working set of products and quantities
// on the client side, persisted through a pluggable key-value Store.
package cart

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
)

// Key is the store key the cart is saved under.
const Key = "quickcart_cart"

// Line is one product and its quantity. Quantity is always positive.
type Line struct {
	Product  types.Product `json:"product"`
	Quantity int           `json:"quantity"`
}

// Subtotal returns price multiplied by quantity.
func (l Line) Subtotal() decimal.Decimal {
	return l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Listener observes the cart after every mutation.
type Listener func(lines []Line)

// Engine aggregates cart lines keyed by product id. It is safe for
// concurrent use; listeners run synchronously after the state is saved and
// before the mutating call returns. Listeners see mutations in the order
// they were applied. They may read the cart but must not mutate it.
type Engine struct {
	mu        sync.Mutex
	store     Store
	lines     []Line
	listeners []Listener

	// Each mutation takes a ticket under mu and notifies only once every
	// earlier ticket has been delivered.
	issued    uint64
	delivered uint64
	turn      *sync.Cond
}

// New loads the saved cart from store. Unreadable saved state yields an
// empty cart.
func New(store Store) (*Engine, error) {
	e := &Engine{store: store, turn: sync.NewCond(&sync.Mutex{})}
	if err := e.Reload(); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload replaces the in-memory cart with the stored one, picking up
// changes made by other sessions.
func (e *Engine) Reload() error {
	data, err := e.store.Load(Key)
	if err != nil && !errors.Is(err, ErrNoData) {
		return err
	}

	var lines []Line
	if len(data) > 0 {
		if err := json.Unmarshal(data, &lines); err != nil {
			lines = nil
		}
	}

	e.mu.Lock()
	e.lines = sanitize(lines)
	e.mu.Unlock()
	return nil
}

// OnChange registers a listener and returns a function that removes it.
func (e *Engine) OnChange(listener Listener) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, listener)
	idx := len(e.listeners) - 1
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if idx < len(e.listeners) {
			e.listeners[idx] = nil
		}
	}
}

// Add increments the product's quantity by one, adding a line if needed.
func (e *Engine) Add(product types.Product) error {
	return e.mutate(func(lines []Line) []Line {
		for i := range lines {
			if lines[i].Product.ID == product.ID {
				lines[i].Quantity++
				return lines
			}
		}
		return append(lines, Line{Product: product, Quantity: 1})
	})
}

// SetQuantity sets a line's quantity exactly. Zero or less removes the
// line. Unknown products are ignored.
func (e *Engine) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return e.Remove(productID)
	}
	return e.mutate(func(lines []Line) []Line {
		for i := range lines {
			if lines[i].Product.ID == productID {
				lines[i].Quantity = quantity
			}
		}
		return lines
	})
}

// Remove deletes the product's line if present.
func (e *Engine) Remove(productID string) error {
	return e.mutate(func(lines []Line) []Line {
		out := lines[:0]
		for _, line := range lines {
			if line.Product.ID != productID {
				out = append(out, line)
			}
		}
		return out
	})
}

// Clear empties the cart and deletes its stored state.
func (e *Engine) Clear() error {
	e.mu.Lock()
	if err := e.store.Clear(Key); err != nil {
		e.mu.Unlock()
		return err
	}
	e.lines = nil
	listeners := e.activeListeners()
	e.mu.Unlock()

	notify(listeners, nil)
	return nil
}

// Lines returns a copy of the current cart lines in insertion order.
func (e *Engine) Lines() []Line {
	e.mu.Lock()
	defer e.mu.Unlock()
	return copyLines(e.lines)
}

// Total is the sum of price times quantity over all lines.
func (e *Engine) Total() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return total(e.lines)
}

// ItemCount is the sum of quantities over all lines.
func (e *Engine) ItemCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return itemCount(e.lines)
}

// Snapshot returns the cart as order line items plus their total.
func (e *Engine) Snapshot() ([]types.OrderItem, decimal.Decimal) {
	e.mu.Lock()
	defer e.mu.Unlock()
	items := make([]types.OrderItem, 0, len(e.lines))
	for _, line := range e.lines {
		items = append(items, types.OrderItem{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			Price:     line.Product.Price,
			Quantity:  line.Quantity,
		})
	}
	return items, total(e.lines)
}

func (e *Engine) mutate(fn func([]Line) []Line) error {
	e.mu.Lock()
	next := fn(copyLines(e.lines))
	data, err := json.Marshal(next)
	if err != nil {
		e.mu.Unlock()
		return err
	}
	if err := e.store.Save(Key, data); err != nil {
		e.mu.Unlock()
		return err
	}
	e.lines = next
	listeners := e.activeListeners()
	snapshot := copyLines(next)
	e.issued++
	ticket := e.issued
	e.mu.Unlock()

	e.turn.L.Lock()
	for e.delivered+1 != ticket {
		e.turn.Wait()
	}
	e.turn.L.Unlock()

	defer func() {
		e.turn.L.Lock()
		e.delivered = ticket
		e.turn.L.Unlock()
		e.turn.Broadcast()
	}()
	notify(listeners, snapshot)
	return nil
}

func (e *Engine) activeListeners() []Listener {
	out := make([]Listener, 0, len(e.listeners))
	for _, l := range e.listeners {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func notify(listeners []Listener, lines []Line) {
	for _, l := range listeners {
		l(copyLines(lines))
	}
}

func total(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Subtotal())
	}
	return sum
}

func itemCount(lines []Line) int {
	count := 0
	for _, line := range lines {
		count += line.Quantity
	}
	return count
}

func copyLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	copy(out, lines)
	return out
}

// sanitize merges duplicate product ids and drops non-positive quantities.
func sanitize(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	index := make(map[string]int, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 || line.Product.ID == "" {
			continue
		}
		if i, ok := index[line.Product.ID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.Product.ID] = len(out)
		out = append(out, line)
	}
	return out
}
