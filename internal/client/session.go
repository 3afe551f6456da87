package client

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/quickcart/apiserver/internal/cart"
	"github.com/quickcart/apiserver/types"
)

const (
	TokenKey = "quickcart_token"
	UserKey  = "quickcart_user"
)

// ErrNotLoggedIn is returned when no session is saved.
var ErrNotLoggedIn = errors.New("not logged in")

// Session is the saved login of the local shopper.
type Session struct {
	Token string
	User  types.User
}

// SaveSession persists the token and user summary next to the cart.
func SaveSession(store cart.Store, token string, user types.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := store.Save(TokenKey, []byte(token)); err != nil {
		return err
	}
	return store.Save(UserKey, data)
}

// LoadSession returns the saved session or ErrNotLoggedIn.
func LoadSession(store cart.Store) (Session, error) {
	token, err := store.Load(TokenKey)
	if errors.Is(err, cart.ErrNoData) || (err == nil && len(token) == 0) {
		return Session{}, ErrNotLoggedIn
	}
	if err != nil {
		return Session{}, err
	}

	session := Session{Token: string(token)}
	data, err := store.Load(UserKey)
	if err != nil && !errors.Is(err, cart.ErrNoData) {
		return Session{}, err
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &session.User)
	}
	return session, nil
}

// ClearSession forgets the saved login.
func ClearSession(store cart.Store) error {
	if err := store.Clear(TokenKey); err != nil {
		return err
	}
	return store.Clear(UserKey)
}

// Checkout submits the cart as an order. The cart is cleared only after
// the server confirms the order, so a failed checkout can be retried.
func Checkout(ctx context.Context, c *Client, engine *cart.Engine) (types.Order, error) {
	items, total := engine.Snapshot()
	if len(items) == 0 {
		return types.Order{}, errors.New("cart is empty")
	}
	order, err := c.CreateOrder(ctx, items, total)
	if err != nil {
		return types.Order{}, err
	}
	if err := engine.Clear(); err != nil {
		return order, err
	}
	return order, nil
}
