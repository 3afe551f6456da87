package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/auth"
	"github.com/quickcart/apiserver/internal/cart"
	"github.com/quickcart/apiserver/internal/server"
	"github.com/quickcart/apiserver/internal/store/memstore"
	"github.com/quickcart/apiserver/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *auth.TokenService, *memstore.ProductRepository) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tokens, err := auth.NewTokenService("client-secret")
	require.NoError(t, err)

	products := memstore.NewProductRepository(
		types.Product{ID: "p1", Name: "Apples", Price: decimal.RequireFromString("4.99"), Description: "Red", Category: "fruit"},
		types.Product{ID: "p2", Name: "Milk", Price: decimal.RequireFromString("2.00"), Description: "Whole", Category: "dairy"},
	)
	router := server.NewRouter(config.Config{Auth: config.AuthConfig{AllowRoleSignup: true}}, server.Dependencies{
		Repositories: server.Repositories{
			Users:    memstore.NewUserRepository(),
			Products: products,
			Orders:   memstore.NewOrderRepository(),
		},
		Tokens: tokens,
	}, logger)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, tokens, products
}

func TestCheckoutFlow(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	api := New(srv.URL)

	_, err := api.Register(ctx, "Ana", "ana@example.com", "secret1", "")
	require.NoError(t, err)
	login, err := api.Login(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)

	store := cart.NewMemoryStore()
	require.NoError(t, SaveSession(store, login.Token, login.User))

	engine, err := cart.New(store)
	require.NoError(t, err)
	var badge []int
	engine.OnChange(func(lines []cart.Line) {
		count := 0
		for _, l := range lines {
			count += l.Quantity
		}
		badge = append(badge, count)
	})

	apples, err := api.GetProduct(ctx, "p1")
	require.NoError(t, err)
	milk, err := api.GetProduct(ctx, "p2")
	require.NoError(t, err)
	require.NoError(t, engine.Add(apples))
	require.NoError(t, engine.Add(apples))
	require.NoError(t, engine.Add(milk))
	assert.Equal(t, 3, engine.ItemCount())
	assert.True(t, decimal.RequireFromString("11.98").Equal(engine.Total()))

	order, err := Checkout(ctx, api, engine)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("11.98").Equal(order.TotalAmount))
	assert.Len(t, order.Items, 2)
	assert.Equal(t, login.User.ID, order.UserID)
	assert.Equal(t, 0, engine.ItemCount())
	assert.Equal(t, []int{1, 2, 3, 0}, badge)

	orders, err := api.MyOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
}

func TestFailedCheckoutKeepsCart(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	api := New(srv.URL, WithToken("forged"))

	engine, err := cart.New(cart.NewMemoryStore())
	require.NoError(t, err)
	require.NoError(t, engine.Add(types.Product{ID: "p1", Name: "Apples", Price: decimal.RequireFromString("4.99")}))

	_, err = Checkout(ctx, api, engine)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "invalid or expired token", apiErr.Message)
	assert.Equal(t, 1, engine.ItemCount())
}

func TestCheckoutEmptyCart(t *testing.T) {
	engine, err := cart.New(cart.NewMemoryStore())
	require.NoError(t, err)
	_, err = Checkout(context.Background(), New("http://127.0.0.1:0"), engine)
	assert.Error(t, err)
}

func TestServerMessageSurfacesVerbatim(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()
	api := New(srv.URL)

	_, err := api.Register(ctx, "Ana", "ana@example.com", "secret1", "")
	require.NoError(t, err)
	_, err = api.Register(ctx, "Ana", "ANA@example.com", "secret1", "")
	assert.EqualError(t, err, "user already exists")

	_, err = api.MyOrders(ctx)
	assert.EqualError(t, err, "access denied, no token provided")
}

func TestListProductsByCategory(t *testing.T) {
	srv, _, _ := newTestServer(t)
	products, err := New(srv.URL).ListProducts(context.Background(), "dairy")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Milk", products[0].Name)
}

func TestSessionRoundTrip(t *testing.T) {
	store := cart.NewMemoryStore()

	_, err := LoadSession(store)
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	user := types.User{ID: "u1", Name: "Ana", Email: "ana@example.com", Role: types.RoleCustomer}
	require.NoError(t, SaveSession(store, "tok", user))

	session, err := LoadSession(store)
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
	assert.Equal(t, "Ana", session.User.Name)

	require.NoError(t, ClearSession(store))
	_, err = LoadSession(store)
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
