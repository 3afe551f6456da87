package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quickcart/apiserver/config"
	"github.com/quickcart/apiserver/internal/auth"
	"github.com/quickcart/apiserver/internal/store/memstore"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRouter(t *testing.T, cfg config.Config) http.Handler {
	t.Helper()
	logger, _ := test.NewNullLogger()
	tokens, err := auth.NewTokenService("server-secret")
	require.NoError(t, err)

	products := memstore.NewProductRepository()
	return NewRouter(cfg, Dependencies{
		Repositories: Repositories{
			Users:    memstore.NewUserRepository(),
			Products: products,
			Orders:   memstore.NewOrderRepository(),
		},
		Tokens: tokens,
	}, logger)
}

func TestHealthzAndMetrics(t *testing.T) {
	router := testRouter(t, config.Config{CORSOrigins: []string{"*"}})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quickcart_http_requests_total")
}

func TestNewRejectsMissingSecret(t *testing.T) {
	logger, _ := test.NewNullLogger()
	_, err := New(t.Context(), config.Config{Database: config.DatabaseConfig{Driver: config.DriverPostgres}}, logger)
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	router := testRouter(t, config.Config{
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2},
	})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{}`))
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, []int{http.StatusBadRequest, http.StatusBadRequest, http.StatusTooManyRequests}, statuses)

	req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router := testRouter(t, config.Config{CORSOrigins: []string{"https://shop.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/products", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://shop.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownImageIs404(t *testing.T) {
	router := testRouter(t, config.Config{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/products/missing.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
