package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/api/products/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/products/{id}", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/products/def", nil))
	after := testutil.ToFloat64(httpRequests.WithLabelValues(http.MethodGet, "/api/products/{id}", "418"))

	assert.Equal(t, before+2, after)
}

func TestRecordOrder(t *testing.T) {
	before := testutil.ToFloat64(ordersCreated)
	RecordOrder(11.98)
	assert.Equal(t, before+1, testutil.ToFloat64(ordersCreated))
}
