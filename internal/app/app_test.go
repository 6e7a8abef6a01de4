package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/cache"
	"github.com/xenking/promo-engine/internal/domain/order"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/domain/promotion"
	"github.com/xenking/promo-engine/pkg/health"
	"github.com/xenking/promo-engine/pkg/httpmiddleware"
)

func testRouter(t *testing.T, rdb *redis.Client) (http.Handler, *health.Health, *services) {
	t.Helper()
	cfg := validConfig()
	cfg.PromotionCache.TTL = time.Minute

	svc := newServices(newMemoryRepositories(), rdb, &cfg, tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	h := health.New()
	return newRouter(routerConfig{
		Logger:         zap.NewNop(),
		API:            svc.handler(),
		Health:         h,
		CORS:           CORSConfig{Origins: []string{"*"}},
		RateLimit:      RateLimitConfig{Max: 2, Window: time.Minute},
		TracerProvider: tracenoop.NewTracerProvider(),
		MeterProvider:  metricnoop.NewMeterProvider(),
	}), h, svc
}

func serve(h http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(method, path, nil)
	r.RemoteAddr = "192.0.2.1:1234"
	h.ServeHTTP(w, r)
	return w
}

func TestRouterHealth(t *testing.T) {
	router, h, _ := testRouter(t, nil)

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/livez").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(router, http.MethodGet, "/readyz").Code)

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/readyz").Code)

	// Probes are not rate limited.
	for range 5 {
		w := serve(router, http.MethodGet, "/livez")
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
}

func TestRouterAPI(t *testing.T) {
	router, _, _ := testRouter(t, nil)

	w := serve(router, http.MethodGet, "/api/products")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get(httpmiddleware.RequestIDHeader))

	assert.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/api/products").Code)
	w = serve(router, http.MethodGet, "/api/products")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestServicesUseCache(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	_, _, svc := testRouter(t, rdb)
	ctx := context.Background()

	p, err := svc.products.Create(ctx, product.CreateRequest{
		Name: "Rice", Slug: "rice", SKU: "rice-5kg", Price: decimal.NewFromInt(100), WeightGrams: 5000,
	})
	require.NoError(t, err)

	ten := decimal.NewFromInt(10)
	_, err = svc.promotions.Create(ctx, promotion.CreateRequest{
		Title: "Ten off", Kind: promotion.KindPercentage, PercentageValue: &ten,
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.DefaultKey), "create invalidates the snapshot")

	o, err := svc.orders.CreateOrder(ctx, orderRequest(p.ID))
	require.NoError(t, err)
	assert.Equal(t, "10.00", o.Discount.StringFixed(2))
	assert.True(t, mr.Exists(cache.DefaultKey), "order placement fills the snapshot")
}

func orderRequest(productID string) order.CreateRequest {
	return order.CreateRequest{
		UserID:   "user-1",
		Customer: order.Customer{Name: "Jane", Email: "jane@example.com"},
		Items:    []order.Item{{ProductID: productID, Quantity: 1}},
	}
}
