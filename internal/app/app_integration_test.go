//go:build integration

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/auth"
	"github.com/xenking/promo-engine/internal/handler"
	"github.com/xenking/promo-engine/pkg/health"
)

func startContainer(t *testing.T, req testcontainers.ContainerRequest) testcontainers.Container {
	t.Helper()
	ctx := context.Background()

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	return c
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()

	pgc := startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:17",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "promo",
			"POSTGRES_PASSWORD": "promo",
			"POSTGRES_DB":       "promo",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	})
	rdc := startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	})
	pg, err := pgc.PortEndpoint(ctx, "5432/tcp", "")
	require.NoError(t, err)
	rd, err := rdc.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)

	cfg := validConfig()
	cfg.Storage = StoragePostgres
	cfg.DatabaseURL = "postgres://promo:promo@" + pg + "/promo?sslmode=disable"
	cfg.RedisURL = "redis://" + rd + "/0"
	cfg.PromotionCache.TTL = time.Minute
	cfg.RateLimit = RateLimitConfig{Max: 1000, Window: time.Minute}
	require.NoError(t, cfg.Validate())

	tp, mp := tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider()
	healthSvc := health.New()
	repos, err := openStorage(ctx, &cfg, healthSvc)
	require.NoError(t, err)
	t.Cleanup(repos.close)
	rdb, err := openRedis(ctx, cfg.RedisURL, tp, mp)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	require.NoError(t, repos.keys.Upsert(ctx, &auth.APIKeyInfo{
		ID:      "admin",
		KeyHash: auth.HashKey([]byte(cfg.APIKeyPepper), "admin-key"),
		Name:    "admin",
		UserID:  "admin",
		Scopes:  []string{auth.ScopeAdmin},
		Active:  true,
	}))

	svc := newServices(repos, rdb, &cfg, tp, mp)
	srv := httptest.NewServer(newRouter(routerConfig{
		Logger:         zap.NewNop(),
		API:            svc.handler(),
		Health:         healthSvc,
		CORS:           cfg.CORS,
		RateLimit:      cfg.RateLimit,
		TracerProvider: tp,
		MeterProvider:  mp,
	}))
	t.Cleanup(srv.Close)

	call := func(method, path string, body any) (int, map[string]any) {
		t.Helper()
		var buf bytes.Buffer
		if body != nil {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
		req, err := http.NewRequest(method, srv.URL+path, &buf)
		require.NoError(t, err)
		req.Header.Set(handler.APIKeyHeader, "admin-key")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		var out map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return resp.StatusCode, out
	}

	healthSvc.SetReady(true)
	code, _ := call(http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, code)

	code, p := call(http.MethodPost, "/api/products", map[string]any{
		"name": "Rice", "slug": "rice", "sku": "RICE-5", "price": "450", "weight": 5000,
	})
	require.Equal(t, http.StatusCreated, code, p)

	code, promo := call(http.MethodPost, "/api/promotions", map[string]any{
		"title": "Bulk", "type": "WEIGHTED",
		"slabs": []map[string]any{
			{"minWeight": 0, "maxWeight": 4999, "discountPerUnit": "10"},
			{"minWeight": 5000, "maxWeight": 20000, "discountPerUnit": "40"},
		},
	})
	require.Equal(t, http.StatusCreated, code, promo)

	code, o := call(http.MethodPost, "/api/orders", map[string]any{
		"customerInfo": map[string]any{"name": "Jane", "email": "jane@example.com"},
		"items":        []map[string]any{{"productId": p["id"], "quantity": 2}},
		"promotionId":  promo["id"],
	})
	require.Equal(t, http.StatusCreated, code, o)
	assert.Equal(t, "900.00", o["subtotal"])
	assert.Equal(t, "80.00", o["discount"])
	assert.Equal(t, "820.00", o["total"])

	code, got := call(http.MethodGet, "/api/orders/"+o["id"].(string), nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, o["total"], got["total"])

	code, stats := call(http.MethodGet, "/api/admin/orders/stats", nil)
	require.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, stats["totalOrders"])
	assert.Equal(t, "820.00", stats["totalRevenue"])
}
