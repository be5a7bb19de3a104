package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tair/pos-ledger/api-gateway/config"
	"github.com/tair/pos-ledger/api-gateway/health"
	"github.com/tair/pos-ledger/pkg/auth"
	"github.com/tair/pos-ledger/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Disable()
	os.Exit(m.Run())
}

type upstream struct {
	*httptest.Server
	hits     atomic.Int32
	lastUser atomic.Value
}

func newUpstream(t *testing.T, name string, status int) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		u.hits.Add(1)
		u.lastUser.Store(r.Header.Get("X-Username") + "/" + r.Header.Get("X-User-Role"))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"success":true,"data":"`+name+`"}`)
	}))
	t.Cleanup(u.Close)
	return u
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func testConfig(authRequired bool, ledger ...string) *config.GatewayConfig {
	return &config.GatewayConfig{
		Services: map[string]config.ServiceConfig{
			"ledger": {Name: "pos-ledger", Instances: ledger, Timeout: 2 * time.Second, HealthCheck: "/health", Retries: 3},
		},
		JWTSecret:          "gateway-secret",
		JWTIssuer:          "pos-ledger",
		AuthRequired:       authRequired,
		CORSOrigins:        "*",
		BreakerMaxFailures: 2,
		BreakerTimeout:     time.Minute,
	}
}

func do(t *testing.T, cfg *config.GatewayConfig, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	app, _ := newApp(cfg)
	return send(t, app, req)
}

func send(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func TestRoundRobin(t *testing.T) {
	a := newUpstream(t, "a", http.StatusOK)
	b := newUpstream(t, "b", http.StatusOK)
	app, _ := newApp(testConfig(false, a.URL, b.URL))

	var seen []interface{}
	for i := 0; i < 4; i++ {
		_, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api/sales/invoice/1", nil))
		seen = append(seen, body["data"])
	}
	assert.Equal(t, []interface{}{"a", "b", "a", "b"}, seen)
}

func TestIdempotentWriteIsRetried(t *testing.T) {
	down := newUpstream(t, "down", http.StatusServiceUnavailable)
	up := newUpstream(t, "up", http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(`{"cashier":"ana"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", "till-3-0042")

	resp, body := do(t, testConfig(false, down.URL, up.URL), req)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "up", body["data"])
	assert.Equal(t, int32(1), down.hits.Load())
}

func TestPlainWriteIsSentOnce(t *testing.T) {
	down := newUpstream(t, "down", http.StatusServiceUnavailable)
	up := newUpstream(t, "up", http.StatusCreated)

	req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(`{"cashier":"ana"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := do(t, testConfig(false, down.URL, up.URL), req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), down.hits.Load())
	assert.Zero(t, up.hits.Load())
}

func TestUnreachableUpstream(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/customers/1/payments", strings.NewReader(`{}`))
	resp, body := do(t, testConfig(false, deadURL(t)), req)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, false, body["success"])
}

func TestCircuitBreakerOpens(t *testing.T) {
	failing := newUpstream(t, "failing", http.StatusInternalServerError)
	app, _ := newApp(testConfig(false, failing.URL))

	for i := 0; i < 2; i++ {
		resp, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/api/reconciliation?product_ids=1", nil))
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	}

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/api/reconciliation?product_ids=1", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Contains(t, body["error"], "temporarily unavailable")
	assert.Equal(t, int32(2), failing.hits.Load())
}

func TestAuthentication(t *testing.T) {
	ledger := newUpstream(t, "ledger", http.StatusOK)
	cfg := testConfig(true, ledger.URL)
	app, _ := newApp(cfg)
	manager := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, time.Hour)

	resp, _ := send(t, app, httptest.NewRequest(http.MethodGet, "/api/products/1/ledger", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/products/1/ledger", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, _ = send(t, app, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, ledger.hits.Load())

	cashier, err := manager.GenerateToken(4, "ana", auth.RoleCashier)
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/api/products/1/ledger", nil)
	req.Header.Set("Authorization", "Bearer "+cashier)
	req.Header.Set("X-User-Role", auth.RoleAdmin)
	resp, _ = send(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ana/cashier", ledger.lastUser.Load())

	// swagger stays public
	resp, _ = send(t, app, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/gateway/stats", nil)
	req.Header.Set("Authorization", "Bearer "+cashier)
	resp, _ = send(t, app, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	admin, err := manager.GenerateToken(1, "root", auth.RoleAdmin)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/gateway/stats", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	resp, body := send(t, app, req)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, "load_balancers")
}

func TestHealthTakesInstanceOutOfRotation(t *testing.T) {
	healthy := newUpstream(t, "healthy", http.StatusOK)
	cfg := testConfig(false, deadURL(t), healthy.URL)
	app, gw := newApp(cfg)

	resp, body := send(t, app, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, health.StatusDegraded, body["status"])

	// the dead instance is skipped without spending a retry on it
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/sales", strings.NewReader(`{}`))
		resp, body = send(t, app, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "healthy", body["data"])
	}
	assert.Equal(t, int32(3), healthy.hits.Load())

	stats := gw.Proxy.LoadBalancers()["ledger"].Stats()
	assert.Len(t, stats["down"], 1)
}

func TestReadinessFailsWithoutInstances(t *testing.T) {
	resp, body := do(t, testConfig(false, deadURL(t)), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, health.StatusUnhealthy, body["status"])
}
