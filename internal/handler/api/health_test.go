package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgcache "PricePulse/pkg/cache"

	"github.com/labstack/echo/v4"
)

type streamStub struct{ connected bool }

func (s *streamStub) IsConnected() bool { return s.connected }

func newHealthServer(h *HealthHandler) *echo.Echo {
	e := echo.New()
	h.RegisterRoutes(e)
	return e
}

func doHealth(t *testing.T, e *echo.Echo, target string) *envelope {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET %s: http status = %d", target, rec.Code)
	}
	env := &envelope{}
	if err := json.Unmarshal(rec.Body.Bytes(), env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func TestHealthRoute(t *testing.T) {
	e := newHealthServer(NewHealthHandler(nil))

	env := doHealth(t, e, "/health")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status  string
		Version string
	}
	decodeData(t, env, &got)
	if got.Status != "ok" || got.Version == "" {
		t.Fatalf("health = %+v", got)
	}
}

func TestReadyRouteNoDependencies(t *testing.T) {
	e := newHealthServer(NewHealthHandler(nil))

	env := doHealth(t, e, "/health/ready")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct{ Status string }
	decodeData(t, env, &got)
	if got.Status != "ready" {
		t.Fatalf("Status = %q, want ready", got.Status)
	}
}

func TestReadyRouteChecksPass(t *testing.T) {
	h := NewHealthHandler(nil)
	h.SetCache(pkgcache.NewMemoryCache())
	h.SetStream(&streamStub{connected: true})
	e := newHealthServer(h)

	env := doHealth(t, e, "/health/ready")
	if env.Status != http.StatusOK {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusOK)
	}

	var got struct {
		Status string
		Checks map[string]string
	}
	decodeData(t, env, &got)
	if got.Status != "ready" {
		t.Fatalf("Status = %q, want ready", got.Status)
	}
	if got.Checks["cache"] != "ok" || got.Checks["orderfeed"] != "ok" {
		t.Fatalf("checks = %v", got.Checks)
	}
}

func TestReadyRouteStreamDown(t *testing.T) {
	h := NewHealthHandler(nil)
	h.SetStream(&streamStub{connected: false})
	e := newHealthServer(h)

	env := doHealth(t, e, "/health/ready")
	if env.Status != http.StatusServiceUnavailable {
		t.Fatalf("envelope status = %d, want %d", env.Status, http.StatusServiceUnavailable)
	}

	var got struct {
		Status string
		Checks map[string]string
	}
	decodeData(t, env, &got)
	if got.Status != "not_ready" {
		t.Fatalf("Status = %q, want not_ready", got.Status)
	}
	if got.Checks["orderfeed"] != "disconnected" {
		t.Fatalf("checks = %v", got.Checks)
	}
}
