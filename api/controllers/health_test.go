package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Loxess-crl/carrito-compras/pkg/config"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func healthTestConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test", Port: "8080"}}
}

func TestHealthLiveReportsEnv(t *testing.T) {
	resp := httptest.NewRecorder()
	HealthLive(healthTestConfig()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Carrito-Env"); got != "test" {
		t.Fatalf("expected env header, got %q", got)
	}
}

func TestHealthReadyAllDependenciesUp(t *testing.T) {
	deps := map[string]Pinger{
		"postgres": &stubPinger{},
		"redis":    &stubPinger{},
		"pubsub":   nil,
	}

	resp := httptest.NewRecorder()
	HealthReady(healthTestConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	var payload struct {
		Data struct {
			Status       string            `json:"status"`
			Dependencies map[string]string `json:"dependencies"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Data.Status != "ready" {
		t.Fatalf("expected ready status, got %q", payload.Data.Status)
	}
	if payload.Data.Dependencies["postgres"] != "up" || payload.Data.Dependencies["pubsub"] != "skipped" {
		t.Fatalf("unexpected dependency statuses: %+v", payload.Data.Dependencies)
	}
}

func TestHealthReadyReportsDownDependency(t *testing.T) {
	deps := map[string]Pinger{
		"postgres": &stubPinger{},
		"redis":    &stubPinger{err: errors.New("connection refused")},
	}

	resp := httptest.NewRecorder()
	HealthReady(healthTestConfig(), nil, deps).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}

	var payload struct {
		Error struct {
			Code    string            `json:"code"`
			Details map[string]string `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "DEPENDENCY_ERROR" {
		t.Fatalf("expected dependency code, got %q", payload.Error.Code)
	}
	if payload.Error.Details["redis"] != "down" || payload.Error.Details["postgres"] != "up" {
		t.Fatalf("unexpected probe details: %+v", payload.Error.Details)
	}
}
