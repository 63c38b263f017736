package shutdown

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestDisabledMonitorPassesThrough(t *testing.T) {
	m := NewIdleMonitor(Config{Timeout: 0, Logger: slog.Default()})
	m.Start()
	defer m.Stop()

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	if wrapped := m.Middleware(next); wrapped == nil {
		t.Fatal("middleware should never be nil")
	}

	select {
	case <-m.ShutdownChan():
		t.Error("disabled monitor must not signal shutdown")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMiddlewareTracksActivity(t *testing.T) {
	m := NewIdleMonitor(Config{
		Timeout:      time.Hour,
		Logger:       slog.Default(),
		ExcludePaths: []string{"/healthz"},
	})

	before := m.lastActivity
	time.Sleep(5 * time.Millisecond)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt64(&m.activeRequests) != 1 {
			t.Errorf("expected 1 active request, got %d", atomic.LoadInt64(&m.activeRequests))
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil))

	if atomic.LoadInt64(&m.activeRequests) != 0 {
		t.Errorf("active requests should return to 0, got %d", atomic.LoadInt64(&m.activeRequests))
	}
	m.mu.RLock()
	moved := m.lastActivity.After(before)
	m.mu.RUnlock()
	if !moved {
		t.Error("request should update last activity")
	}
}

func TestMiddlewareSkipsExcludedPaths(t *testing.T) {
	m := NewIdleMonitor(Config{
		Timeout:      time.Hour,
		Logger:       slog.Default(),
		ExcludePaths: []string{"/healthz"},
	})

	m.mu.RLock()
	before := m.lastActivity
	m.mu.RUnlock()
	time.Sleep(5 * time.Millisecond)

	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	m.mu.RLock()
	moved := m.lastActivity.After(before)
	m.mu.RUnlock()
	if moved {
		t.Error("health probes must not count as activity")
	}
}
