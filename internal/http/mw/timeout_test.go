package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTimeoutDefault(t *testing.T) {
	cfg := TimeoutConfig{
		Default:  20 * time.Millisecond,
		Extended: time.Second,
	}

	handler := Timeout(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
			t.Error("request context never cancelled")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil))

	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", rec.Code)
	}
}

func TestTimeoutExtendedPattern(t *testing.T) {
	cfg := TimeoutConfig{
		Default:          10 * time.Millisecond,
		Extended:         time.Second,
		ExtendedPatterns: []string{"/runs"},
	}

	handler := Timeout(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Longer than the default timeout, well within the extended one.
		time.Sleep(50 * time.Millisecond)
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/companies/rec1/runs", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestTimeoutSkipPattern(t *testing.T) {
	cfg := TimeoutConfig{
		Default:      10 * time.Millisecond,
		SkipPatterns: []string{"/webhooks"},
	}

	handler := Timeout(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Context().Deadline(); ok {
			t.Error("skip pattern should not get a deadline")
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/stripe", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestTimeoutPropagatesPanic(t *testing.T) {
	cfg := TimeoutConfig{Default: time.Second, Extended: time.Second}

	handler := Timeout(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	defer func() {
		if recover() == nil {
			t.Error("expected panic to propagate")
		}
	}()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
}
