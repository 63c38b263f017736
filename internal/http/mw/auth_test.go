package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const testSecret = "test-secret-with-plenty-of-entropy"

func authedRequest(t *testing.T, token string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/companies", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthValidToken(t *testing.T) {
	token, err := IssueToken(testSecret, "user-1", "ada@example.com", "Ada", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	var got *UserClaims
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetUserClaims(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, authedRequest(t, token))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got == nil || got.UserID != "user-1" || got.Email != "ada@example.com" {
		t.Errorf("unexpected claims: %+v", got)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	expired, err := IssueToken(testSecret, "user-1", "", "", -time.Minute)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	wrongKey, err := IssueToken("some-other-secret", "user-1", "", "", time.Hour)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"garbage token", "not-a-jwt"},
		{"expired token", expired},
		{"wrong secret", wrongKey},
	}

	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, authedRequest(t, tt.token))
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestGetUserClaimsEmptyContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if claims := GetUserClaims(req.Context()); claims != nil {
		t.Errorf("expected nil claims, got %+v", claims)
	}
}
