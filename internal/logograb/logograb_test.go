package logograb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func servePage(t *testing.T, html string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(html))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestGrabPrefersHeaderLogoImage(t *testing.T) {
	server := servePage(t, `<!DOCTYPE html>
<html><head>
<link rel="icon" href="/favicon.ico">
<meta property="og:image" content="/social-card.png">
</head><body>
<header><img class="site-logo" src="/assets/logo.svg" alt="Acme"></header>
<img src="/assets/product-shot.jpg" alt="product">
</body></html>`)

	grabber := New(nil)
	got, err := grabber.Grab(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("grab failed: %v", err)
	}
	if !strings.HasSuffix(got, "/assets/logo.svg") {
		t.Errorf("expected header logo to win, got %q", got)
	}
}

func TestCandidatesScoredAndSorted(t *testing.T) {
	server := servePage(t, `<!DOCTYPE html>
<html><head>
<link rel="icon" href="/favicon.ico">
<link rel="apple-touch-icon" href="/touch-icon.png">
<meta property="og:image" content="/og-logo.png">
</head><body></body></html>`)

	grabber := New(nil)
	candidates, err := grabber.Candidates(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("candidates failed: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}

	// og:image carries "logo" in its URL, lifting it over apple-touch-icon.
	if candidates[0].Source != "og:image" {
		t.Errorf("expected og:image first, got %q", candidates[0].Source)
	}
	for i := 1; i < len(candidates); i++ {
		if candidates[i].Score > candidates[i-1].Score {
			t.Errorf("candidates not sorted by score: %v", candidates)
		}
	}
}

func TestGrabNoCandidates(t *testing.T) {
	server := servePage(t, `<!DOCTYPE html><html><head></head><body><p>nothing here</p></body></html>`)

	grabber := New(nil)
	_, err := grabber.Grab(context.Background(), server.URL)
	if err != ErrNoLogo {
		t.Fatalf("expected ErrNoLogo, got %v", err)
	}
}

func TestScoreURL(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		base   int
		header bool
		want   int
	}{
		{"plain", "https://x.test/a.png", 40, false, 40},
		{"logo in url", "https://x.test/logo.png", 40, false, 55},
		{"svg logo in header", "https://x.test/logo.svg", 40, true, 75},
		{"sprite penalised", "https://x.test/sprite-logo.png", 40, false, 35},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreURL(tt.url, tt.base, tt.header); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}
