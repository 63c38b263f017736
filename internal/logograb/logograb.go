// Package logograb extracts a company logo URL from its website. Every
// plausible image on the landing page becomes a scored candidate and the
// highest score wins; fixed weights keep the pick deterministic for a given
// page.
package logograb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrNoLogo is returned when the page yields no usable candidate.
var ErrNoLogo = errors.New("no logo candidate found")

// Candidate scoring weights.
const (
	weightLogoImg       = 40 // <img> with "logo" in class/id/alt/src
	weightOGImage       = 25
	weightAppleTouch    = 30
	weightFavicon       = 10
	bonusLogoInURL      = 15
	bonusSVG            = 10
	bonusHeaderPlaced   = 10
	penaltySpriteOrIcon = 20
)

// Candidate is one scored logo candidate.
type Candidate struct {
	URL    string
	Score  int
	Source string // "img", "og:image", "apple-touch-icon", "favicon"
}

// Grabber fetches pages and extracts logo candidates.
type Grabber struct {
	logger    *slog.Logger
	userAgent string
}

// New creates a logo grabber.
func New(logger *slog.Logger) *Grabber {
	if logger == nil {
		logger = slog.Default()
	}
	return &Grabber{
		logger:    logger.With("component", "logograb"),
		userAgent: "Mozilla/5.0 (compatible; HiveBot/1.0)",
	}
}

// Grab fetches the site's landing page and returns the best logo URL.
func (g *Grabber) Grab(ctx context.Context, siteURL string) (string, error) {
	candidates, err := g.Candidates(ctx, siteURL)
	if err != nil {
		return "", err
	}
	if len(candidates) == 0 {
		return "", ErrNoLogo
	}
	return candidates[0].URL, nil
}

// Candidates fetches the landing page and returns every candidate, best
// first.
func (g *Grabber) Candidates(ctx context.Context, siteURL string) ([]Candidate, error) {
	var (
		mu         sync.Mutex
		candidates []Candidate
	)
	add := func(c Candidate) {
		if c.URL == "" {
			return
		}
		mu.Lock()
		candidates = append(candidates, c)
		mu.Unlock()
	}

	c := colly.NewCollector(
		colly.MaxDepth(1),
		colly.UserAgent(g.userAgent),
	)
	c.SetRequestTimeout(15 * time.Second)

	c.OnRequest(func(r *colly.Request) {
		select {
		case <-ctx.Done():
			r.Abort()
		default:
		}
	})

	c.OnHTML("img", func(e *colly.HTMLElement) {
		attrs := strings.ToLower(strings.Join([]string{
			e.Attr("class"), e.Attr("id"), e.Attr("alt"), e.Attr("src"),
		}, " "))
		if !strings.Contains(attrs, "logo") {
			return
		}

		src := e.Request.AbsoluteURL(e.Attr("src"))
		add(Candidate{URL: src, Score: scoreURL(src, weightLogoImg, inHeader(e)), Source: "img"})
	})

	c.OnHTML(`meta[property="og:image"]`, func(e *colly.HTMLElement) {
		src := e.Request.AbsoluteURL(e.Attr("content"))
		add(Candidate{URL: src, Score: scoreURL(src, weightOGImage, false), Source: "og:image"})
	})

	c.OnHTML(`link[rel="apple-touch-icon"], link[rel="apple-touch-icon-precomposed"]`, func(e *colly.HTMLElement) {
		src := e.Request.AbsoluteURL(e.Attr("href"))
		add(Candidate{URL: src, Score: scoreURL(src, weightAppleTouch, false), Source: "apple-touch-icon"})
	})

	c.OnHTML(`link[rel="icon"], link[rel="shortcut icon"]`, func(e *colly.HTMLElement) {
		src := e.Request.AbsoluteURL(e.Attr("href"))
		add(Candidate{URL: src, Score: scoreURL(src, weightFavicon, false), Source: "favicon"})
	})

	if err := c.Visit(siteURL); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", siteURL, err)
	}
	c.Wait()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	g.logger.Debug("logo candidates scored", "site", siteURL, "candidates", len(candidates))
	return candidates, nil
}

// scoreURL applies the URL-derived bonuses and penalties to a base weight.
func scoreURL(u string, base int, headerPlaced bool) int {
	score := base
	lower := strings.ToLower(u)

	if strings.Contains(lower, "logo") {
		score += bonusLogoInURL
	}
	if strings.HasSuffix(lower, ".svg") || strings.Contains(lower, ".svg?") {
		score += bonusSVG
	}
	if headerPlaced {
		score += bonusHeaderPlaced
	}
	if strings.Contains(lower, "sprite") || strings.Contains(lower, "icon-") {
		score -= penaltySpriteOrIcon
	}

	return score
}

// inHeader reports whether the element sits inside a header or nav ancestor.
func inHeader(e *colly.HTMLElement) bool {
	return e.DOM.Closest("header, nav").Length() > 0
}
