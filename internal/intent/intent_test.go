package intent

import (
	"testing"
	"time"

	"github.com/hivehq/hive-api/internal/models"
)

func TestClassify(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	daysAgo := func(d int) *time.Time {
		t := now.AddDate(0, 0, -d)
		return &t
	}

	strong := Signals{
		Sessions28d:     2000,
		EngagementRate:  0.8,
		SearchClicks28d: 300,
		PageViews7d:     900,
		PageViews28d:    2000,
	}
	modest := Signals{
		Sessions28d:     800,
		EngagementRate:  0.6,
		SearchClicks28d: 100,
		PageViews7d:     100,
		PageViews28d:    420,
	}

	tests := []struct {
		name    string
		signals Signals
		want    models.IntentLevel
	}{
		{"no activity ever", Signals{}, models.IntentCold},
		{"strong and recent", withActivity(strong, daysAgo(2)), models.IntentHot},
		{"strong but two weeks quiet", withActivity(strong, daysAgo(14)), models.IntentWarm},
		{"modest and recent", withActivity(modest, daysAgo(2)), models.IntentWarm},
		{"weak but recent", withActivity(Signals{Sessions28d: 10}, daysAgo(2)), models.IntentCooling},
		{"two months quiet", withActivity(strong, daysAgo(60)), models.IntentCooling},
		{"half a year quiet", withActivity(strong, daysAgo(180)), models.IntentCold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(now, tt.signals)
			if got.Level != tt.want {
				t.Errorf("expected %s, got %s (score %.1f)", tt.want, got.Level, got.Score)
			}
		})
	}
}

func withActivity(s Signals, at *time.Time) Signals {
	s.LastActivityAt = at
	return s
}

func TestScoreBounds(t *testing.T) {
	if got := Score(Signals{}); got != 0 {
		t.Errorf("empty signals should score 0, got %v", got)
	}

	huge := Signals{
		Sessions28d:     1_000_000,
		EngagementRate:  1,
		SearchClicks28d: 1_000_000,
		PageViews7d:     1_000_000,
		PageViews28d:    100,
	}
	if got := Score(huge); got > 100 {
		t.Errorf("score must cap at 100, got %v", got)
	}
}

func TestScoreMomentum(t *testing.T) {
	flat := Signals{Sessions28d: 100, PageViews7d: 25, PageViews28d: 100}
	rising := Signals{Sessions28d: 100, PageViews7d: 80, PageViews28d: 100}

	if Score(rising) <= Score(flat) {
		t.Errorf("rising traffic should outscore flat: %v vs %v", Score(rising), Score(flat))
	}
}
