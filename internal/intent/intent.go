// Package intent classifies a company's purchase intent from its activity
// signals. The classification is a fixed decision tree over recency windows
// and score bands so results are explainable and stable between runs.
package intent

import (
	"time"

	"github.com/hivehq/hive-api/internal/models"
)

// Recency windows.
const (
	hotWindow     = 7 * 24 * time.Hour
	warmWindow    = 28 * 24 * time.Hour
	coolingWindow = 90 * 24 * time.Hour
)

// Score bands. A company needs both recent activity and a high enough score
// to reach the hotter levels.
const (
	hotScoreFloor  = 70.0
	warmScoreFloor = 40.0
)

// Signals are the inputs to one classification.
type Signals struct {
	LastActivityAt  *time.Time
	Sessions28d     int64
	EngagementRate  float64 // 0..1
	SearchClicks28d int64
	PageViews7d     int64
	PageViews28d    int64
}

// Result is a classification with the score that produced it.
type Result struct {
	Level models.IntentLevel
	Score float64
}

// Classify scores the signals and maps them to an intent level.
func Classify(now time.Time, s Signals) Result {
	score := Score(s)

	if s.LastActivityAt == nil {
		return Result{Level: models.IntentCold, Score: score}
	}

	age := now.Sub(*s.LastActivityAt)
	switch {
	case age <= hotWindow && score >= hotScoreFloor:
		return Result{Level: models.IntentHot, Score: score}
	case age <= warmWindow && score >= warmScoreFloor:
		return Result{Level: models.IntentWarm, Score: score}
	case age <= coolingWindow:
		return Result{Level: models.IntentCooling, Score: score}
	default:
		return Result{Level: models.IntentCold, Score: score}
	}
}

// Score produces a 0..100 score from volume, engagement, and momentum.
func Score(s Signals) float64 {
	score := 0.0

	// Traffic volume, capped so big sites don't saturate the scale.
	score += capped(float64(s.Sessions28d)/50, 30)

	// Engagement quality.
	score += capped(s.EngagementRate*40, 30)

	// Search demand.
	score += capped(float64(s.SearchClicks28d)/10, 20)

	// Momentum: 7-day views running ahead of the 28-day weekly average.
	if s.PageViews28d > 0 {
		weeklyAvg := float64(s.PageViews28d) / 4
		if ratio := float64(s.PageViews7d) / weeklyAvg; ratio > 1 {
			score += capped((ratio-1)*20, 20)
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}

func capped(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}
