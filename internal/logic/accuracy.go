package logic

import (
	"math"

	"github.com/matchcast/predictions-api/internal/models"
)

// Outcomes
const (
	OutcomeHome = "home"
	OutcomeDraw = "draw"
	OutcomeAway = "away"
)

// PredictedOutcome is the argmax of the 1X2 probabilities. Ties go
// home before away before draw.
func PredictedOutcome(p models.OutcomeProbabilities) string {
	switch {
	case p.Home >= p.Away && p.Home >= p.Draw:
		return OutcomeHome
	case p.Away >= p.Draw:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// ActualOutcome is the sign of the goal difference
func ActualOutcome(r models.ActualResult) string {
	switch {
	case r.HomeScore > r.AwayScore:
		return OutcomeHome
	case r.HomeScore < r.AwayScore:
		return OutcomeAway
	default:
		return OutcomeDraw
	}
}

// ScoreAccuracy checks a prediction against the real result, market by
// market. Markets the prediction does not carry count as incorrect.
func ScoreAccuracy(p models.Prediction, r models.ActualResult) models.AccuracyBreakdown {
	b := models.AccuracyBreakdown{
		Outcome:   PredictedOutcome(p.Outcome) == ActualOutcome(r),
		Scoreline: p.PredictedScore == r.Scoreline(),
		Markets:   5,
	}

	if p.BTTS != nil {
		bothScored := r.HomeScore > 0 && r.AwayScore > 0
		b.BTTS = (p.BTTS.Yes > p.BTTS.No) == bothScored
	}

	if p.GoalLine != nil {
		total := float64(r.HomeScore + r.AwayScore)
		b.GoalLine = (p.GoalLine.Over > p.GoalLine.Under) == (total > p.GoalLine.Line)
	}

	if p.CleanSheet != nil {
		homeKept := r.AwayScore == 0
		awayKept := r.HomeScore == 0
		b.CleanSheet = (homeKept && p.CleanSheet.Home > 50) || (awayKept && p.CleanSheet.Away > 50)
	}

	for _, ok := range []bool{b.Outcome, b.Scoreline, b.BTTS, b.GoalLine, b.CleanSheet} {
		if ok {
			b.Correct++
		}
	}
	return b
}

// Market names used in AccuracyStats
const (
	MarketOutcome    = "outcome"
	MarketScoreline  = "scoreline"
	MarketBTTS       = "btts"
	MarketGoalLine   = "goalLine"
	MarketCleanSheet = "cleanSheet"
)

// AggregateAccuracy folds accuracy records into per-market hit rates
func AggregateAccuracy(records []models.AccuracyRecord) *models.AccuracyStats {
	stats := &models.AccuracyStats{
		TotalVerified: len(records),
		Markets:       make(map[string]models.MarketStats),
		ByLeague:      make(map[string]models.MarketStats),
		ByConfidence:  make(map[string]models.MarketStats),
	}

	tally := func(m map[string]models.MarketStats, key string, ok bool) {
		s := m[key]
		s.Total++
		if ok {
			s.Correct++
		}
		m[key] = s
	}

	for _, rec := range records {
		a := rec.Accuracy
		tally(stats.Markets, MarketOutcome, a.Outcome)
		tally(stats.Markets, MarketScoreline, a.Scoreline)
		tally(stats.Markets, MarketBTTS, a.BTTS)
		tally(stats.Markets, MarketGoalLine, a.GoalLine)
		tally(stats.Markets, MarketCleanSheet, a.CleanSheet)
		if rec.League != "" {
			tally(stats.ByLeague, rec.League, a.Outcome)
		}
		if rec.Confidence != "" {
			tally(stats.ByConfidence, rec.Confidence, a.Outcome)
		}
	}

	for _, m := range []map[string]models.MarketStats{stats.Markets, stats.ByLeague, stats.ByConfidence} {
		for k, s := range m {
			if s.Total > 0 {
				s.Accuracy = math.Round(float64(s.Correct)/float64(s.Total)*1000) / 10
			}
			m[k] = s
		}
	}
	return stats
}
