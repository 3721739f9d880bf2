package logic

import (
	"strings"

	"github.com/matchcast/predictions-api/internal/models"
)

const richCoverageReason = "rich data coverage"

// ScoreRichness maps the aggregated context to a 0-100 score and confidence label.
//
//	team season stats  35 both / 20 one / 5 none
//	recent form        25 if both sides have >=5 matches / 15 if >=3 / 5
//	head-to-head       10 if >=3 meetings / 6 if any / 2
//	injury feed        10 if reachable / 2
//	league standings   10 if available / 2
func ScoreRichness(fc *models.AggregatedContext) models.DataRichness {
	if fc == nil {
		fc = &models.AggregatedContext{}
	}

	score := 0
	var shortfalls []string

	switch {
	case fc.HomeStats != nil && fc.AwayStats != nil:
		score += 35
	case fc.HomeStats != nil || fc.AwayStats != nil:
		score += 20
		shortfalls = append(shortfalls, "Limited team stats")
	default:
		score += 5
		shortfalls = append(shortfalls, "Limited team stats")
	}

	form := min(len(fc.HomeForm), len(fc.AwayForm))
	switch {
	case form >= 5:
		score += 25
	case form >= 3:
		score += 15
		shortfalls = append(shortfalls, "Sparse recent form")
	default:
		score += 5
		shortfalls = append(shortfalls, "Sparse recent form")
	}

	switch h2h := len(fc.HeadToHead); {
	case h2h >= 3:
		score += 10
	case h2h > 0:
		score += 6
		shortfalls = append(shortfalls, "Limited head-to-head history")
	default:
		score += 2
		shortfalls = append(shortfalls, "Limited head-to-head history")
	}

	if fc.InjuriesKnown {
		score += 10
	} else {
		score += 2
		shortfalls = append(shortfalls, "Injury feed unavailable")
	}

	if len(fc.Standings) > 0 {
		score += 10
	} else {
		score += 2
		shortfalls = append(shortfalls, "League standings unavailable")
	}

	score = max(0, min(100, score))

	r := models.DataRichness{Score: score, Level: confidenceLabel(score), Reason: richCoverageReason}
	if len(shortfalls) > 0 {
		r.Reason = strings.Join(shortfalls, "; ")
	}
	return r
}

func confidenceLabel(score int) string {
	switch {
	case score >= 70:
		return models.ConfidenceHigh
	case score >= 45:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}
