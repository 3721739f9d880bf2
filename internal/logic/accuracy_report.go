package logic

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

// AccuracyQuery selects one market's hit rate from the accuracy projection,
// optionally grouped by a dimension
type AccuracyQuery struct {
	Dimension    string    `json:"dimension"` // league, model_version, confidence, source, month
	Market       string    `json:"market"`    // outcome, scoreline, btts, goalLine, cleanSheet
	League       string    `json:"league"`
	ModelVersion string    `json:"model_version"`
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Limit        int       `json:"limit"`
}

// allowedDimensions maps API values to SQL expressions
var allowedDimensions = map[string]string{
	"league":        "league",
	"model_version": "model_version",
	"confidence":    "confidence_level",
	"source":        "source",
	"month":         "toString(toStartOfMonth(match_date))",
}

var marketColumns = map[string]string{
	MarketOutcome:    "outcome_correct",
	MarketScoreline:  "scoreline_correct",
	MarketBTTS:       "btts_correct",
	MarketGoalLine:   "goal_line_correct",
	MarketCleanSheet: "clean_sheet_correct",
}

// BuildAccuracyQuery constructs a parameterised ClickHouse query. Only
// whitelisted identifiers are interpolated; filter values are bound.
func BuildAccuracyQuery(q AccuracyQuery) (string, []interface{}, error) {
	groupBy, ok := allowedDimensions[q.Dimension]
	if !ok && q.Dimension != "" {
		return "", nil, newError(KindValidation, fmt.Sprintf("invalid dimension: %s", q.Dimension), nil)
	}

	market := q.Market
	if market == "" {
		market = MarketOutcome
	}
	col, ok := marketColumns[market]
	if !ok {
		return "", nil, newError(KindValidation, fmt.Sprintf("invalid market: %s", q.Market), nil)
	}

	label := "'all'"
	if groupBy != "" {
		label = groupBy
	}
	query := fmt.Sprintf("SELECT %s AS label, count() AS total, sum(%s) AS correct FROM prediction_accuracy FINAL WHERE 1=1", label, col)
	var args []interface{}

	if q.League != "" {
		query += " AND league = ?"
		args = append(args, q.League)
	}
	if q.ModelVersion != "" {
		query += " AND model_version = ?"
		args = append(args, q.ModelVersion)
	}
	if !q.From.IsZero() {
		query += " AND match_date >= ?"
		args = append(args, q.From)
	}
	if !q.To.IsZero() {
		query += " AND match_date < ?"
		args = append(args, q.To)
	}

	if groupBy != "" {
		query += " GROUP BY label ORDER BY total DESC, label"
	}

	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT %d", limit)

	return query, args, nil
}

// AccuracyReports answers grouped accuracy questions from ClickHouse
type AccuracyReports struct {
	ch     driver.Conn
	logger *zap.SugaredLogger
}

func NewAccuracyReports(ch driver.Conn, logger *zap.Logger) *AccuracyReports {
	return &AccuracyReports{ch: ch, logger: logger.Sugar()}
}

// Breakdown runs q and returns one row per label. An ungrouped query over
// an empty table yields a single row with zero totals.
func (s *AccuracyReports) Breakdown(ctx context.Context, q AccuracyQuery) ([]models.AccuracyBreakdownRow, error) {
	query, args, err := BuildAccuracyQuery(q)
	if err != nil {
		return nil, err
	}

	rows, err := s.ch.Query(ctx, query, args...)
	if err != nil {
		return nil, Internal("query accuracy breakdown", err)
	}
	defer rows.Close()

	out := make([]models.AccuracyBreakdownRow, 0)
	for rows.Next() {
		var (
			label          string
			total, correct uint64
		)
		if err := rows.Scan(&label, &total, &correct); err != nil {
			s.logger.Warnw("Failed to scan accuracy row", "error", err)
			continue
		}
		row := models.AccuracyBreakdownRow{Label: label, Total: int(total), Correct: int(correct)}
		if total > 0 {
			row.Accuracy = math.Round(float64(correct)/float64(total)*1000) / 10
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, Internal("query accuracy breakdown", err)
	}
	return out, nil
}
