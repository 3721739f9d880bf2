package models

import (
	"fmt"
	"time"
)

// Confidence labels derived from data richness or supplied by the generator
const (
	ConfidenceHigh   = "High"
	ConfidenceMedium = "Medium"
	ConfidenceLow    = "Low"
)

// OutcomeProbabilities holds 1X2 probabilities in percent
type OutcomeProbabilities struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// LineMarket is an over/under market around a line (goals, corners)
type LineMarket struct {
	Line  float64 `json:"line"`
	Over  float64 `json:"over"`
	Under float64 `json:"under"`
}

// BTTSMarket holds both-teams-to-score probabilities
type BTTSMarket struct {
	Yes float64 `json:"yes"`
	No  float64 `json:"no"`
}

// CleanSheetMarket holds per-side clean sheet probabilities
type CleanSheetMarket struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// ExpectedGoals is the generator's xG estimate per side
type ExpectedGoals struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// Prediction is the structured payload returned by the generator
type Prediction struct {
	Outcome          OutcomeProbabilities `json:"outcome"`
	PredictedScore   string               `json:"predictedScore"`
	GoalLine         *LineMarket          `json:"goalLine,omitempty"`
	BTTS             *BTTSMarket          `json:"btts,omitempty"`
	HalfTimeFullTime map[string]float64   `json:"htft,omitempty"`        // "H/H", "D/A", ...
	ScoreRanges      map[string]float64   `json:"scoreRanges,omitempty"` // "0-1", "2-3", "4+"
	CleanSheet       *CleanSheetMarket    `json:"cleanSheet,omitempty"`
	Corners          *LineMarket          `json:"corners,omitempty"`
	ExpectedGoals    *ExpectedGoals       `json:"xg,omitempty"`
	ConfidenceLevel  string               `json:"confidenceLevel,omitempty"`
	Confidence       *float64             `json:"confidence,omitempty"`
	ConfidenceReason string               `json:"confidenceReason,omitempty"`
}

// ActualResult is the authoritative full-time score
type ActualResult struct {
	HomeScore int `json:"homeScore"`
	AwayScore int `json:"awayScore"`
}

// Scoreline renders the result the way predicted scores are written
func (r ActualResult) Scoreline() string {
	return fmt.Sprintf("%d-%d", r.HomeScore, r.AwayScore)
}

// AccuracyBreakdown holds per-market correctness flags
type AccuracyBreakdown struct {
	Outcome    bool `json:"outcome"`
	Scoreline  bool `json:"scoreline"`
	BTTS       bool `json:"btts"`
	GoalLine   bool `json:"goalLine"`
	CleanSheet bool `json:"cleanSheet"`
	Correct    int  `json:"correct"`
	Markets    int  `json:"markets"`
}

// PredictionRecord is one cached prediction per (fixture, model version, data version)
type PredictionRecord struct {
	ID                string        `json:"id"`
	FixtureID         FixtureID     `json:"fixtureId"`
	HomeTeam          string        `json:"homeTeam"`
	AwayTeam          string        `json:"awayTeam"`
	League            string        `json:"league"`
	MatchDate         time.Time     `json:"matchDate"`
	ModelVersion      string        `json:"modelVersion"`
	DataVersion       string        `json:"dataVersion"`
	Prediction        Prediction    `json:"prediction"`
	DataRichness      *DataRichness `json:"dataRichness,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	IntegrityHash     string        `json:"integrityHash"`
	ClientFingerprint string        `json:"clientFingerprint,omitempty"`

	// Verification state, write-once after Verified flips to true
	Verified           bool               `json:"verified"`
	VerifiedAt         *time.Time         `json:"verifiedAt,omitempty"`
	ActualResult       *ActualResult      `json:"actualResult,omitempty"`
	Accuracy           *AccuracyBreakdown `json:"accuracy,omitempty"`
	VerificationSource string             `json:"verificationSource,omitempty"`
}

// CacheKey identifies a record by fixture and versions
type CacheKey struct {
	FixtureID    FixtureID
	ModelVersion string
	DataVersion  string
}

// String returns the strong key used in the key-value store
func (k CacheKey) String() string {
	return fmt.Sprintf("prediction:%d:%s:%s", k.FixtureID, k.ModelVersion, k.DataVersion)
}

// Key returns the record's strong cache key
func (r *PredictionRecord) Key() CacheKey {
	return CacheKey{FixtureID: r.FixtureID, ModelVersion: r.ModelVersion, DataVersion: r.DataVersion}
}

// DailyIndexEntry links a calendar date to a stored prediction
type DailyIndexEntry struct {
	FixtureID    FixtureID `json:"fixtureId"`
	PredictionID string    `json:"predictionId"`
	HomeTeam     string    `json:"homeTeam"`
	AwayTeam     string    `json:"awayTeam"`
	League       string    `json:"league"`
	ModelVersion string    `json:"modelVersion"`
	DataVersion  string    `json:"dataVersion"`
}

// AccuracyRecord is an append-only projection of a verified prediction
type AccuracyRecord struct {
	PredictionID   string            `json:"predictionId"`
	FixtureID      FixtureID         `json:"fixtureId"`
	HomeTeam       string            `json:"homeTeam"`
	AwayTeam       string            `json:"awayTeam"`
	League         string            `json:"league"`
	MatchDate      time.Time         `json:"matchDate"`
	ModelVersion   string            `json:"modelVersion"`
	PredictedScore string            `json:"predictedScore"`
	ActualScore    string            `json:"actualScore"`
	Confidence     string            `json:"confidenceLevel,omitempty"`
	Accuracy       AccuracyBreakdown `json:"accuracy"`
	Source         string            `json:"source"`
	VerifiedAt     time.Time         `json:"verifiedAt"`
}

// MarketStats is the hit rate for one market
type MarketStats struct {
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	Accuracy float64 `json:"accuracy"`
}

// AccuracyStats aggregates the accuracy projection
type AccuracyStats struct {
	TotalVerified int                    `json:"totalVerified"`
	Markets       map[string]MarketStats `json:"markets"`
	ByLeague      map[string]MarketStats `json:"byLeague"` // outcome accuracy per league
	ByConfidence  map[string]MarketStats `json:"byConfidence"`
}

// FreshnessMeta describes the cached entry served by a freshness-aware read
type FreshnessMeta struct {
	CacheKey     string     `json:"cache_key"`
	ModelVersion string     `json:"model_version"`
	DataVersion  string     `json:"data_version"`
	LastUpdated  *time.Time `json:"last_updated"`
	Stale        bool       `json:"stale"`
	Source       string     `json:"source"`
	LeagueID     string     `json:"league_id,omitempty"`
	Season       string     `json:"season,omitempty"`
}

// AccuracyBreakdownRow is one group of an analytics breakdown
type AccuracyBreakdownRow struct {
	Label    string  `json:"label"`
	Total    int     `json:"total"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}
