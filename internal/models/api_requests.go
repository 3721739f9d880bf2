package models

import "time"

// StorePredictionRequest is the body of POST /predictions
type StorePredictionRequest struct {
	FixtureID         FixtureID   `json:"fixtureId" validate:"required"`
	HomeTeam          string      `json:"homeTeam" validate:"required"`
	AwayTeam          string      `json:"awayTeam" validate:"required"`
	League            string      `json:"league" validate:"required"`
	MatchDate         *time.Time  `json:"matchDate" validate:"required"`
	Prediction        *Prediction `json:"prediction" validate:"required"`
	ModelVersion      string      `json:"modelVersion"`
	DataVersion       string      `json:"dataVersion"`
	ClientFingerprint string      `json:"clientFingerprint"`
}

// StorePredictionRequiredFields is reported back when validation fails
var StorePredictionRequiredFields = []string{"fixtureId", "homeTeam", "awayTeam", "league", "matchDate", "prediction"}

type StorePredictionResponse struct {
	PredictionID  string `json:"predictionId"`
	IntegrityHash string `json:"integrityHash"`
}

// VerifyPredictionRequest is the body of PUT /predictions
type VerifyPredictionRequest struct {
	FixtureID    FixtureID     `json:"fixtureId" validate:"required"`
	ActualResult *ActualResult `json:"actualResult" validate:"required"`
	Source       string        `json:"source"`
}

var VerifyPredictionRequiredFields = []string{"fixtureId", "actualResult"}

type VerifyPredictionResponse struct {
	PredictionID string             `json:"predictionId"`
	Accuracy     *AccuracyBreakdown `json:"accuracy"`
}

type DatePredictionsResponse struct {
	Predictions []*PredictionRecord `json:"predictions"`
	Date        string              `json:"date"`
	Count       int                 `json:"count"`
}

// FreshPredictionResponse is returned by the freshness-aware read. It is
// always a 200, with NumericPredictions nil on a cache miss.
type FreshPredictionResponse struct {
	NumericPredictions *Prediction   `json:"numeric_predictions"`
	ReasoningNotes     *string       `json:"reasoning_notes"`
	Meta               FreshnessMeta `json:"meta"`
}

// GenerateRequest is the body of POST /predictions/{fixtureId}/generate
type GenerateRequest struct {
	HomeTeamID int       `json:"homeTeamId" validate:"required"`
	AwayTeamID int       `json:"awayTeamId" validate:"required"`
	HomeTeam   string    `json:"homeTeam" validate:"required"`
	AwayTeam   string    `json:"awayTeam" validate:"required"`
	LeagueID   int       `json:"leagueId" validate:"required"`
	League     string    `json:"league" validate:"required"`
	Season     int       `json:"season" validate:"required"`
	Kickoff    time.Time `json:"kickoff" validate:"required"`
}
