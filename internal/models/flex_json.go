package models

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LegacyPrediction is the record shape written before cache keys carried
// model and data versions. It lives under prediction:{fixtureId} only.
type LegacyPrediction struct {
	ID                 string    `json:"id"`
	FixtureID          FixtureID `json:"fixture_id"`
	HomeTeam           string    `json:"home_team"`
	AwayTeam           string    `json:"away_team"`
	League             string    `json:"league"`
	MatchDate          time.Time `json:"match_date"`
	CreatedAt          time.Time `json:"created_at"`
	IntegrityHash      string    `json:"integrity_hash"`
	HomeWinProbability float64   `json:"homeWinProbability"`
	DrawProbability    float64   `json:"drawProbability"`
	AwayWinProbability float64   `json:"awayWinProbability"`
	PredictedScore     string    `json:"predictedScore"`
	BTTSProbability    float64   `json:"bttsProbability"`
	Over25Probability  float64   `json:"over25Probability"`
	Confidence         string    `json:"confidence"`
	Reasoning          string    `json:"reasoning"`
	Verified           bool      `json:"verified"`
}

// legacyFieldMap caches JSON tag -> struct field index mappings
var (
	legacyFieldMap     map[string]int
	legacyFieldMapOnce sync.Once
)

func getLegacyFieldMap() map[string]int {
	legacyFieldMapOnce.Do(func() {
		t := reflect.TypeOf(LegacyPrediction{})
		legacyFieldMap = make(map[string]int, t.NumField())
		for i := 0; i < t.NumField(); i++ {
			tag := t.Field(i).Tag.Get("json")
			if tag == "" || tag == "-" {
				continue
			}
			name := strings.Split(tag, ",")[0]
			legacyFieldMap[name] = i
		}
	})
	return legacyFieldMap
}

// UnmarshalJSON accepts both native and string-encoded values. The first
// generation of the dashboard stored every probability as a quoted string.
func (p *LegacyPrediction) UnmarshalJSON(data []byte) error {
	// Alias prevents infinite recursion
	type Alias LegacyPrediction
	a := (*Alias)(p)

	if err := json.Unmarshal(data, a); err == nil {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("legacy prediction: %w", err)
	}

	fieldMap := getLegacyFieldMap()
	v := reflect.ValueOf(a).Elem()

	for key, rawVal := range raw {
		idx, ok := fieldMap[key]
		if !ok {
			continue
		}

		fv := v.Field(idx)
		if !fv.CanSet() {
			continue
		}

		ptr := reflect.New(fv.Type())
		if err := json.Unmarshal(rawVal, ptr.Interface()); err == nil {
			fv.Set(ptr.Elem())
			continue
		}

		// Value is a JSON string but target is numeric/bool
		if len(rawVal) > 1 && rawVal[0] == '"' {
			var s string
			if err := json.Unmarshal(rawVal, &s); err != nil {
				continue
			}
			if s == "" {
				continue
			}
			coerceStringToField(fv, s)
		}
	}

	return nil
}

// coerceStringToField converts a string value to the field's native type.
func coerceStringToField(fv reflect.Value, s string) {
	switch fv.Kind() {
	case reflect.Float32, reflect.Float64:
		if n, err := strconv.ParseFloat(strings.TrimSuffix(s, "%"), 64); err == nil {
			fv.SetFloat(n)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			fv.SetInt(int64(n))
		}
	case reflect.Bool:
		if b, err := strconv.ParseBool(s); err == nil {
			fv.SetBool(b)
		}
	case reflect.String:
		fv.SetString(s)
	}
}

// ToRecord translates the legacy shape into the current record layout.
// Versions are left to the caller since the legacy key carried none.
func (p *LegacyPrediction) ToRecord() *PredictionRecord {
	pred := Prediction{
		Outcome: OutcomeProbabilities{
			Home: p.HomeWinProbability,
			Draw: p.DrawProbability,
			Away: p.AwayWinProbability,
		},
		PredictedScore:   p.PredictedScore,
		ConfidenceLevel:  normalizeConfidence(p.Confidence),
		ConfidenceReason: p.Reasoning,
	}
	if p.BTTSProbability > 0 {
		pred.BTTS = &BTTSMarket{Yes: p.BTTSProbability, No: 100 - p.BTTSProbability}
	}
	if p.Over25Probability > 0 {
		pred.GoalLine = &LineMarket{Line: 2.5, Over: p.Over25Probability, Under: 100 - p.Over25Probability}
	}

	return &PredictionRecord{
		ID:            p.ID,
		FixtureID:     p.FixtureID,
		HomeTeam:      p.HomeTeam,
		AwayTeam:      p.AwayTeam,
		League:        p.League,
		MatchDate:     p.MatchDate,
		Prediction:    pred,
		CreatedAt:     p.CreatedAt,
		IntegrityHash: p.IntegrityHash,
		Verified:      p.Verified,
	}
}

func normalizeConfidence(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	}
	return ""
}
