package models

import (
	"encoding/json"
	"testing"
)

func TestFlexUnmarshal_AllStrings(t *testing.T) {
	input := `{"id": "legacy-1", "fixture_id": "1035061", "home_team": "Arsenal", "away_team": "Chelsea", "league": "Premier League", "homeWinProbability": "48.5", "drawProbability": "26", "awayWinProbability": "25.5", "predictedScore": "2-1", "bttsProbability": "61", "over25Probability": "55%", "confidence": "HIGH", "reasoning": "Home side unbeaten in 8"}`

	var p LegacyPrediction
	if err := json.Unmarshal([]byte(input), &p); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}

	if p.FixtureID != 1035061 {
		t.Errorf("FixtureID = %d, want 1035061", p.FixtureID)
	}
	if p.HomeWinProbability != 48.5 {
		t.Errorf("HomeWinProbability = %f, want 48.5", p.HomeWinProbability)
	}
	if p.Over25Probability != 55 {
		t.Errorf("Over25Probability = %f, want 55", p.Over25Probability)
	}
	if p.HomeTeam != "Arsenal" {
		t.Errorf("HomeTeam = %q, want Arsenal", p.HomeTeam)
	}
}

func TestFlexUnmarshal_NativeTypes(t *testing.T) {
	input := `{"fixture_id": 99, "homeWinProbability": 40.1, "drawProbability": 30, "awayWinProbability": 29.9}`

	var p LegacyPrediction
	if err := json.Unmarshal([]byte(input), &p); err != nil {
		t.Fatalf("Failed to unmarshal: %v", err)
	}
	if p.FixtureID != 99 || p.HomeWinProbability != 40.1 {
		t.Errorf("unexpected decode: %+v", p)
	}
}

func TestLegacyToRecord(t *testing.T) {
	p := LegacyPrediction{
		ID:                 "legacy-1",
		FixtureID:          7,
		HomeWinProbability: 50,
		DrawProbability:    30,
		AwayWinProbability: 20,
		PredictedScore:     "1-0",
		BTTSProbability:    40,
		Over25Probability:  35,
		Confidence:         "medium",
		Reasoning:          "tight game",
	}

	rec := p.ToRecord()
	if rec.Prediction.Outcome.Home != 50 || rec.Prediction.Outcome.Away != 20 {
		t.Errorf("outcome not mapped: %+v", rec.Prediction.Outcome)
	}
	if rec.Prediction.BTTS == nil || rec.Prediction.BTTS.No != 60 {
		t.Errorf("btts not mapped: %+v", rec.Prediction.BTTS)
	}
	if rec.Prediction.GoalLine == nil || rec.Prediction.GoalLine.Line != 2.5 || rec.Prediction.GoalLine.Under != 65 {
		t.Errorf("goal line not mapped: %+v", rec.Prediction.GoalLine)
	}
	if rec.Prediction.ConfidenceLevel != ConfidenceMedium {
		t.Errorf("ConfidenceLevel = %q, want %q", rec.Prediction.ConfidenceLevel, ConfidenceMedium)
	}
	if rec.Prediction.ConfidenceReason != "tight game" {
		t.Errorf("ConfidenceReason = %q", rec.Prediction.ConfidenceReason)
	}
}

func TestFixtureIDUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    FixtureID
		wantErr bool
	}{
		{`123`, 123, false},
		{`"456"`, 456, false},
		{`"abc"`, 0, true},
		{`1.5`, 0, true},
	}

	for _, tt := range tests {
		var id FixtureID
		err := json.Unmarshal([]byte(tt.in), &id)
		if (err != nil) != tt.wantErr {
			t.Errorf("Unmarshal(%s) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && id != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, id, tt.want)
		}
	}
}
