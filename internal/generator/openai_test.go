package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

func TestParsePrediction(t *testing.T) {
	tests := []struct {
		name    string
		content string
		check   func(t *testing.T, p *models.Prediction)
		wantErr bool
	}{
		{
			name:    "Plain JSON",
			content: `{"outcome":{"home":48,"draw":27,"away":25},"predictedScore":"2-1","btts":{"yes":58,"no":42},"confidenceLevel":"Medium"}`,
			check: func(t *testing.T, p *models.Prediction) {
				if p.Outcome.Home != 48 || p.PredictedScore != "2-1" {
					t.Errorf("prediction = %+v", p)
				}
				if p.BTTS == nil || p.BTTS.Yes != 58 {
					t.Errorf("btts = %+v", p.BTTS)
				}
				if p.ConfidenceLevel != models.ConfidenceMedium {
					t.Errorf("confidence level = %q", p.ConfidenceLevel)
				}
			},
		},
		{
			name:    "Fenced reply",
			content: "```json\n{\"outcome\":{\"home\":40,\"draw\":30,\"away\":30},\"predictedScore\":\"1-1\"}\n```",
			check: func(t *testing.T, p *models.Prediction) {
				if p.PredictedScore != "1-1" {
					t.Errorf("predictedScore = %q", p.PredictedScore)
				}
			},
		},
		{
			name:    "Fractions rescaled to percent",
			content: `{"outcome":{"home":0.5,"draw":0.25,"away":0.25},"predictedScore":"1-0"}`,
			check: func(t *testing.T, p *models.Prediction) {
				want := models.OutcomeProbabilities{Home: 50, Draw: 25, Away: 25}
				if p.Outcome != want {
					t.Errorf("outcome = %+v, want %+v", p.Outcome, want)
				}
			},
		},
		{
			name:    "Unknown confidence label dropped",
			content: `{"outcome":{"home":34,"draw":33,"away":33},"confidenceLevel":"very high"}`,
			check: func(t *testing.T, p *models.Prediction) {
				if p.ConfidenceLevel != "" {
					t.Errorf("confidence level = %q", p.ConfidenceLevel)
				}
			},
		},
		{name: "Not JSON", content: "Arsenal should win.", wantErr: true},
		{name: "Missing outcome", content: `{"predictedScore":"1-0"}`, wantErr: true},
		{name: "Negative probability", content: `{"outcome":{"home":120,"draw":-10,"away":-10}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePrediction(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", p)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrediction failed: %v", err)
			}
			tt.check(t, p)
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	f := models.Fixture{
		ID: 1001, HomeTeam: "Arsenal", AwayTeam: "Chelsea", League: "Premier League", Season: 2026,
		Kickoff: time.Date(2026, 10, 24, 15, 0, 0, 0, time.UTC),
	}
	prompt, err := BuildPrompt(f, &models.AggregatedContext{Failures: []string{"home_injuries"}})
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"Arsenal (home) vs Chelsea (away)", "2026-10-24 15:00 UTC", "Unavailable data: home_injuries"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestOpenAIGenerator_Generate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Model          string `json:"model"`
			ResponseFormat struct {
				Type string `json:"type"`
			} `json:"response_format"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-test" || req.ResponseFormat.Type != "json_object" {
			t.Errorf("request = %+v", req)
		}

		content := `{"outcome":{"home":55,"draw":25,"away":20},"predictedScore":"2-0","xg":{"home":1.9,"away":0.7}}`
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-test",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 100, "completion_tokens": 40, "total_tokens": 140},
		})
	}))
	defer srv.Close()

	gen := NewOpenAIGenerator(Options{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL + "/v1"}, zap.NewNop())
	p, err := gen.Generate(context.Background(), models.Fixture{ID: 1001, HomeTeam: "Arsenal", AwayTeam: "Chelsea"}, nil)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if p.PredictedScore != "2-0" || p.ExpectedGoals == nil || p.ExpectedGoals.Home != 1.9 {
		t.Errorf("prediction = %+v", p)
	}
}
