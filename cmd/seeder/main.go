package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/matchcast/predictions-api/internal/models"
)

type fixture struct {
	id         models.FixtureID
	home, away string
	score      string
	outcome    models.OutcomeProbabilities
	result     *models.ActualResult // nil leaves the prediction unverified
}

var fixtures = []fixture{
	{1001, "Arsenal", "Chelsea", "2-1", models.OutcomeProbabilities{Home: 48, Draw: 27, Away: 25}, &models.ActualResult{HomeScore: 2, AwayScore: 1}},
	{1002, "Liverpool", "Everton", "3-0", models.OutcomeProbabilities{Home: 67, Draw: 20, Away: 13}, &models.ActualResult{HomeScore: 1, AwayScore: 1}},
	{1003, "Brighton", "Fulham", "1-1", models.OutcomeProbabilities{Home: 38, Draw: 32, Away: 30}, nil},
	{1004, "Newcastle", "Aston Villa", "2-2", models.OutcomeProbabilities{Home: 41, Draw: 29, Away: 30}, nil},
}

func main() {
	apiURL := flag.String("url", "http://localhost:8080", "API base URL")
	date := flag.String("date", time.Now().UTC().Format("2006-01-02"), "kickoff date (YYYY-MM-DD)")
	flag.Parse()

	apiKey := os.Getenv("API_KEY")
	if apiKey == "" {
		log.Fatal("API_KEY must be set")
	}
	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		log.Fatalf("Invalid date: %v", err)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	for i, f := range fixtures {
		kickoff := day.Add(time.Duration(12+2*i) * time.Hour)
		req := models.StorePredictionRequest{
			FixtureID: f.id,
			HomeTeam:  f.home,
			AwayTeam:  f.away,
			League:    "Premier League",
			MatchDate: &kickoff,
			Prediction: &models.Prediction{
				Outcome:         f.outcome,
				PredictedScore:  f.score,
				BTTS:            &models.BTTSMarket{Yes: 55, No: 45},
				GoalLine:        &models.LineMarket{Line: 2.5, Over: 52, Under: 48},
				ConfidenceLevel: models.ConfidenceMedium,
			},
			ClientFingerprint: "seeder",
		}
		status, body := send(client, http.MethodPost, *apiURL+"/predictions", apiKey, req)
		fmt.Printf("POST fixture %d: %d %s\n", f.id, status, body)

		if f.result == nil || status != http.StatusCreated {
			continue
		}
		verify := models.VerifyPredictionRequest{FixtureID: f.id, ActualResult: f.result, Source: "seeder"}
		status, body = send(client, http.MethodPut, *apiURL+"/predictions", "", verify)
		fmt.Printf("PUT  fixture %d: %d %s\n", f.id, status, body)
	}
}

func send(client *http.Client, method, url, apiKey string, payload interface{}) (int, string) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("Failed to marshal JSON: %v", err)
	}
	req, err := http.NewRequest(method, url, bytes.NewReader(data))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(bytes.TrimSpace(body))
}
