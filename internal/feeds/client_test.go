package feeds

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Options{
		BaseURL: srv.URL + "/",
		APIKey:  "test-key",
		HTTP:    HTTPOptions{Timeout: time.Second, RequestsPerSec: 100, MaxRetryTimeout: 3 * time.Second},
	}, zap.NewNop())
}

func TestLeagueTable(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/standings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get(apiKeyHeader); got != "test-key" {
			t.Errorf("api key header = %q", got)
		}
		if r.URL.Query().Get("league") != "39" || r.URL.Query().Get("season") != "2026" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"errors":[],"response":[{"league":{"standings":[[
			{"rank":1,"team":{"id":42,"name":"Arsenal"},"points":19,"form":"WWDWW","all":{"played":8,"goals":{"for":17,"against":5}}},
			{"rank":2,"team":{"id":49,"name":"Chelsea"},"points":17,"form":"WDWWL","all":{"played":8,"goals":{"for":15,"against":8}}}
		]]}}]}`))
	})

	rows, err := client.LeagueTable(context.Background(), 39, 2026)
	if err != nil {
		t.Fatalf("LeagueTable failed: %v", err)
	}
	want := []models.StandingRow{
		{Rank: 1, TeamID: 42, Team: "Arsenal", Played: 8, Points: 19, GoalsFor: 17, GoalsAgainst: 5, Form: "WWDWW"},
		{Rank: 2, TeamID: 49, Team: "Chelsea", Played: 8, Points: 17, GoalsFor: 15, GoalsAgainst: 8, Form: "WDWWL"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestTeamStats_StringAverages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":[],"response":{
			"team":{"id":42,"name":"Arsenal"},
			"fixtures":{"played":{"total":8},"wins":{"total":6},"draws":{"total":1},"loses":{"total":1}},
			"goals":{"for":{"average":{"total":"2.1"}},"against":{"average":{"total":"0.6"}}},
			"clean_sheet":{"total":4},"failed_to_score":{"total":0}
		}}`))
	})

	stats, err := client.TeamStats(context.Background(), 42, 39, 2026)
	if err != nil {
		t.Fatalf("TeamStats failed: %v", err)
	}
	want := &models.TeamSeasonStats{
		TeamID: 42, Played: 8, Wins: 6, Draws: 1, Losses: 1,
		GoalsForAvg: 2.1, GoalsAgainstAvg: 0.6, CleanSheets: 4,
	}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
}

func TestRecentForm_SkipsUnplayed(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("last") != "5" {
			t.Errorf("last = %s", r.URL.Query().Get("last"))
		}
		w.Write([]byte(`{"errors":[],"response":[
			{"fixture":{"id":11,"date":"2026-10-18T14:00:00Z"},"teams":{"home":{"id":42,"name":"Arsenal"},"away":{"id":50,"name":"Fulham"}},"goals":{"home":3,"away":1}},
			{"fixture":{"id":12,"date":"2026-10-30T14:00:00Z"},"teams":{"home":{"id":51,"name":"Everton"},"away":{"id":42,"name":"Arsenal"}},"goals":{"home":null,"away":null}}
		]}`))
	})

	form, err := client.RecentForm(context.Background(), 42, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(form) != 1 || form[0].FixtureID != 11 || form[0].HomeGoals != 3 {
		t.Errorf("form = %+v", form)
	}
}

func TestFeedErrorsEnvelope(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"errors":{"token":"Error/Missing application key"},"response":[]}`))
	})

	if _, err := client.Injuries(context.Background(), 42, 1001); err == nil {
		t.Fatal("expected error from errors envelope")
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"errors":[],"response":[{"player":{"name":"B. Saka","type":"Missing Fixture","reason":"Hamstring"}}]}`))
	})

	injuries, err := client.Injuries(context.Background(), 42, 1001)
	if err != nil {
		t.Fatalf("Injuries failed: %v", err)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
	want := []models.Injury{{Player: "B. Saka", Type: "Missing Fixture", Reason: "Hamstring"}}
	if diff := cmp.Diff(want, injuries); diff != "" {
		t.Errorf("injuries mismatch (-want +got):\n%s", diff)
	}
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := client.HeadToHead(context.Background(), 42, 49)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("err = %v, want 403 StatusError", err)
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("calls = %d, want 1", n)
	}
}

func TestContextCancelStopsRetries(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := client.LeagueTable(ctx, 39, 2026); err == nil {
		t.Fatal("expected error")
	}
	if waited := time.Since(start); waited > time.Second {
		t.Errorf("retries outlived the context: %s", waited)
	}
}
