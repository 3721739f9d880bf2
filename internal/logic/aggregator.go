package logic

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/matchcast/predictions-api/internal/models"
)

// FormDepth is how many recent matches are requested per side
const FormDepth = 5

// Aggregator fans out to the upstream feeds for one fixture. A failed call
// is recorded as an upstream partial failure and lowers the richness score;
// it never cancels the other calls or fails the aggregation.
type Aggregator struct {
	feeds  FeedClient
	logger *zap.SugaredLogger
}

func NewAggregator(feeds FeedClient, logger *zap.Logger) *Aggregator {
	return &Aggregator{feeds: feeds, logger: logger.Sugar()}
}

// Aggregate runs the eight upstream calls in parallel and scores the result
func (a *Aggregator) Aggregate(ctx context.Context, f models.Fixture) (*models.AggregatedContext, models.DataRichness) {
	fc := &models.AggregatedContext{}

	var mu sync.Mutex
	injuriesOK := 0
	fail := func(feed string, err error) {
		upstreamFailures.WithLabelValues(feed).Inc()
		perr := newError(KindUpstreamPartialFailure, feed, err)
		a.logger.Warnw("Upstream feed failed", "feed", feed, "fixtureId", f.ID, "error", perr)
		mu.Lock()
		fc.Failures = append(fc.Failures, feed)
		mu.Unlock()
	}

	// Plain group, not WithContext: one failure must not cancel the rest
	var g errgroup.Group
	g.SetLimit(8)

	g.Go(func() error {
		rows, err := a.feeds.LeagueTable(ctx, f.LeagueID, f.Season)
		if err != nil {
			fail("league_table", err)
			return nil
		}
		fc.Standings = rows
		return nil
	})

	g.Go(func() error {
		matches, err := a.feeds.HeadToHead(ctx, f.HomeTeamID, f.AwayTeamID)
		if err != nil {
			fail("head_to_head", err)
			return nil
		}
		fc.HeadToHead = matches
		return nil
	})

	teamStats := func(feed string, teamID int, dst **models.TeamSeasonStats) func() error {
		return func() error {
			stats, err := a.feeds.TeamStats(ctx, teamID, f.LeagueID, f.Season)
			if err != nil {
				fail(feed, err)
				return nil
			}
			*dst = stats
			return nil
		}
	}
	g.Go(teamStats("home_stats", f.HomeTeamID, &fc.HomeStats))
	g.Go(teamStats("away_stats", f.AwayTeamID, &fc.AwayStats))

	injuries := func(feed string, teamID int, dst *[]models.Injury) func() error {
		return func() error {
			list, err := a.feeds.Injuries(ctx, teamID, f.ID)
			if err != nil {
				fail(feed, err)
				return nil
			}
			*dst = list
			mu.Lock()
			injuriesOK++
			mu.Unlock()
			return nil
		}
	}
	g.Go(injuries("home_injuries", f.HomeTeamID, &fc.HomeInjuries))
	g.Go(injuries("away_injuries", f.AwayTeamID, &fc.AwayInjuries))

	form := func(feed string, teamID int, dst *[]models.MatchResult) func() error {
		return func() error {
			matches, err := a.feeds.RecentForm(ctx, teamID, FormDepth)
			if err != nil {
				fail(feed, err)
				return nil
			}
			*dst = matches
			return nil
		}
	}
	g.Go(form("home_form", f.HomeTeamID, &fc.HomeForm))
	g.Go(form("away_form", f.AwayTeamID, &fc.AwayForm))

	_ = g.Wait()

	fc.InjuriesKnown = injuriesOK > 0
	richness := ScoreRichness(fc)
	richnessScore.Observe(float64(richness.Score))

	a.logger.Infow("Aggregated fixture context",
		"fixtureId", f.ID,
		"richness", richness.Score,
		"level", richness.Level,
		"failures", len(fc.Failures),
	)
	return fc, richness
}
