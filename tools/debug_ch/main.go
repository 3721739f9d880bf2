package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/ClickHouse/clickhouse-go/v2"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/logic"
)

// Prints an accuracy breakdown straight from the ClickHouse projection
func main() {
	dimension := flag.String("dimension", "league", "league, model_version, confidence, source or month")
	market := flag.String("market", logic.MarketOutcome, "market to score")
	league := flag.String("league", "", "league filter")
	flag.Parse()

	chURL := os.Getenv("CLICKHOUSE_URL")
	if chURL == "" {
		chURL = "clickhouse://localhost:9000/predictions"
	}

	opts, err := clickhouse.ParseDSN(chURL)
	if err != nil {
		log.Fatalf("Failed to parse DSN: %v", err)
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open connection: %v", err)
	}
	defer conn.Close()

	q := logic.AccuracyQuery{Dimension: *dimension, Market: *market, League: *league}
	query, args, err := logic.BuildAccuracyQuery(q)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Query: %s\nArgs:  %v\n\n", query, args)

	rows, err := logic.NewAccuracyReports(conn, zap.NewNop()).Breakdown(context.Background(), q)
	if err != nil {
		log.Fatalf("Query failed: %v", err)
	}
	fmt.Printf("%-30s %8s %8s %8s\n", *dimension, "total", "correct", "pct")
	for _, r := range rows {
		fmt.Printf("%-30s %8d %8d %7.1f%%\n", r.Label, r.Total, r.Correct, r.Accuracy)
	}
}
