package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/matchcast/predictions-api/internal/logic"
	"github.com/matchcast/predictions-api/internal/models"
)

// Recomputes the integrity hash of a fixture's current prediction
func main() {
	if len(os.Args) < 2 {
		log.Fatalf("usage: %s <fixtureId>", os.Args[0])
	}
	id, err := models.ParseFixtureID(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		log.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)
	defer client.Close()

	store := logic.NewCacheStore(logic.NewRedisKV(client), logic.CacheConfig{}, zap.NewNop())
	lk, err := store.GetLatest(context.Background(), id)
	if err != nil {
		log.Fatalf("Read failed: %v", err)
	}
	if !lk.Found() {
		log.Fatalf("No prediction for fixture %s", id)
	}

	rec := lk.Record
	fmt.Println("Key:     ", lk.Key.String(), "("+lk.Source+")")
	fmt.Println("Stored:  ", rec.IntegrityHash)
	fmt.Println("Computed:", logic.IntegrityHash(rec))
	if !logic.VerifyIntegrity(rec) {
		fmt.Println("MISMATCH")
		os.Exit(1)
	}
	fmt.Println("OK")
}
