package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"time"

	"tallyboard/internal/config"
	"tallyboard/internal/repository"
	"tallyboard/internal/service"
	"tallyboard/internal/store"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ContributionsPerUser = 5
	MinAmount            = 1
	MaxAmount            = 25
)

// Sample contributors, with deliberate case/whitespace variants of the same
// identity so the deduplication pass has something to show.
var seedNames = []string{
	"Alice", "Bob", "Chloé", "David", "Emma",
	"alice", " BOB ", "François", "Giulia", "Hugo",
}

func main() {
	log.Println("Starting tallyboard seeder...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	kv, err := initStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	log.Printf("Store backend ready: %s", cfg.Store.Backend)

	entryRepo := repository.NewEntryRepository(kv)
	adminRepo := repository.NewAdminRepository(kv)
	tally := service.NewTallyService(entryRepo, adminRepo, nil, nil)

	ctx := context.Background()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Printf("Seeding %d contributions...", len(seedNames)*ContributionsPerUser)
	for _, name := range seedNames {
		for i := 0; i < ContributionsPerUser; i++ {
			amount := rng.Intn(MaxAmount-MinAmount+1) + MinAmount
			if _, err := tally.AddContribution(ctx, name, amount); err != nil {
				log.Fatalf("Failed to seed contribution for %q: %v", name, err)
			}
		}
	}

	// Collapse the case variants, as the server does at startup
	cleaned, err := tally.Deduplicate(ctx)
	if err != nil {
		log.Fatalf("Failed to deduplicate: %v", err)
	}
	log.Printf("Deduplicated down to %d entries", len(cleaned))

	stats, err := tally.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to compute stats: %v", err)
	}

	log.Println("Seeded leaderboard:")
	for i, row := range stats.Data {
		log.Printf("   %d. %s - %d (%d contributions)", i+1, row.UserName, row.Total, row.Count)
	}
	log.Printf("Grand total: %d", stats.GrandTotal)

	if err := kv.Close(); err != nil {
		log.Printf("Error closing store: %v", err)
	}
	log.Println("Seeder finished!")
}

// initStore builds the configured key-value store
func initStore(cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		log.Println("Note: the memory backend does not persist; seeding it only makes sense in-process")
		return store.NewMemoryStore(), nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, err
		}
		return store.NewRedisStore(client), nil

	case config.BackendPostgres:
		db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return nil, err
		}
		kv := store.NewGormStore(db)
		if err := kv.AutoMigrate(); err != nil {
			return nil, err
		}
		return kv, nil
	}

	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
