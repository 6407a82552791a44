package main

import (
	"flag"
	"log"

	"procurement-service/config"
	"procurement-service/internal/store"
	"procurement-service/internal/util"

	"go.uber.org/zap"
)

const serviceName = "procurement-migrate"

func main() {
	down := flag.Int("down", 0, "roll back this many versions instead of migrating up")
	flag.Parse()

	cfg := config.Load()

	if err := util.InitLogger(serviceName, cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()

	steps := 0
	if *down > 0 {
		steps = -*down
	}

	if err := store.Migrate(cfg.Database.URL, steps); err != nil {
		logger.Fatal("Migration failed", zap.Error(err), zap.Int("steps", steps))
	}
	logger.Info("Migrations applied", zap.Int("steps", steps))
}
