package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tailor-service/config"
	"tailor-service/internal/store"
	"tailor-service/internal/util"

	"go.uber.org/zap"
)

func main() {
	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|redo|reset|up-to|down-to")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for up-to and down-to")
	flag.Parse()

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, cfg.Server.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer util.SyncLogger()
	logger := util.GetLogger().With(zap.String("cmd", *cmd))

	if cfg.Database.InMemory() {
		logger.Fatal("Migrations need a PostgreSQL DATABASE_URL")
	}

	var args []string
	switch *cmd {
	case "up-to", "down-to":
		if *version == "" {
			fmt.Fprintf(os.Stderr, "missing -version for %s\n", *cmd)
			os.Exit(1)
		}
		args = append(args, *version)
	}

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := db.Migrate(ctx, *cmd, args...); err != nil {
		logger.Fatal("Migration failed", zap.Error(err))
	}
	logger.Info("Migration finished")
}
