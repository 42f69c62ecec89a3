package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"crmhooks/internal/pkg/logger"
	"crmhooks/internal/platform/config"
	"crmhooks/internal/platform/database"
)

func main() {
	command := flag.String("cmd", "up", "Migration command: up, down, status, version, redo or reset")
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.Logging)

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer db.Close()

	if err := database.RunMigrations(context.Background(), db, *command, flag.Args()...); err != nil {
		log.Fatal().Err(err).Str("cmd", *command).Msg("migration failed")
	}

	log.Info().Str("cmd", *command).Str("driver", db.Driver).Msg("migration completed")
}
