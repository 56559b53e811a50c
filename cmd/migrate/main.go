package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/config"
	"github.com/careloop/provider-availability/internal/db"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "migrate").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()

	if err := db.Migrate(ctx, pgPool); err != nil {
		logger.Fatal().Err(err).Msg("migration error")
	}

	version, err := db.MigrationVersion(ctx, pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("version lookup error")
	}

	logger.Info().Int64("version", version).Msg("migrations applied")
}
