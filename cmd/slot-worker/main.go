package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/careloop/provider-availability/internal/config"
	"github.com/careloop/provider-availability/internal/db"
	redisclient "github.com/careloop/provider-availability/internal/redis"
	"github.com/careloop/provider-availability/internal/schedule"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zerolog.New(os.Stderr).Fatal().Err(err).Msg("config load error")
	}

	logger := zerolog.New(os.Stderr).With().Timestamp().Str("service", "slot-worker").Logger()
	logger.Info().Str("env", cfg.Env).Dur("interval", cfg.WorkerInterval).Msg("slot-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	svc := schedule.NewService(
		schedule.NewPgRepository(pgPool),
		redisclient.NewRedisLocker(rdb, cfg.LockTTL),
		cfg,
	)

	// Run once at startup
	runOnce(rootCtx, logger, svc)

	ticker := time.NewTicker(cfg.WorkerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rootCtx.Done():
			logger.Info().Msg("shutdown signal received, stopping slot worker")
			return
		case <-ticker.C:
			runOnce(rootCtx, logger, svc)
		}
	}
}

// runOnce tops up slot horizons for every active definition, then marks
// reminders on bookings coming up inside the reminder lead window.
func runOnce(ctx context.Context, logger zerolog.Logger, svc *schedule.Service) {
	runCtx, cancel := context.WithTimeout(logger.WithContext(ctx), 60*time.Second)
	defer cancel()

	start := time.Now()

	generated, err := svc.ExtendSlotHorizons(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("horizon run error")
		return
	}

	reminders, err := svc.MarkDueReminders(runCtx)
	if err != nil {
		logger.Error().Err(err).Msg("reminder run error")
		return
	}

	logger.Info().
		Int("slots_generated", generated).
		Int("reminders_marked", reminders).
		Dur("duration", time.Since(start)).
		Msg("worker run complete")
}
