package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"device-geocoder/internal/app"
	"device-geocoder/internal/backfill"
	"device-geocoder/internal/config"
	"device-geocoder/internal/logger"
	"device-geocoder/internal/repository"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "./configs", "Directory containing app.env")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the config")
	dryRun := flag.Bool("dry-run", false, "Match and count without writing coordinates")
	limit := flag.Int("limit", -1, "Maximum number of devices to process (overrides LIMIT)")
	referenceSource := flag.String("reference", "", "Reference CSV/XLSX file, or \"db\" (overrides REFERENCE_SOURCE)")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("file", *envFile).Msg("cannot load env file")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if *limit >= 0 {
		cfg.Limit = *limit
	}
	if *referenceSource != "" {
		cfg.ReferenceSource = *referenceSource
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("cannot connect to db")
	}
	defer closeStore()

	units, err := app.LoadReference(ctx, cfg, store)
	if err != nil {
		log.Fatal().Err(err).Str("source", cfg.ReferenceSource).Msg("cannot load reference units")
	}

	matcher, err := app.NewMatcher(cfg, units)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot build matcher")
	}
	log.Info().
		Int("units", matcher.Index().Len()).
		Int("provinces", len(matcher.Index().Provinces())).
		Str("similarity", cfg.Similarity).
		Msg("reference index built")

	svc, closeService := app.NewService(cfg, matcher)
	defer closeService()

	driver := backfill.NewDriver(store, svc, backfill.Options{
		Threshold:      cfg.MatchThreshold,
		PageSize:       cfg.PageSize,
		BatchSize:      cfg.BatchSize,
		Limit:          cfg.Limit,
		MaxAttempts:    cfg.MaxAttempts,
		InitialBackoff: cfg.RetryBackoff,
		DryRun:         *dryRun,
		Transient:      repository.IsTransient,
	})

	if _, err := driver.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("backfill interrupted")
			return
		}
		log.Fatal().Err(err).Msg("backfill failed")
	}
}
