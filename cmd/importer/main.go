package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"device-geocoder/internal/app"
	"device-geocoder/internal/config"
	"device-geocoder/internal/logger"
	"device-geocoder/internal/reference"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

func main() {
	file := flag.String("file", "", "Path to the CSV or XLSX file to import")
	configPath := flag.String("config", "./configs", "Directory containing app.env")
	envFile := flag.String("env", ".env", "Optional dotenv file loaded before the config")
	flag.Parse()

	if *file == "" {
		log.Fatal().Msg("--file flag is required")
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Str("file", *envFile).Msg("cannot load env file")
	}

	// Load config
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	log.Info().Str("file", *file).Str("driver", cfg.DBDriver).Msg("starting import")

	units, err := reference.LoadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot parse reference file")
	}
	log.Info().Int("records", len(units)).Msg("parsed reference file")

	ctx := context.Background()

	// Connect to DB
	repo, closeStore, err := app.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot connect to db")
	}
	defer closeStore()

	// Ensure table exists
	if err := repo.EnsureReferenceTable(ctx); err != nil {
		log.Fatal().Err(err).Msg("cannot create reference table")
	}

	before, err := repo.CountReferenceUnits(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot count reference units")
	}

	// Insert records
	n, err := repo.ImportReferenceUnits(ctx, units)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot insert reference units")
	}

	// Verify data
	after, err := repo.CountReferenceUnits(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot count reference units")
	}
	if after-before != n {
		log.Fatal().Int64("copied", n).Int64("added", after-before).Msg("record count mismatch")
	}

	log.Info().Int64("records", n).Str("table", cfg.ReferenceTable).Msg("import finished")
}
