// Package app wires configuration into stores, the matcher and the match service.
package app

import (
	"context"
	"fmt"
	"math/rand/v2"

	"device-geocoder/internal/cache"
	"device-geocoder/internal/config"
	"device-geocoder/internal/geo"
	"device-geocoder/internal/models"
	"device-geocoder/internal/opencage"
	"device-geocoder/internal/reference"
	"device-geocoder/internal/repository"
	"device-geocoder/internal/service"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ReferenceFromDB selects the reference table instead of a file.
const ReferenceFromDB = "db"

// Store is what the binaries need from either database.
type Store interface {
	LoadReferenceUnits(ctx context.Context) ([]models.ReferenceUnit, error)
	FetchPending(ctx context.Context, afterID string, limit int) ([]models.DeviceRecord, error)
	UpdateCoordinates(ctx context.Context, updates []models.CoordinateUpdate) (int64, error)
	EnsureReferenceTable(ctx context.Context) error
	ImportReferenceUnits(ctx context.Context, units []models.ReferenceUnit) (int64, error)
	CountReferenceUnits(ctx context.Context) (int64, error)
}

// Devices returns the validated device table described by cfg, mirrors included.
func Devices(cfg config.Config) (repository.DeviceTable, error) {
	mirrors, err := repository.ParseTargets(cfg.MirrorTargets)
	if err != nil {
		return repository.DeviceTable{}, err
	}
	t := repository.DeviceTable{
		Name:      cfg.DeviceTable,
		ID:        cfg.DeviceIDColumn,
		Province:  cfg.DeviceProvinceColumn,
		City:      cfg.DeviceCityColumn,
		District:  cfg.DeviceDistrictColumn,
		Latitude:  cfg.DeviceLatColumn,
		Longitude: cfg.DeviceLonColumn,
		Mirrors:   mirrors,
	}
	if err := t.Validate(); err != nil {
		return repository.DeviceTable{}, err
	}
	return t, nil
}

// OpenStore connects to the configured database. The returned func closes it.
func OpenStore(ctx context.Context, cfg config.Config) (Store, func(), error) {
	devices, err := Devices(cfg)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.DBDriver {
	case "mysql":
		db, err := repository.OpenMySQL(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewMySQLRepository(db, devices, cfg.ReferenceTable), func() { db.Close() }, nil
	default:
		pool, err := pgxpool.New(ctx, cfg.DBSource)
		if err != nil {
			return nil, nil, fmt.Errorf("app: cannot connect to db: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("app: cannot ping db: %w", err)
		}
		return repository.NewRepository(pool, devices, cfg.ReferenceTable), pool.Close, nil
	}
}

// LoadReference reads the reference set from the file named by cfg.ReferenceSource, or
// from the reference table through store when the source is "db".
func LoadReference(ctx context.Context, cfg config.Config, store Store) ([]models.ReferenceUnit, error) {
	if cfg.ReferenceSource == ReferenceFromDB {
		if store == nil {
			return nil, fmt.Errorf("app: reference source %q needs a database", ReferenceFromDB)
		}
		return store.LoadReferenceUnits(ctx)
	}
	return reference.LoadFile(cfg.ReferenceSource)
}

// NewMatcher builds the index and matcher for units.
func NewMatcher(cfg config.Config, units []models.ReferenceUnit) (*geo.Matcher, error) {
	scorer, err := geo.WithScorer(cfg.Similarity)
	if err != nil {
		return nil, err
	}
	norm := geo.Normalizer{FoldASCII: cfg.FoldASCII}
	idx := geo.BuildWith(norm, units)

	opts := []geo.Option{scorer, geo.WithNormalizer(norm)}
	if cfg.RandomSeed != 0 {
		opts = append(opts, geo.WithRand(geo.NewLockedRand(cfg.RandomSeed)))
	}
	return geo.NewMatcher(idx, opts...), nil
}

// NewService assembles the match service with its cache and optional external geocoder.
// The returned func releases the cache connection.
func NewService(cfg config.Config, matcher *geo.Matcher) (*service.MatchService, func()) {
	synth := geo.NewSynthesizer(cfg.RadiusKm)
	synth.Precision = cfg.Precision

	closer := func() {}
	var opts []service.Option

	seed := rand.Uint64()
	if cfg.RandomSeed != 0 {
		seed = cfg.RandomSeed + 1
	}
	opts = append(opts, service.WithRand(geo.NewLockedRand(seed)))

	if client := cache.OpenRedis(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB); client != nil {
		opts = append(opts, service.WithCache(cache.NewRedis(client, cfg.RedisTTL)))
		closer = func() { client.Close() }
		log.Info().Str("addr", cfg.RedisAddr).Msg("using redis resolution cache")
	} else if cfg.CacheSize > 0 {
		opts = append(opts, service.WithCache(cache.NewLRU(cfg.CacheSize, cfg.CacheTTL)))
	}

	if cfg.GeocoderEnabled {
		opts = append(opts, service.WithGeocoder(opencage.New(cfg.GeocoderKey,
			opencage.WithBaseURL(cfg.GeocoderURL),
			opencage.WithRateLimit(cfg.GeocoderPerMinute),
		)))
		log.Info().Int("per_minute", cfg.GeocoderPerMinute).Msg("external geocoder fallback enabled")
	}

	return service.NewMatchService(matcher, synth, opts...), closer
}
