package backfill

import (
	"context"
	"errors"
	"fmt"
	"time"

	"device-geocoder/internal/geo"
	"device-geocoder/internal/metrics"
	"device-geocoder/internal/models"
	"device-geocoder/internal/service"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Store reads devices missing coordinates and writes coordinates back.
type Store interface {
	FetchPending(ctx context.Context, afterID string, limit int) ([]models.DeviceRecord, error)
	UpdateCoordinates(ctx context.Context, updates []models.CoordinateUpdate) (int64, error)
}

// Locator turns an address triple into a coordinate.
type Locator interface {
	Locate(ctx context.Context, q geo.Query, threshold float64) service.Outcome
}

// Options controls paging, batching and retries.
type Options struct {
	Threshold      float64
	PageSize       int
	BatchSize      int
	Limit          int // 0 means no limit
	MaxAttempts    int
	InitialBackoff time.Duration
	DryRun         bool
	// Transient reports errors worth retrying. Nil treats every error as permanent.
	Transient func(error) bool
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions() Options {
	return Options{
		Threshold:      geo.DefaultThreshold,
		PageSize:       10000,
		BatchSize:      100,
		MaxAttempts:    5,
		InitialBackoff: 5 * time.Second,
	}
}

// Stats summarizes one run.
type Stats struct {
	RunID           string        `json:"run_id"`
	Total           int           `json:"total"`
	Matched         int           `json:"matched"`
	MatchedCity     int           `json:"matched_city"`
	MatchedDistrict int           `json:"matched_district"`
	Geocoded        int           `json:"geocoded"`
	MatchFailed     int           `json:"match_failed"`
	Updated         int64         `json:"updated"`
	UpdateFailed    int           `json:"update_failed"`
	Batches         int           `json:"batches"`
	FailedBatches   int           `json:"failed_batches"`
	Retries         int           `json:"retries"`
	Duration        time.Duration `json:"duration"`
}

// Driver fills in missing device coordinates page by page.
type Driver struct {
	store   Store
	locator Locator
	opts    Options
}

// NewDriver creates a new driver. Non-positive sizes fall back to DefaultOptions.
func NewDriver(store Store, locator Locator, opts Options) *Driver {
	def := DefaultOptions()
	if opts.PageSize <= 0 {
		opts.PageSize = def.PageSize
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = def.BatchSize
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = def.MaxAttempts
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = def.InitialBackoff
	}
	if opts.Transient == nil {
		opts.Transient = func(error) bool { return false }
	}
	return &Driver{store: store, locator: locator, opts: opts}
}

// Run processes every pending device. Match failures and failed batches are counted and
// skipped; fetch errors and cancellation end the run with the stats gathered so far.
func (d *Driver) Run(ctx context.Context) (Stats, error) {
	stats := Stats{RunID: uuid.NewString()}
	logger := log.With().Str("run_id", stats.RunID).Logger()
	start := time.Now()

	logger.Info().
		Int("page_size", d.opts.PageSize).
		Int("batch_size", d.opts.BatchSize).
		Int("limit", d.opts.Limit).
		Float64("threshold", d.opts.Threshold).
		Bool("dry_run", d.opts.DryRun).
		Msg("backfill started")

	err := d.run(ctx, logger, &stats)
	stats.Duration = time.Since(start)
	d.summary(logger, stats, err)
	return stats, err
}

func (d *Driver) run(ctx context.Context, logger zerolog.Logger, stats *Stats) error {
	afterID := ""
	batch := make([]models.CoordinateUpdate, 0, d.opts.BatchSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := d.opts.PageSize
		if d.opts.Limit > 0 {
			remaining := d.opts.Limit - stats.Total
			if remaining <= 0 {
				break
			}
			size = min(size, remaining)
		}

		page, err := d.fetch(ctx, logger, afterID, size, stats)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}
		logger.Debug().Str("after_id", afterID).Int("rows", len(page)).Msg("fetched page")

		for _, rec := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			stats.Total++

			update, ok := d.locate(ctx, logger, rec, stats)
			if !ok {
				continue
			}
			batch = append(batch, update)
			if len(batch) >= d.opts.BatchSize {
				if err := d.flush(ctx, logger, batch, stats); err != nil {
					return err
				}
				batch = make([]models.CoordinateUpdate, 0, d.opts.BatchSize)
			}
		}

		afterID = page[len(page)-1].ID
		if len(page) < size {
			break
		}
	}

	if len(batch) > 0 {
		return d.flush(ctx, logger, batch, stats)
	}
	return nil
}

func (d *Driver) locate(ctx context.Context, logger zerolog.Logger, rec models.DeviceRecord, stats *Stats) (models.CoordinateUpdate, bool) {
	q := geo.Query{Province: rec.Province, City: rec.City, District: rec.District}
	out := d.locator.Locate(ctx, q, d.opts.Threshold)
	if !out.Found {
		stats.MatchFailed++
		ev := logger.Warn().Str("id", rec.ID).
			Str("province", rec.Province).
			Str("city", rec.City).
			Str("district", rec.District)
		if f := out.Resolution.Failure; f != nil {
			ev = ev.Str("stage", f.Stage.String()).
				Str("candidate", f.Candidate).
				Float64("score", f.Score)
		}
		ev.Msg("no match")
		return models.CoordinateUpdate{}, false
	}

	stats.Matched++
	switch out.Source {
	case service.SourceDistrict:
		stats.MatchedDistrict++
	case service.SourceCity:
		stats.MatchedCity++
	case service.SourceGeocoder:
		stats.Geocoded++
	}
	logger.Debug().Str("id", rec.ID).
		Str("source", out.Source).
		Float64("confidence", out.Resolution.Confidence).
		Float64("lat", out.Point.Latitude).
		Float64("lon", out.Point.Longitude).
		Msg("matched")
	return models.CoordinateUpdate{
		ID:        rec.ID,
		Latitude:  out.Point.Latitude,
		Longitude: out.Point.Longitude,
		Keys:      rec.Keys,
	}, true
}

func (d *Driver) fetch(ctx context.Context, logger zerolog.Logger, afterID string, size int, stats *Stats) ([]models.DeviceRecord, error) {
	var page []models.DeviceRecord
	err := d.retry(ctx, logger, stats, func() error {
		var err error
		page, err = d.store.FetchPending(ctx, afterID, size)
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("backfill: failed to fetch page after %q: %w", afterID, err)
	}
	return page, nil
}

// flush writes one batch. A batch that still fails after retries is logged and counted;
// only cancellation is returned.
func (d *Driver) flush(ctx context.Context, logger zerolog.Logger, batch []models.CoordinateUpdate, stats *Stats) error {
	stats.Batches++
	if d.opts.DryRun {
		metrics.BatchesTotal.WithLabelValues("dry_run").Inc()
		logger.Info().Int("batch", stats.Batches).Int("rows", len(batch)).Msg("dry run, batch not written")
		return nil
	}

	var updated int64
	err := d.retry(ctx, logger, stats, func() error {
		n, err := d.store.UpdateCoordinates(ctx, batch)
		updated = n
		return err
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		stats.FailedBatches++
		stats.UpdateFailed += len(batch)
		metrics.BatchesTotal.WithLabelValues("failed").Inc()
		logger.Error().Err(err).
			Int("batch", stats.Batches).
			Int("rows", len(batch)).
			Str("first_id", batch[0].ID).
			Msg("batch update failed")
		return nil
	}

	stats.Updated += updated
	metrics.BatchesTotal.WithLabelValues("ok").Inc()
	metrics.RowsUpdatedTotal.Add(float64(updated))
	logger.Info().Int("batch", stats.Batches).Int64("rows", updated).Msg("batch updated")
	return nil
}

// retry runs op until it succeeds, fails with a permanent error or runs out of attempts.
func (d *Driver) retry(ctx context.Context, logger zerolog.Logger, stats *Stats, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialBackoff
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.opts.MaxAttempts-1)), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !d.opts.Transient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		stats.Retries++
		metrics.BatchRetriesTotal.Inc()
		logger.Warn().Err(err).Dur("wait", wait).Msg("transient database error, retrying")
	})
}

func (d *Driver) summary(logger zerolog.Logger, stats Stats, err error) {
	rate := 0.0
	if secs := stats.Duration.Seconds(); secs > 0 {
		rate = float64(stats.Total) / secs
	}
	ev := logger.Info()
	if err != nil {
		ev = logger.Warn().Err(err)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			ev = ev.Bool("interrupted", true)
		}
	}
	ev.Int("total", stats.Total).
		Int("matched", stats.Matched).
		Int("matched_district", stats.MatchedDistrict).
		Int("matched_city", stats.MatchedCity).
		Int("geocoded", stats.Geocoded).
		Int("match_failed", stats.MatchFailed).
		Int64("updated", stats.Updated).
		Int("update_failed", stats.UpdateFailed).
		Int("batches", stats.Batches).
		Int("failed_batches", stats.FailedBatches).
		Int("retries", stats.Retries).
		Dur("duration", stats.Duration).
		Float64("rows_per_sec", rate).
		Msg("backfill finished")
}
