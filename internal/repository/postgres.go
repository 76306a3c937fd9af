package repository

import (
	"context"
	"fmt"
	"strings"

	"device-geocoder/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the device and reference stores for PostgreSQL
type Repository struct {
	db        *pgxpool.Pool
	devices   DeviceTable
	reference string
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(db *pgxpool.Pool, devices DeviceTable, referenceTable string) *Repository {
	return &Repository{db: db, devices: devices, reference: referenceTable}
}

func pgIdent(name string) string {
	return pgx.Identifier(splitQualified(name)).Sanitize()
}

// LoadReferenceUnits reads every row of the reference table in insertion order.
func (r *Repository) LoadReferenceUnits(ctx context.Context) ([]models.ReferenceUnit, error) {
	sql := fmt.Sprintf(`
		SELECT province_name, city_name, district_name, center_latitude, center_longitude
		FROM %s
		ORDER BY id
	`, pgIdent(r.reference))

	rows, err := r.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reference units: %w", err)
	}
	defer rows.Close()

	var units []models.ReferenceUnit
	for rows.Next() {
		var u models.ReferenceUnit
		err := rows.Scan(
			&u.ProvinceName,
			&u.CityName,
			&u.DistrictName,
			&u.CenterLatitude,
			&u.CenterLongitude,
		)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan reference unit: %w", err)
		}
		units = append(units, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return units, nil
}

// FetchPending returns up to limit devices after afterID, in identifier order, whose
// coordinates are missing. Identifiers are compared as text so any key type pages the same way.
func (r *Repository) FetchPending(ctx context.Context, afterID string, limit int) ([]models.DeviceRecord, error) {
	sources := r.devices.sources()

	rows, err := r.db.Query(ctx, buildPgFetch(r.devices), afterID, limit)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query pending devices: %w", err)
	}
	defer rows.Close()

	var devices []models.DeviceRecord
	for rows.Next() {
		var d models.DeviceRecord
		keys := make([]string, len(sources))
		dest := []any{&d.ID, &d.Province, &d.City, &d.District}
		for i := range keys {
			dest = append(dest, &keys[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("repository: failed to scan device: %w", err)
		}
		d.Keys = scanKeys(sources, keys)
		devices = append(devices, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating rows: %w", err)
	}

	return devices, nil
}

func buildPgFetch(t DeviceTable) string {
	id := pgIdent(t.ID)
	cols := []string{
		id + "::text",
		fmt.Sprintf("COALESCE(%s, '')", pgIdent(t.Province)),
		fmt.Sprintf("COALESCE(%s, '')", pgIdent(t.City)),
		fmt.Sprintf("COALESCE(%s, '')", pgIdent(t.District)),
	}
	for _, s := range t.sources() {
		cols = append(cols, fmt.Sprintf("COALESCE(%s::text, '')", pgIdent(s)))
	}
	return fmt.Sprintf(`
		SELECT %[2]s
		FROM %[3]s
		WHERE (%[4]s IS NULL OR %[5]s IS NULL) AND %[1]s::text > $1
		ORDER BY %[1]s::text
		LIMIT $2
	`, id, strings.Join(cols, ", "), pgIdent(t.Name), pgIdent(t.Latitude), pgIdent(t.Longitude))
}

// UpdateCoordinates writes one batch to the device table and every mirror in a single
// transaction. The returned count is for the device table.
func (r *Repository) UpdateCoordinates(ctx context.Context, updates []models.CoordinateUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var updated int64
	for i, target := range r.devices.targets() {
		keys, rows := target.keyed(updates)
		if len(keys) == 0 {
			continue
		}
		lats := make([]float64, len(rows))
		lons := make([]float64, len(rows))
		for j, u := range rows {
			lats[j], lons[j] = u.Latitude, u.Longitude
		}

		tag, err := tx.Exec(ctx, buildPgUpdate(target), keys, lats, lons)
		if err != nil {
			return 0, fmt.Errorf("repository: failed to update coordinates in %s: %w", target.Name, err)
		}
		if i == 0 {
			updated = tag.RowsAffected()
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("repository: failed to commit coordinates: %w", err)
	}
	return updated, nil
}

func buildPgUpdate(t Target) string {
	return fmt.Sprintf(`
		UPDATE %[1]s AS d
		SET %[2]s = u.lat, %[3]s = u.lon
		FROM unnest($1::text[], $2::float8[], $3::float8[]) AS u(id, lat, lon)
		WHERE d.%[4]s::text = u.id
	`, pgIdent(t.Name), pgIdent(t.Latitude), pgIdent(t.Longitude), pgIdent(t.Key))
}

// EnsureReferenceTable creates the reference table if it does not exist.
func (r *Repository) EnsureReferenceTable(ctx context.Context) error {
	name := pgIdent(r.reference)
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		province_name VARCHAR(255) NOT NULL,
		city_name VARCHAR(255) NOT NULL,
		district_name VARCHAR(255) NOT NULL,
		center_latitude DOUBLE PRECISION NOT NULL,
		center_longitude DOUBLE PRECISION NOT NULL
	);
	`, name)
	if _, err := r.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("repository: failed to create reference table: %w", err)
	}
	return nil
}

// ImportReferenceUnits bulk inserts units with COPY.
func (r *Repository) ImportReferenceUnits(ctx context.Context, units []models.ReferenceUnit) (int64, error) {
	n, err := r.db.CopyFrom(
		ctx,
		pgx.Identifier(splitQualified(r.reference)),
		ReferenceColumns,
		pgx.CopyFromSlice(len(units), func(i int) ([]any, error) {
			u := units[i]
			return []any{u.ProvinceName, u.CityName, u.DistrictName, u.CenterLatitude, u.CenterLongitude}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to copy reference units: %w", err)
	}
	return n, nil
}

// CountReferenceUnits returns the number of rows in the reference table.
func (r *Repository) CountReferenceUnits(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", pgIdent(r.reference))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count reference units: %w", err)
	}
	return count, nil
}
