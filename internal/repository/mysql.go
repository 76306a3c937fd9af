package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"device-geocoder/internal/models"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLRepository implements the device and reference stores for MySQL
type MySQLRepository struct {
	db        *sql.DB
	devices   DeviceTable
	reference string
}

// OpenMySQL opens and pings a MySQL pool.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to open mysql: %w", err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("repository: failed to ping mysql: %w", err)
	}
	return db, nil
}

// NewMySQLRepository creates a new MySQL repository
func NewMySQLRepository(db *sql.DB, devices DeviceTable, referenceTable string) *MySQLRepository {
	return &MySQLRepository{db: db, devices: devices, reference: referenceTable}
}

func myIdent(name string) string {
	parts := splitQualified(name)
	for i, p := range parts {
		parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
	}
	return strings.Join(parts, ".")
}

// LoadReferenceUnits reads every row of the reference table in insertion order.
func (r *MySQLRepository) LoadReferenceUnits(ctx context.Context) ([]models.ReferenceUnit, error) {
	query := fmt.Sprintf(
		"SELECT province_name, city_name, district_name, center_latitude, center_longitude FROM %s ORDER BY id",
		myIdent(r.reference))

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query reference units: %w", err)
	}
	defer rows.Close()

	var units []models.ReferenceUnit
	for rows.Next() {
		var u models.ReferenceUnit
		if err := rows.Scan(&u.ProvinceName, &u.CityName, &u.DistrictName, &u.CenterLatitude, &u.CenterLongitude); err != nil {
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
// coordinates are missing. Identifiers are compared byte-wise so paging does not depend on
// the connection collation.
func (r *MySQLRepository) FetchPending(ctx context.Context, afterID string, limit int) ([]models.DeviceRecord, error) {
	sources := r.devices.sources()

	rows, err := r.db.QueryContext(ctx, buildMySQLFetch(r.devices), afterID, limit)
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

func buildMySQLFetch(t DeviceTable) string {
	id := fmt.Sprintf("CAST(%s AS CHAR CHARACTER SET utf8mb4) COLLATE utf8mb4_bin", myIdent(t.ID))
	cols := []string{
		id,
		fmt.Sprintf("COALESCE(%s, '')", myIdent(t.Province)),
		fmt.Sprintf("COALESCE(%s, '')", myIdent(t.City)),
		fmt.Sprintf("COALESCE(%s, '')", myIdent(t.District)),
	}
	for _, s := range t.sources() {
		cols = append(cols, fmt.Sprintf("COALESCE(CAST(%s AS CHAR), '')", myIdent(s)))
	}
	return fmt.Sprintf(
		"SELECT %s FROM %s WHERE (%s IS NULL OR %s IS NULL) AND %s > ? ORDER BY %s LIMIT ?",
		strings.Join(cols, ", "), myIdent(t.Name), myIdent(t.Latitude), myIdent(t.Longitude), id, id)
}

// UpdateCoordinates writes one batch to the device table and every mirror, one CASE update
// per table inside a single transaction. The returned count is for the device table.
func (r *MySQLRepository) UpdateCoordinates(ctx context.Context, updates []models.CoordinateUpdate) (int64, error) {
	if len(updates) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var updated int64
	for i, target := range r.devices.targets() {
		keys, rows := target.keyed(updates)
		if len(keys) == 0 {
			continue
		}
		query, args := buildMySQLUpdate(target, keys, rows)
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("repository: failed to update coordinates in %s: %w", target.Name, err)
		}
		if i == 0 {
			if updated, err = res.RowsAffected(); err != nil {
				return 0, fmt.Errorf("repository: failed to read affected rows: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("repository: failed to commit coordinates: %w", err)
	}
	return updated, nil
}

// buildMySQLUpdate renders
//
//	UPDATE t SET lat = CASE key WHEN ? THEN ? ... END, lon = CASE key WHEN ? THEN ? ... END WHERE key IN (?, ...)
func buildMySQLUpdate(t Target, keys []string, updates []models.CoordinateUpdate) (string, []any) {
	key := myIdent(t.Key)
	args := make([]any, 0, len(updates)*5)

	var b strings.Builder
	fmt.Fprintf(&b, "UPDATE %s SET %s = CASE %s", myIdent(t.Name), myIdent(t.Latitude), key)
	for i, u := range updates {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, keys[i], u.Latitude)
	}
	fmt.Fprintf(&b, " END, %s = CASE %s", myIdent(t.Longitude), key)
	for i, u := range updates {
		b.WriteString(" WHEN ? THEN ?")
		args = append(args, keys[i], u.Longitude)
	}
	fmt.Fprintf(&b, " END WHERE %s IN (", key)
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("?")
		args = append(args, k)
	}
	b.WriteString(")")
	return b.String(), args
}

// referenceInsertBatch is the number of rows per multi-row INSERT.
const referenceInsertBatch = 500

// EnsureReferenceTable creates the reference table if it does not exist.
func (r *MySQLRepository) EnsureReferenceTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		province_name VARCHAR(255) NOT NULL,
		city_name VARCHAR(255) NOT NULL,
		district_name VARCHAR(255) NOT NULL,
		center_latitude DOUBLE NOT NULL,
		center_longitude DOUBLE NOT NULL
	) DEFAULT CHARSET = utf8mb4
	`, myIdent(r.reference))
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("repository: failed to create reference table: %w", err)
	}
	return nil
}

// ImportReferenceUnits inserts units in multi-row batches inside one transaction.
func (r *MySQLRepository) ImportReferenceUnits(ctx context.Context, units []models.ReferenceUnit) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int64
	for start := 0; start < len(units); start += referenceInsertBatch {
		end := min(start+referenceInsertBatch, len(units))
		query, args := buildMySQLInsert(r.reference, units[start:end])
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("repository: failed to insert reference units: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("repository: failed to read affected rows: %w", err)
		}
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("repository: failed to commit reference units: %w", err)
	}
	return n, nil
}

func buildMySQLInsert(table string, units []models.ReferenceUnit) (string, []any) {
	cols := make([]string, len(ReferenceColumns))
	for i, c := range ReferenceColumns {
		cols[i] = myIdent(c)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", myIdent(table), strings.Join(cols, ", "))
	args := make([]any, 0, len(units)*len(ReferenceColumns))
	for i, u := range units {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, u.ProvinceName, u.CityName, u.DistrictName, u.CenterLatitude, u.CenterLongitude)
	}
	return b.String(), args
}

// CountReferenceUnits returns the number of rows in the reference table.
func (r *MySQLRepository) CountReferenceUnits(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", myIdent(r.reference))).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to count reference units: %w", err)
	}
	return count, nil
}
