//go:build integration

package repository

import (
	"context"
	"testing"

	"device-geocoder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/jackc/pgx/v5/pgxpool"
)

func setupTestDatabase(t *testing.T) *pgxpool.Pool {
	ctx := context.Background()

	// Start PostgreSQL container
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
	}

	postgresC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		postgresC.Terminate(ctx)
	})

	host, err := postgresC.Host(ctx)
	require.NoError(t, err)

	port, err := postgresC.MappedPort(ctx, "5432")
	require.NoError(t, err)

	connString := "postgres://testuser:testpass@" + host + ":" + port.Port() + "/testdb?sslmode=disable"

	// Connect to database
	pool, err := pgxpool.New(ctx, connString)
	require.NoError(t, err)

	t.Cleanup(func() {
		pool.Close()
	})

	// Create test schema
	_, err = pool.Exec(ctx, `
		CREATE TABLE dev_meter_id (
			meter_id VARCHAR(32) PRIMARY KEY,
			province_name VARCHAR(255),
			city_name VARCHAR(255),
			region_name VARCHAR(255),
			device_id VARCHAR(32),
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		);

		CREATE TABLE dev_device_instance (
			id VARCHAR(32) PRIMARY KEY,
			install_latitude DOUBLE PRECISION,
			install_longitude DOUBLE PRECISION
		);

		CREATE TABLE device_latest_report_message (
			device_id VARCHAR(32) PRIMARY KEY,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION
		);

		INSERT INTO dev_meter_id (meter_id, province_name, city_name, region_name, device_id, latitude, longitude) VALUES
		('m1', 'Riyadh', 'Riyadh', 'Al Olaya', 'd1', NULL, NULL),
		('m2', 'Makkah', 'Jeddah', NULL, NULL, NULL, NULL),
		('m3', 'Riyadh', 'Riyadh', 'Al Malaz', 'd3', 24.66, 46.73),
		('m4', 'Eastern Province', 'Dammam', 'Al Faisaliyah', 'd4', 26.41, NULL);

		INSERT INTO dev_device_instance (id) VALUES ('d1'), ('d3'), ('d4');
		INSERT INTO device_latest_report_message (device_id) VALUES ('d1'), ('d4');
	`)
	require.NoError(t, err)

	return pool
}

func TestRepository_FetchPending(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool, testDevices(), "geo_reference_units")
	ctx := context.Background()

	tests := []struct {
		name     string
		afterID  string
		limit    int
		expected []models.DeviceRecord
	}{
		{
			name:  "first page",
			limit: 2,
			expected: []models.DeviceRecord{
				{ID: "m1", Province: "Riyadh", City: "Riyadh", District: "Al Olaya"},
				{ID: "m2", Province: "Makkah", City: "Jeddah", District: ""},
			},
		},
		{
			name:    "next page skips filled rows",
			afterID: "m2",
			limit:   2,
			expected: []models.DeviceRecord{
				{ID: "m4", Province: "Eastern Province", City: "Dammam", District: "Al Faisaliyah"},
			},
		},
		{
			name:     "past the end",
			afterID:  "m4",
			limit:    2,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := repo.FetchPending(ctx, tt.afterID, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, devices)
		})
	}
}

func TestRepository_UpdateCoordinates(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool, testDevices(), "geo_reference_units")
	ctx := context.Background()

	n, err := repo.UpdateCoordinates(ctx, []models.CoordinateUpdate{
		{ID: "m1", Latitude: 24.7, Longitude: 46.7},
		{ID: "m2", Latitude: 21.5, Longitude: 39.2},
		{ID: "missing", Latitude: 1, Longitude: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	var lat, lon float64
	err = pool.QueryRow(ctx, "SELECT latitude, longitude FROM dev_meter_id WHERE meter_id = 'm2'").Scan(&lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, 21.5, lat)
	assert.Equal(t, 39.2, lon)

	pending, err := repo.FetchPending(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "m4", pending[0].ID)
}

func TestRepository_ReferenceUnits(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool, testDevices(), "geo_reference_units")
	ctx := context.Background()

	units := []models.ReferenceUnit{
		{ProvinceName: "Riyadh", CityName: "Riyadh", DistrictName: "Al Olaya", CenterLatitude: 24.69, CenterLongitude: 46.68},
		{ProvinceName: "Makkah", CityName: "Jeddah", DistrictName: "Al Hamra", CenterLatitude: 21.53, CenterLongitude: 39.17},
	}

	require.NoError(t, repo.EnsureReferenceTable(ctx))
	require.NoError(t, repo.EnsureReferenceTable(ctx))

	n, err := repo.ImportReferenceUnits(ctx, units)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	count, err := repo.CountReferenceUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	loaded, err := repo.LoadReferenceUnits(ctx)
	require.NoError(t, err)
	assert.Equal(t, units, loaded)
}

func TestRepository_UpdateCoordinatesMirrors(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	pool := setupTestDatabase(t)
	repo := NewRepository(pool, mirroredDevices(), "geo_reference_units")
	ctx := context.Background()

	pending, err := repo.FetchPending(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, map[string]string{"device_id": "d1"}, pending[0].Keys)
	assert.Equal(t, map[string]string{"device_id": ""}, pending[1].Keys)

	updates := make([]models.CoordinateUpdate, len(pending))
	for i, d := range pending {
		updates[i] = models.CoordinateUpdate{ID: d.ID, Latitude: 20 + float64(i), Longitude: 40 + float64(i), Keys: d.Keys}
	}
	n, err := repo.UpdateCoordinates(ctx, updates)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	var lat, lon float64
	err = pool.QueryRow(ctx, "SELECT install_latitude, install_longitude FROM dev_device_instance WHERE id = 'd4'").Scan(&lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, 22.0, lat)
	assert.Equal(t, 42.0, lon)

	err = pool.QueryRow(ctx, "SELECT latitude, longitude FROM device_latest_report_message WHERE device_id = 'd1'").Scan(&lat, &lon)
	require.NoError(t, err)
	assert.Equal(t, 20.0, lat)
	assert.Equal(t, 40.0, lon)

	var untouched *float64
	err = pool.QueryRow(ctx, "SELECT install_latitude FROM dev_device_instance WHERE id = 'd3'").Scan(&untouched)
	require.NoError(t, err)
	assert.Nil(t, untouched)
}
