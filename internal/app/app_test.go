package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"device-geocoder/internal/config"
	"device-geocoder/internal/geo"
	"device-geocoder/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "units.csv")
	csv := "Region,City,district,latitude,longitude\n" +
		"Riyadh,Riyadh,Al Olaya,24.69,46.68\n" +
		"Makkah,Jeddah,Al Hamra,21.53,39.17\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	return config.Config{
		DBDriver:             "postgres",
		ReferenceSource:      path,
		ReferenceTable:       "geo_reference_units",
		DeviceTable:          "dev_meter_id",
		DeviceIDColumn:       "meter_id",
		DeviceProvinceColumn: "province_name",
		DeviceCityColumn:     "city_name",
		DeviceDistrictColumn: "region_name",
		DeviceLatColumn:      "latitude",
		DeviceLonColumn:      "longitude",
		Similarity:           "ratcliff",
		MatchThreshold:       0.6,
		RadiusKm:             2,
		Precision:            6,
		RandomSeed:           42,
		CacheSize:            100,
	}
}

type unitStore struct {
	Store
	units []models.ReferenceUnit
}

func (s unitStore) LoadReferenceUnits(context.Context) ([]models.ReferenceUnit, error) {
	return s.units, nil
}

func TestDevices(t *testing.T) {
	cfg := testConfig(t)
	d, err := Devices(cfg)
	require.NoError(t, err)

	assert.Equal(t, "dev_meter_id", d.Name)
	assert.Equal(t, "meter_id", d.ID)
	assert.Equal(t, "region_name", d.District)
	assert.Empty(t, d.Mirrors)

	cfg.MirrorTargets = "dev_device_instance:id:install_latitude:install_longitude:device_id"
	d, err = Devices(cfg)
	require.NoError(t, err)
	require.Len(t, d.Mirrors, 1)
	assert.Equal(t, "device_id", d.Mirrors[0].Source)

	cfg.MirrorTargets = "dev_device_instance:id"
	_, err = Devices(cfg)
	assert.Error(t, err)

	cfg.MirrorTargets = ""
	cfg.DeviceLatColumn = ""
	_, err = Devices(cfg)
	assert.Error(t, err)
}

func TestLoadReference(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	units, err := LoadReference(ctx, cfg, nil)
	require.NoError(t, err)
	require.Len(t, units, 2)
	assert.Equal(t, "Al Hamra", units[1].DistrictName)

	cfg.ReferenceSource = ReferenceFromDB
	_, err = LoadReference(ctx, cfg, nil)
	assert.Error(t, err)

	want := []models.ReferenceUnit{{ProvinceName: "Asir", CityName: "Abha", DistrictName: "Al Manhal", CenterLatitude: 18.2, CenterLongitude: 42.5}}
	units, err = LoadReference(ctx, cfg, unitStore{units: want})
	require.NoError(t, err)
	assert.Equal(t, want, units)
}

func TestNewMatcher(t *testing.T) {
	cfg := testConfig(t)
	units, err := LoadReference(context.Background(), cfg, nil)
	require.NoError(t, err)

	m, err := NewMatcher(cfg, units)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Index().Len())

	cfg.Similarity = "soundex"
	_, err = NewMatcher(cfg, units)
	assert.Error(t, err)
}

func TestNewService(t *testing.T) {
	cfg := testConfig(t)
	units, err := LoadReference(context.Background(), cfg, nil)
	require.NoError(t, err)
	m, err := NewMatcher(cfg, units)
	require.NoError(t, err)

	svc, closer := NewService(cfg, m)
	defer closer()

	out := svc.Locate(context.Background(), geo.Query{Province: "riyadh", City: "riyadh", District: "al olaya"}, cfg.MatchThreshold)
	require.True(t, out.Found)
	assert.LessOrEqual(t, geo.DistanceKm(out.Center, out.Point), 2.01)
}
