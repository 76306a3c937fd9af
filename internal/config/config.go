package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds every setting the binaries read. Values come from app.env in the config
// path and can be overridden by environment variables of the same name.
type Config struct {
	DBDriver      string `mapstructure:"DB_DRIVER"`
	DBSource      string `mapstructure:"DB_SOURCE"`
	ServerAddress string `mapstructure:"SERVER_ADDRESS"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	ReferenceSource string `mapstructure:"REFERENCE_SOURCE"`
	ReferenceTable  string `mapstructure:"REFERENCE_TABLE"`

	DeviceTable          string `mapstructure:"DEVICE_TABLE"`
	DeviceIDColumn       string `mapstructure:"DEVICE_ID_COLUMN"`
	DeviceProvinceColumn string `mapstructure:"DEVICE_PROVINCE_COLUMN"`
	DeviceCityColumn     string `mapstructure:"DEVICE_CITY_COLUMN"`
	DeviceDistrictColumn string `mapstructure:"DEVICE_DISTRICT_COLUMN"`
	DeviceLatColumn      string `mapstructure:"DEVICE_LAT_COLUMN"`
	DeviceLonColumn      string `mapstructure:"DEVICE_LON_COLUMN"`
	MirrorTargets        string `mapstructure:"MIRROR_TARGETS"`

	Similarity     string  `mapstructure:"SIMILARITY"`
	MatchThreshold float64 `mapstructure:"MATCH_THRESHOLD"`
	FoldASCII      bool    `mapstructure:"FOLD_ASCII"`
	RadiusKm       float64 `mapstructure:"RADIUS_KM"`
	Precision      int     `mapstructure:"COORD_PRECISION"`
	RandomSeed     uint64  `mapstructure:"RANDOM_SEED"`

	PageSize     int           `mapstructure:"PAGE_SIZE"`
	BatchSize    int           `mapstructure:"BATCH_SIZE"`
	Limit        int           `mapstructure:"LIMIT"`
	MaxAttempts  int           `mapstructure:"MAX_ATTEMPTS"`
	RetryBackoff time.Duration `mapstructure:"RETRY_BACKOFF"`

	CacheSize int           `mapstructure:"CACHE_SIZE"`
	CacheTTL  time.Duration `mapstructure:"CACHE_TTL"`
	RedisAddr string        `mapstructure:"REDIS_ADDR"`
	RedisPass string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB   int           `mapstructure:"REDIS_DB"`
	RedisTTL  time.Duration `mapstructure:"REDIS_TTL"`

	GeocoderEnabled   bool   `mapstructure:"GEOCODER_ENABLED"`
	GeocoderURL       string `mapstructure:"GEOCODER_URL"`
	GeocoderKey       string `mapstructure:"GEOCODER_KEY"`
	GeocoderPerMinute int    `mapstructure:"GEOCODER_PER_MINUTE"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("DB_DRIVER", "postgres")
	v.SetDefault("DB_SOURCE", "")
	v.SetDefault("SERVER_ADDRESS", "0.0.0.0:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("REFERENCE_SOURCE", "GeoAdministrativeUnits.csv")
	v.SetDefault("REFERENCE_TABLE", "geo_reference_units")

	v.SetDefault("DEVICE_TABLE", "dev_meter_id")
	v.SetDefault("DEVICE_ID_COLUMN", "meter_id")
	v.SetDefault("DEVICE_PROVINCE_COLUMN", "province_name")
	v.SetDefault("DEVICE_CITY_COLUMN", "city_name")
	v.SetDefault("DEVICE_DISTRICT_COLUMN", "region_name")
	v.SetDefault("DEVICE_LAT_COLUMN", "latitude")
	v.SetDefault("DEVICE_LON_COLUMN", "longitude")
	v.SetDefault("MIRROR_TARGETS", "")

	v.SetDefault("SIMILARITY", "ratcliff")
	v.SetDefault("MATCH_THRESHOLD", 0.6)
	v.SetDefault("FOLD_ASCII", false)
	v.SetDefault("RADIUS_KM", 10.0)
	v.SetDefault("COORD_PRECISION", 6)
	v.SetDefault("RANDOM_SEED", 0)

	v.SetDefault("PAGE_SIZE", 10000)
	v.SetDefault("BATCH_SIZE", 100)
	v.SetDefault("LIMIT", 0)
	v.SetDefault("MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_BACKOFF", 5*time.Second)

	v.SetDefault("CACHE_SIZE", 10000)
	v.SetDefault("CACHE_TTL", time.Hour)
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_TTL", 24*time.Hour)

	v.SetDefault("GEOCODER_ENABLED", false)
	v.SetDefault("GEOCODER_URL", "https://api.opencagedata.com/geocode/v1/json")
	v.SetDefault("GEOCODER_KEY", "")
	v.SetDefault("GEOCODER_PER_MINUTE", 2500)
}

// LoadConfig reads app.env from path. A missing file is not an error; defaults and the
// environment still apply.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("app")
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return config, fmt.Errorf("config: failed to read config: %w", err)
		}
	}

	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("config: failed to decode config: %w", err)
	}

	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate rejects settings the binaries cannot run with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case "postgres", "mysql":
	default:
		return fmt.Errorf("config: unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("config: MATCH_THRESHOLD must be within [0,1], got %v", c.MatchThreshold)
	}
	if c.RadiusKm < 0 {
		return fmt.Errorf("config: RADIUS_KM must not be negative, got %v", c.RadiusKm)
	}
	if c.PageSize <= 0 || c.BatchSize <= 0 {
		return fmt.Errorf("config: PAGE_SIZE and BATCH_SIZE must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("config: MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.GeocoderEnabled && c.GeocoderKey == "" {
		return fmt.Errorf("config: GEOCODER_KEY is required when GEOCODER_ENABLED is set")
	}
	return nil
}
