package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string `validate:"oneof=development production test"`
	Port int    `validate:"gt=0,lt=65536"`

	Database DatabaseConfig
	Redis    RedisConfig
	Log      LogConfig
	Backfill BackfillConfig
	Reports  ReportsConfig
}

type DatabaseConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"gt=0"`
	User         string `validate:"required"`
	Password     string
	Name         string `validate:"required"`
	SSLMode      string `validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	// HierarchyTTL bounds how long ward -> zone lookups stay cached.
	HierarchyTTL time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// BackfillConfig tunes the location backfill run.
type BackfillConfig struct {
	Kind            string `validate:"oneof=feeder_point litter_bin"`
	CityID          string
	ModuleName      string `validate:"required"`
	StrictHierarchy bool
	PersistAudit    bool
	Interval        time.Duration
	// RetainDecisions is set by callers that render the run's decisions
	// afterwards; it has no environment variable.
	RetainDecisions bool
}

// ReportsConfig controls where decision reports are written.
type ReportsConfig struct {
	StorageDir string
	// Retention is how long report files survive; zero keeps them forever.
	Retention time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:      v.GetBool("CACHE_ENABLED"),
		Host:         v.GetString("REDIS_HOST"),
		Port:         v.GetInt("REDIS_PORT"),
		Password:     v.GetString("REDIS_PASSWORD"),
		DB:           v.GetInt("REDIS_DB"),
		HierarchyTTL: parseDuration(v.GetString("HIERARCHY_CACHE_TTL"), 6*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Backfill = BackfillConfig{
		Kind:            v.GetString("BACKFILL_KIND"),
		CityID:          strings.TrimSpace(v.GetString("BACKFILL_CITY_ID")),
		ModuleName:      v.GetString("BACKFILL_MODULE_NAME"),
		StrictHierarchy: v.GetBool("BACKFILL_STRICT_HIERARCHY"),
		PersistAudit:    v.GetBool("BACKFILL_PERSIST_AUDIT"),
		Interval:        parseDuration(v.GetString("BACKFILL_INTERVAL"), time.Hour),
	}

	cfg.Reports = ReportsConfig{
		StorageDir: v.GetString("REPORTS_STORAGE_DIR"),
		Retention:  parseDuration(v.GetString("REPORTS_RETENTION"), 0),
	}

	return cfg
}

// Validate checks the loaded configuration for values the store and engine cannot work with.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "taskforce")
	v.SetDefault("DB_PASSWORD", "")
	v.SetDefault("DB_NAME", "taskforce")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("HIERARCHY_CACHE_TTL", "6h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BACKFILL_KIND", "feeder_point")
	v.SetDefault("BACKFILL_CITY_ID", "")
	v.SetDefault("BACKFILL_MODULE_NAME", "TASKFORCE")
	v.SetDefault("BACKFILL_STRICT_HIERARCHY", true)
	v.SetDefault("BACKFILL_PERSIST_AUDIT", false)
	v.SetDefault("BACKFILL_INTERVAL", "1h")

	v.SetDefault("REPORTS_STORAGE_DIR", "./reports")
	v.SetDefault("REPORTS_RETENTION", "720h")
}

// isMissingFile reports a missing .env; SetConfigFile surfaces it as a path
// error rather than viper.ConfigFileNotFoundError.
func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
