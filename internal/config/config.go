package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	Port              string        `mapstructure:"PORT"`
	Env               string        `mapstructure:"ENV"`
	LogLevel          string        `mapstructure:"LOG_LEVEL"`
	StoreDriver       string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL       string        `mapstructure:"DATABASE_URL"`
	DBMaxConns        int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns        int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir     string        `mapstructure:"MIGRATIONS_DIR"`
	CORSOrigins       []string      `mapstructure:"CORS_ORIGINS"`
	APIPrefix         string        `mapstructure:"API_PREFIX"`
	BodyLimit         string        `mapstructure:"BODY_LIMIT"`
	MaxPhotoBytes     int           `mapstructure:"MAX_PHOTO_BYTES"`
	RequestTimeout    time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	AgeMismatchPolicy string        `mapstructure:"AGE_MISMATCH_POLICY"`
	SeedSampleData    bool          `mapstructure:"SEED_SAMPLE_DATA"`
	RateLimitRPS      float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst    int           `mapstructure:"RATE_LIMIT_BURST"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "STORE_DRIVER", "DATABASE_URL", "DB_MAX_CONNS",
	"DB_MIN_CONNS", "MIGRATIONS_DIR", "CORS_ORIGINS", "API_PREFIX", "BODY_LIMIT",
	"MAX_PHOTO_BYTES", "REQUEST_TIMEOUT", "AGE_MISMATCH_POLICY", "SEED_SAMPLE_DATA",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("STORE_DRIVER", StoreMemory)
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("API_PREFIX", "")
	v.SetDefault("BODY_LIMIT", "4M")
	v.SetDefault("MAX_PHOTO_BYTES", 2<<20)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("AGE_MISMATCH_POLICY", "advisory")
	v.SetDefault("SEED_SAMPLE_DATA", false)
	v.SetDefault("RATE_LIMIT_RPS", 0)
	v.SetDefault("RATE_LIMIT_BURST", 20)

	// AutomaticEnv only answers Get calls; Unmarshal needs explicit bindings.
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// .env is optional
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))
	cfg.APIPrefix = normalizePrefix(cfg.APIPrefix)

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Level returns the configured log level, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case StoreMemory:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", StorePostgres)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", StoreMemory, StorePostgres, c.StoreDriver)
	}

	switch strings.ToLower(c.AgeMismatchPolicy) {
	case "", "advisory", "reject":
	default:
		return fmt.Errorf("AGE_MISMATCH_POLICY must be \"advisory\" or \"reject\", got %q", c.AgeMismatchPolicy)
	}

	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) must not exceed DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if c.MaxPhotoBytes <= 0 {
		return fmt.Errorf("MAX_PHOTO_BYTES must be positive, got %d", c.MaxPhotoBytes)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must not be negative, got %s", c.RequestTimeout)
	}
	if c.IsProduction() && c.SeedSampleData {
		return fmt.Errorf("SEED_SAMPLE_DATA must not be enabled when ENV is production")
	}
	if c.RateLimitRPS < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS must not be negative, got %v", c.RateLimitRPS)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizePrefix turns "api/v1/" into "/api/v1"; "/" and "" mean no prefix.
func normalizePrefix(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return ""
	}
	return "/" + p
}
