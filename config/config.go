// Package config loads server settings from the environment, an optional
// .env file and defaults, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/warp/workload-engine/generic"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const dateLayout = "2006-01-02"

type Config struct {
	Env  string
	Port int

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Engine   EngineConfig
	Metrics  MetricsConfig
}

type DatabaseConfig struct {
	Path string
}

// RedisConfig controls the optional roster mirror.
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// EngineConfig holds the analytics knobs. HorizonStart and HorizonEnd are
// zero when unset; Horizon then derives a window from the current date.
type EngineConfig struct {
	Location     *time.Location
	MinFreeSlot  time.Duration
	HorizonStart time.Time
	HorizonEnd   time.Time
	HorizonWeeks int
}

type MetricsConfig struct {
	Enabled bool
}

// Load reads envFile (".env" when empty) if present, then the environment.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)

	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{Path: v.GetString("DB_PATH")}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		Key:      v.GetString("REDIS_KEY"),
		TTL:      parseDuration(v.GetString("REDIS_TTL"), 0),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	loc, err := time.LoadLocation(v.GetString("TIMEZONE"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Engine = EngineConfig{
		Location:     loc,
		MinFreeSlot:  parseDuration(v.GetString("FREE_SLOT_MIN_DURATION"), 2*time.Hour),
		HorizonWeeks: v.GetInt("HORIZON_WEEKS"),
	}
	if cfg.Engine.HorizonWeeks <= 0 {
		cfg.Engine.HorizonWeeks = 4
	}
	if cfg.Engine.HorizonStart, err = parseDate(v.GetString("HORIZON_START"), loc); err != nil {
		return nil, fmt.Errorf("invalid HORIZON_START: %w", err)
	}
	if cfg.Engine.HorizonEnd, err = parseDate(v.GetString("HORIZON_END"), loc); err != nil {
		return nil, fmt.Errorf("invalid HORIZON_END: %w", err)
	}
	if !cfg.Engine.HorizonStart.IsZero() && !cfg.Engine.HorizonEnd.IsZero() &&
		cfg.Engine.HorizonEnd.Before(cfg.Engine.HorizonStart) {
		return nil, generic.ErrInvalidWindow
	}

	cfg.Metrics = MetricsConfig{Enabled: v.GetBool("METRICS_ENABLED")}

	return cfg, nil
}

// Calendar returns the business calendar for the configured time zone.
func (e EngineConfig) Calendar() generic.Calendar {
	return generic.NewCalendar(e.Location)
}

// Horizon returns the configured horizon. A missing start defaults to the
// Monday of now's week; a missing end spans HorizonWeeks from the start,
// ending at the last instant of the final Sunday.
func (e EngineConfig) Horizon(now time.Time) generic.Window {
	cal := e.Calendar()
	start := e.HorizonStart
	if start.IsZero() {
		day := cal.StartOfDay(now)
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
	}
	end := e.HorizonEnd
	if end.IsZero() {
		end = start.AddDate(0, 0, 7*e.HorizonWeeks).Add(-time.Nanosecond)
	} else {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return generic.Window{Start: start, End: end}
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_PATH", "./data/workload.db")

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY", "workload:roster")
	v.SetDefault("REDIS_TTL", "")

	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("TIMEZONE", "UTC")
	v.SetDefault("FREE_SLOT_MIN_DURATION", "2h")
	v.SetDefault("HORIZON_START", "")
	v.SetDefault("HORIZON_END", "")
	v.SetDefault("HORIZON_WEEKS", 4)

	v.SetDefault("METRICS_ENABLED", true)
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

func parseDate(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.ParseInLocation(dateLayout, raw, loc)
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
