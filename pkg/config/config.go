package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	LockBackendLocal = "local"
	LockBackendRedis = "redis"

	envFile = ".env"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string
	Timezone  string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Grid      GridConfig
	Scheduler SchedulerConfig
	Alerts    AlertsConfig
}

type DatabaseConfig struct {
	Driver        string
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	SQLitePath    string
	MaxOpenConns  int
	MaxIdleConns  int
	AutoMigrate   bool
	SQLiteTimeout time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GridConfig describes the slot grid. File, when set, wins over the
// start/end/step triple.
type GridConfig struct {
	File  string
	Start string
	End   string
	Step  time.Duration
	Days  []string
}

// SchedulerConfig tunes the conflict engine.
type SchedulerConfig struct {
	LockBackend  string
	LockTTL      time.Duration
	LockWait     time.Duration
	StoreTimeout time.Duration
}

// AlertsConfig controls the upcoming-class reminder sweep.
type AlertsConfig struct {
	Enabled        bool
	Cron           string
	Horizon        time.Duration
	Workers        int
	RatePerSec     int
	Retries        int
	TelegramToken  string
	TelegramChatID int64
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v, err := newViper()
	if err != nil {
		return nil, err
	}
	return fromViper(v), nil
}

// Watch re-reads the .env file whenever it changes and hands the fresh
// configuration to onChange. It is a no-op when no .env file exists.
func Watch(onChange func(*Config)) error {
	if _, err := os.Stat(envFile); err != nil {
		return nil
	}
	v, err := newViper()
	if err != nil {
		return err
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(fromViper(v))
	})
	v.WatchConfig()
	return nil
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(envFile)
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return v, nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.Timezone = v.GetString("TIMEZONE")

	cfg.Database = DatabaseConfig{
		Driver:        strings.ToLower(v.GetString("DB_DRIVER")),
		Host:          v.GetString("DB_HOST"),
		Port:          v.GetInt("DB_PORT"),
		User:          v.GetString("DB_USER"),
		Password:      v.GetString("DB_PASSWORD"),
		Name:          v.GetString("DB_NAME"),
		SSLMode:       v.GetString("DB_SSL_MODE"),
		SQLitePath:    v.GetString("DB_SQLITE_PATH"),
		MaxOpenConns:  v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:  v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:   v.GetBool("DB_AUTO_MIGRATE"),
		SQLiteTimeout: parseDuration(v.GetString("DB_SQLITE_BUSY_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Grid = GridConfig{
		File:  v.GetString("GRID_FILE"),
		Start: v.GetString("GRID_START"),
		End:   v.GetString("GRID_END"),
		Step:  parseDuration(v.GetString("GRID_STEP"), 45*time.Minute),
		Days:  splitAndTrim(v.GetString("GRID_DAYS")),
	}

	cfg.Scheduler = SchedulerConfig{
		LockBackend:  strings.ToLower(v.GetString("SCHEDULER_LOCK_BACKEND")),
		LockTTL:      parseDuration(v.GetString("SCHEDULER_LOCK_TTL"), 10*time.Second),
		LockWait:     parseDuration(v.GetString("SCHEDULER_LOCK_WAIT"), 3*time.Second),
		StoreTimeout: parseDuration(v.GetString("SCHEDULER_STORE_TIMEOUT"), 5*time.Second),
	}

	cfg.Alerts = AlertsConfig{
		Enabled:        v.GetBool("ENABLE_ALERTS"),
		Cron:           v.GetString("ALERTS_CRON"),
		Horizon:        parseDuration(v.GetString("ALERTS_HORIZON"), 30*time.Minute),
		Workers:        v.GetInt("ALERTS_WORKERS"),
		RatePerSec:     v.GetInt("ALERTS_RATE_PER_SEC"),
		Retries:        v.GetInt("ALERTS_RETRIES"),
		TelegramToken:  v.GetString("ALERTS_TELEGRAM_TOKEN"),
		TelegramChatID: v.GetInt64("ALERTS_TELEGRAM_CHAT_ID"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("TIMEZONE", "Local")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_SQLITE_PATH", "./data/timetable.db")
	v.SetDefault("DB_SQLITE_BUSY_TIMEOUT", "5s")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "timetable-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRID_FILE", "")
	v.SetDefault("GRID_START", "10:00")
	v.SetDefault("GRID_END", "16:00")
	v.SetDefault("GRID_STEP", "45m")
	v.SetDefault("GRID_DAYS", "")

	v.SetDefault("SCHEDULER_LOCK_BACKEND", LockBackendLocal)
	v.SetDefault("SCHEDULER_LOCK_TTL", "10s")
	v.SetDefault("SCHEDULER_LOCK_WAIT", "3s")
	v.SetDefault("SCHEDULER_STORE_TIMEOUT", "5s")

	v.SetDefault("ENABLE_ALERTS", false)
	v.SetDefault("ALERTS_CRON", "*/5 * * * *")
	v.SetDefault("ALERTS_HORIZON", "30m")
	v.SetDefault("ALERTS_WORKERS", 2)
	v.SetDefault("ALERTS_RATE_PER_SEC", 3)
	v.SetDefault("ALERTS_RETRIES", 3)
	v.SetDefault("ALERTS_TELEGRAM_TOKEN", "")
	v.SetDefault("ALERTS_TELEGRAM_CHAT_ID", 0)
}

// Location resolves the configured timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
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
