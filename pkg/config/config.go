package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Lock backends supported for per-reconciler mutual exclusion.
const (
	LockBackendRedis    = "redis"
	LockBackendPostgres = "postgres"
	LockBackendNone     = "none"
)

// Leave expiry comparison fields.
const (
	LeaveExpiryBasisStartDate = "start_date"
	LeaveExpiryBasisEndDate   = "end_date"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	Reconcile ReconcileConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig only carries what is needed to verify bearer tokens on the trigger API.
type JWTConfig struct {
	Secret string
}

type LogConfig struct {
	Level  string
	Format string
}

// ReconcileConfig governs the reconciliation jobs and their scheduling.
type ReconcileConfig struct {
	Timezone       string
	Workers        int
	MaxRetries     int
	RetryDelay     time.Duration
	LockBackend    string
	LockTTL        time.Duration
	SummaryTTL     time.Duration
	HistorySize    int
	SchedulerStart bool

	Attendance  JobConfig
	LeaveExpiry JobConfig
	Missions    JobConfig

	AttendanceLookbackDays int
	LeaveExpiryBasis       string
}

// JobConfig toggles a single reconciler and sets its cadence. Cron, when set,
// replaces Interval and is read in the reconcile time zone.
type JobConfig struct {
	Enabled  bool
	Interval time.Duration
	Cron     string
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
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Reconcile = ReconcileConfig{
		Timezone:       v.GetString("RECONCILE_TIMEZONE"),
		Workers:        v.GetInt("RECONCILE_WORKERS"),
		MaxRetries:     v.GetInt("RECONCILE_MAX_RETRIES"),
		RetryDelay:     parseDuration(v.GetString("RECONCILE_RETRY_DELAY"), 30*time.Second),
		LockBackend:    strings.ToLower(v.GetString("LOCK_BACKEND")),
		LockTTL:        parseDuration(v.GetString("RECONCILE_LOCK_TTL"), 15*time.Minute),
		SummaryTTL:     parseDuration(v.GetString("RECONCILE_SUMMARY_TTL"), 7*24*time.Hour),
		HistorySize:    v.GetInt("RECONCILE_HISTORY_SIZE"),
		SchedulerStart: v.GetBool("ENABLE_SCHEDULER"),
		Attendance: JobConfig{
			Enabled:  v.GetBool("ENABLE_ATTENDANCE_RECONCILER"),
			Interval: parseDuration(v.GetString("RECONCILE_ATTENDANCE_INTERVAL"), 15*time.Minute),
			Cron:     strings.TrimSpace(v.GetString("RECONCILE_ATTENDANCE_CRON")),
		},
		LeaveExpiry: JobConfig{
			Enabled:  v.GetBool("ENABLE_LEAVE_EXPIRY_RECONCILER"),
			Interval: parseDuration(v.GetString("RECONCILE_LEAVE_EXPIRY_INTERVAL"), 24*time.Hour),
			Cron:     strings.TrimSpace(v.GetString("RECONCILE_LEAVE_EXPIRY_CRON")),
		},
		Missions: JobConfig{
			Enabled:  v.GetBool("ENABLE_MISSION_RECONCILER"),
			Interval: parseDuration(v.GetString("RECONCILE_MISSIONS_INTERVAL"), time.Hour),
			Cron:     strings.TrimSpace(v.GetString("RECONCILE_MISSIONS_CRON")),
		},
		AttendanceLookbackDays: v.GetInt("RECONCILE_ATTENDANCE_LOOKBACK_DAYS"),
		LeaveExpiryBasis:       strings.ToLower(v.GetString("LEAVE_EXPIRY_BASIS")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects settings the reconcilers cannot run with.
func (c *Config) Validate() error {
	switch c.Reconcile.LockBackend {
	case LockBackendRedis, LockBackendPostgres, LockBackendNone:
	default:
		return fmt.Errorf("invalid LOCK_BACKEND %q", c.Reconcile.LockBackend)
	}
	switch c.Reconcile.LeaveExpiryBasis {
	case LeaveExpiryBasisStartDate, LeaveExpiryBasisEndDate:
	default:
		return fmt.Errorf("invalid LEAVE_EXPIRY_BASIS %q", c.Reconcile.LeaveExpiryBasis)
	}
	if _, err := time.LoadLocation(c.Reconcile.Timezone); err != nil {
		return fmt.Errorf("invalid RECONCILE_TIMEZONE %q: %w", c.Reconcile.Timezone, err)
	}
	for name, job := range map[string]JobConfig{
		"ATTENDANCE":   c.Reconcile.Attendance,
		"LEAVE_EXPIRY": c.Reconcile.LeaveExpiry,
		"MISSIONS":     c.Reconcile.Missions,
	} {
		if job.Cron == "" {
			continue
		}
		if _, err := cron.ParseStandard(job.Cron); err != nil {
			return fmt.Errorf("invalid RECONCILE_%s_CRON %q: %w", name, job.Cron, err)
		}
	}
	if c.Reconcile.HistorySize < 1 {
		return fmt.Errorf("RECONCILE_HISTORY_SIZE must be at least 1")
	}
	if c.Reconcile.AttendanceLookbackDays < 0 {
		return fmt.Errorf("RECONCILE_ATTENDANCE_LOOKBACK_DAYS must not be negative")
	}
	return nil
}

// Location returns the time zone slot times are expressed in.
func (c ReconcileConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "admin_panel_sma")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("RECONCILE_TIMEZONE", "UTC")
	v.SetDefault("RECONCILE_WORKERS", 2)
	v.SetDefault("RECONCILE_MAX_RETRIES", 2)
	v.SetDefault("RECONCILE_RETRY_DELAY", "30s")
	v.SetDefault("LOCK_BACKEND", LockBackendRedis)
	v.SetDefault("RECONCILE_LOCK_TTL", "15m")
	v.SetDefault("RECONCILE_SUMMARY_TTL", "168h")
	v.SetDefault("RECONCILE_HISTORY_SIZE", 20)
	v.SetDefault("ENABLE_SCHEDULER", true)

	v.SetDefault("ENABLE_ATTENDANCE_RECONCILER", true)
	v.SetDefault("RECONCILE_ATTENDANCE_INTERVAL", "15m")
	v.SetDefault("ENABLE_LEAVE_EXPIRY_RECONCILER", true)
	v.SetDefault("RECONCILE_LEAVE_EXPIRY_INTERVAL", "24h")
	v.SetDefault("ENABLE_MISSION_RECONCILER", true)
	v.SetDefault("RECONCILE_MISSIONS_INTERVAL", "1h")
	v.SetDefault("RECONCILE_ATTENDANCE_CRON", "")
	v.SetDefault("RECONCILE_LEAVE_EXPIRY_CRON", "")
	v.SetDefault("RECONCILE_MISSIONS_CRON", "")

	v.SetDefault("RECONCILE_ATTENDANCE_LOOKBACK_DAYS", 0)
	v.SetDefault("LEAVE_EXPIRY_BASIS", LeaveExpiryBasisStartDate)
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
