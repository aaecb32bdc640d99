package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Cloudinary CloudinaryConfig
	Notify     NotifyConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	LogLevel     string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RateLimit    int           // requests allowed per client per window
	RateWindow   time.Duration // fixed rate-limit window
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; when Addr is empty the deduplication ledger
// falls back to the database-backed implementation.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
}

// NotifyConfig tunes the notification fan-out and reminder escalation chain.
type NotifyConfig struct {
	PriceDropThreshold float64       // relative price drop that triggers watcher fan-out
	ReminderInterval   time.Duration // dwell between buyer delivery reminders
	EscalateAfter      time.Duration // dwell before the one-shot admin escalation
	DedupCapacity      int           // retained processed-event ids
	RetentionDays      int           // notification age-based purge
	CleanupSchedule    string        // cron spec for the retention job
}

// Load reads configuration from environment variables (CLEARLOT_ prefix) and
// an optional yaml file, falling back to development defaults.
func Load() *Config {
	v := viper.New()
	v.SetEnvPrefix("CLEARLOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/clearlot")
	setDefaults(v)
	_ = v.ReadInConfig() // missing file is fine; env + defaults apply

	return &Config{
		Server: ServerConfig{
			Port:         v.GetString("server.port"),
			Env:          v.GetString("server.env"),
			LogLevel:     v.GetString("server.log_level"),
			ReadTimeout:  v.GetDuration("server.read_timeout"),
			WriteTimeout: v.GetDuration("server.write_timeout"),
			RateLimit:    v.GetInt("server.rate_limit"),
			RateWindow:   v.GetDuration("server.rate_window"),
		},
		Database: DatabaseConfig{
			DSN:             v.GetString("database.dsn"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			AccessSecret:  v.GetString("jwt.access_secret"),
			RefreshSecret: v.GetString("jwt.refresh_secret"),
			AccessExpiry:  v.GetDuration("jwt.access_expiry"),
			RefreshExpiry: v.GetDuration("jwt.refresh_expiry"),
			Issuer:        v.GetString("jwt.issuer"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName: v.GetString("cloudinary.cloud_name"),
			APIKey:    v.GetString("cloudinary.api_key"),
			APISecret: v.GetString("cloudinary.api_secret"),
		},
		Notify: NotifyConfig{
			PriceDropThreshold: v.GetFloat64("notify.price_drop_threshold"),
			ReminderInterval:   v.GetDuration("notify.reminder_interval"),
			EscalateAfter:      v.GetDuration("notify.escalate_after"),
			DedupCapacity:      v.GetInt("notify.dedup_capacity"),
			RetentionDays:      v.GetInt("notify.retention_days"),
			CleanupSchedule:    v.GetString("notify.cleanup_schedule"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", time.Minute)

	v.SetDefault("database.dsn", "clearlot:clearlot@tcp(localhost:3306)/clearlot?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("jwt.access_secret", "change-me-in-production")
	v.SetDefault("jwt.refresh_secret", "change-me-refresh")
	v.SetDefault("jwt.access_expiry", 15*time.Minute)
	v.SetDefault("jwt.refresh_expiry", 168*time.Hour)
	v.SetDefault("jwt.issuer", "clearlot")

	v.SetDefault("notify.price_drop_threshold", 0.05)
	v.SetDefault("notify.reminder_interval", time.Hour)
	v.SetDefault("notify.escalate_after", 6*time.Hour)
	v.SetDefault("notify.dedup_capacity", 100)
	v.SetDefault("notify.retention_days", 30)
	v.SetDefault("notify.cleanup_schedule", "@daily")
}
