package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Poller     PollerConfig     `yaml:"poller"`
	Database   DatabaseConfig   `yaml:"database"`
	Mongo      MongoConfig      `yaml:"mongo"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Reminder   ReminderConfig   `yaml:"reminder"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	Log        LogConfig        `yaml:"log"`
}

// WorkerPoolConfig holds the configuration for the push notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// PollerConfig holds the upstream reservation API polling configuration.
type PollerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string        `yaml:"http_proxy"`
	Timezone        string        `yaml:"timezone"`
	Reservations    RequestConfig `yaml:"reservations"`
	Venues          RequestConfig `yaml:"venues"`
}

// RequestConfig defines one paginated upstream request.
type RequestConfig struct {
	URL      string            `yaml:"url"`
	Headers  map[string]string `yaml:"headers"`
	PageSize int               `yaml:"pageSize"`
	Payload  map[string]any    `yaml:"payload"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// MongoConfig is only used when reminder.kv_backend is "mongo".
type MongoConfig struct {
	URI        string `yaml:"uri"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

// ReminderConfig tunes reminder reconciliation and alarm delivery.
type ReminderConfig struct {
	KVBackend        string        `yaml:"kv_backend"`
	IOTimeoutSeconds int           `yaml:"io_timeout_seconds"`
	IOTimeout        time.Duration `yaml:"-"`
	Concurrency      int           `yaml:"concurrency"`
	DispatchSpec     string        `yaml:"dispatch_spec"`
	AlarmGraceMins   int           `yaml:"alarm_grace_minutes"`
}

// ScheduleConfig holds the slot menu settings.
type ScheduleConfig struct {
	SlotStepMinutes int           `yaml:"slot_step_minutes"`
	SlotStep        time.Duration `yaml:"-"`
	PickerDays      int           `yaml:"picker_days"`
}

// LogConfig holds the logger settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

const (
	KVBackendGorm  = "gorm"
	KVBackendMongo = "mongo"
)

// Load reads the configuration from the given path. A .env file in the working directory
// is loaded first; secrets found in the environment override the file. Load runs before
// the service logger is built, so its warnings go through the standard log package.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not load .env: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)

	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := map[string]*string{
		"DATABASE_DSN":      &cfg.Database.DSN,
		"VAPID_PUBLIC_KEY":  &cfg.Push.PublicKey,
		"VAPID_PRIVATE_KEY": &cfg.Push.PrivateKey,
		"MONGO_URI":         &cfg.Mongo.URI,
		"MONGO_PASSWORD":    &cfg.Mongo.Password,
	}
	for key, dst := range overrides {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

func applyDefaults(cfg *Config) error {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	if cfg.Poller.IntervalSeconds <= 0 {
		cfg.Poller.IntervalSeconds = 60
	}
	cfg.Poller.Interval = time.Duration(cfg.Poller.IntervalSeconds) * time.Second
	if cfg.Poller.Timezone == "" {
		cfg.Poller.Timezone = "Europe/Istanbul"
	}
	if cfg.Poller.Reservations.PageSize <= 0 {
		cfg.Poller.Reservations.PageSize = 100
	}
	if cfg.Poller.Venues.PageSize <= 0 {
		cfg.Poller.Venues.PageSize = 100
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	switch cfg.Reminder.KVBackend {
	case "":
		cfg.Reminder.KVBackend = KVBackendGorm
	case KVBackendGorm, KVBackendMongo:
	default:
		return fmt.Errorf("unknown reminder.kv_backend %q", cfg.Reminder.KVBackend)
	}
	if cfg.Reminder.IOTimeoutSeconds <= 0 {
		cfg.Reminder.IOTimeoutSeconds = 10
	}
	cfg.Reminder.IOTimeout = time.Duration(cfg.Reminder.IOTimeoutSeconds) * time.Second
	if cfg.Reminder.Concurrency <= 0 {
		cfg.Reminder.Concurrency = 4
	}
	if cfg.Reminder.DispatchSpec == "" {
		cfg.Reminder.DispatchSpec = "@every 30s"
	}
	if cfg.Reminder.AlarmGraceMins <= 0 {
		cfg.Reminder.AlarmGraceMins = 15
	}

	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "booking"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "reminder_records"
	}

	if cfg.Schedule.SlotStepMinutes <= 0 {
		cfg.Schedule.SlotStepMinutes = 30
	}
	cfg.Schedule.SlotStep = time.Duration(cfg.Schedule.SlotStepMinutes) * time.Minute
	if cfg.Schedule.PickerDays <= 0 {
		cfg.Schedule.PickerDays = 14
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	return nil
}

// Location resolves the configured timezone, falling back to UTC. Callers compare the
// result's name with Poller.Timezone to report the fallback.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Poller.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
