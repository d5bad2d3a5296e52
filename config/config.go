package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
	Schedule   ScheduleConfig   `yaml:"schedule"`
	BookingAPI BookingAPIConfig `yaml:"booking_api"`
	Database   DatabaseConfig   `yaml:"database"`
	Push       PushConfig       `yaml:"push"`
	Redis      RedisConfig      `yaml:"redis"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
}

// WorkerPoolConfig holds the configuration for the web push worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	Enabled    bool   `yaml:"enabled"`
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// RedisConfig configures the redis pub/sub notification channel.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "console" or "json"
}

// ScheduleConfig controls when check cycles run.
type ScheduleConfig struct {
	Enabled             bool          `yaml:"enabled"`
	Cron                string        `yaml:"cron"`
	RunOnStart          bool          `yaml:"run_on_start"`
	CycleTimeoutSeconds int           `yaml:"cycle_timeout_seconds"`
	CycleTimeout        time.Duration `yaml:"-"`
}

// BookingAPIConfig describes the upstream course list endpoint.
type BookingAPIConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	Language       string            `yaml:"language"`
	SelectMethod   int               `yaml:"select_method"`
	MemberIDTac    int               `yaml:"member_id_tac"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
	HTTPProxy      string            `yaml:"http_proxy"`
	Timezone       string            `yaml:"timezone"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" or "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
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

	cfg.applyDefaults()
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
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

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if cfg.Schedule.Cron == "" {
		cfg.Schedule.Cron = "@every 5m"
	}
	if cfg.Schedule.CycleTimeoutSeconds <= 0 {
		cfg.Schedule.CycleTimeoutSeconds = 240
	}
	cfg.Schedule.CycleTimeout = time.Duration(cfg.Schedule.CycleTimeoutSeconds) * time.Second

	if cfg.BookingAPI.URL == "" {
		cfg.BookingAPI.URL = "https://blfa-api.migros.ch/kp/api/Courselist/all?"
	}
	if cfg.BookingAPI.Language == "" {
		cfg.BookingAPI.Language = "de"
	}
	if cfg.BookingAPI.SelectMethod == 0 {
		cfg.BookingAPI.SelectMethod = 1
	}
	if cfg.BookingAPI.TimeoutSeconds <= 0 {
		cfg.BookingAPI.TimeoutSeconds = 30
	}
	cfg.BookingAPI.Timeout = time.Duration(cfg.BookingAPI.TimeoutSeconds) * time.Second
	if cfg.BookingAPI.Timezone == "" {
		cfg.BookingAPI.Timezone = "Europe/Zurich"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "gym-class-tracker"
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}
}
