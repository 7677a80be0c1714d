package config

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// TelegramConfig holds the bot credentials and polling settings.
type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AllowedChats []int64 `yaml:"allowed_chats"` // empty means open to everyone
	PollTimeout  int     `yaml:"poll_timeout"`
}

// UpstreamConfig configures one third-party tender API.
type UpstreamConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// LogsConfig configures the API call audit logs.
type LogsConfig struct {
	Dir string `yaml:"dir"`
}

// MongoConfig configures the optional query-history store.
type MongoConfig struct {
	URI string        `yaml:"uri"` // empty disables history
	TTL time.Duration `yaml:"ttl"`
}

// RedisConfig configures the optional platform-directory cache.
type RedisConfig struct {
	Addr string        `yaml:"addr"` // empty disables the cache
	TTL  time.Duration `yaml:"ttl"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables metrics
}

// DownloadConfig configures the tender document downloader.
type DownloadConfig struct {
	Workers        int `yaml:"workers"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

type Config struct {
	Telegram   TelegramConfig `yaml:"telegram"`
	TenderGuru UpstreamConfig `yaml:"tenderguru"`
	Damia      UpstreamConfig `yaml:"damia"`
	Logs       LogsConfig     `yaml:"logs"`
	Mongo      MongoConfig    `yaml:"mongo"`
	Redis      RedisConfig    `yaml:"redis"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Download   DownloadConfig `yaml:"download"`
	LogLevel   string         `yaml:"log_level"`
}

// LoadConfig reads the YAML config, applies defaults, merges secrets from the
// environment and sets the logrus level.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.setDefaults()
	cfg.mergeEnvVars()

	if cfg.LogLevel != "" {
		if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
			logrus.SetLevel(level)
		}
	}

	if cfg.Telegram.Token == "" {
		return nil, fmt.Errorf("telegram token is not configured")
	}

	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Telegram.PollTimeout == 0 {
		c.Telegram.PollTimeout = 60
	}
	if c.TenderGuru.BaseURL == "" {
		c.TenderGuru.BaseURL = "https://www.tenderguru.ru/api2.3/export"
	}
	if c.TenderGuru.TimeoutSeconds == 0 {
		c.TenderGuru.TimeoutSeconds = 30
	}
	if c.Damia.BaseURL == "" {
		c.Damia.BaseURL = "https://api.damia.ru"
	}
	if c.Damia.TimeoutSeconds == 0 {
		c.Damia.TimeoutSeconds = 30
	}
	if c.Logs.Dir == "" {
		c.Logs.Dir = "logs"
	}
	if c.Mongo.TTL == 0 {
		c.Mongo.TTL = 30 * 24 * time.Hour
	}
	if c.Redis.TTL == 0 {
		c.Redis.TTL = 24 * time.Hour
	}
	if c.Download.Workers == 0 {
		c.Download.Workers = 4
	}
	if c.Download.TimeoutSeconds == 0 {
		c.Download.TimeoutSeconds = 60
	}
}

func (c *Config) mergeEnvVars() {
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		c.Telegram.Token = token
	}
	if key := os.Getenv("TENDERGURU_API_KEY"); key != "" {
		c.TenderGuru.APIKey = key
	}
	if key := os.Getenv("DAMIA_API_KEY"); key != "" {
		c.Damia.APIKey = key
	}
	if uri := os.Getenv("MONGO_URI"); uri != "" {
		c.Mongo.URI = uri
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		c.Redis.Addr = addr
	}
}
