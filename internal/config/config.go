package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"patterndraw/internal/provider"
)

// Environment variables that override the file
const (
	EnvAPIURL   = "PATTERNDRAW_API_URL"
	EnvAPIToken = "PATTERNDRAW_API_TOKEN"
	EnvPort     = "PATTERNDRAW_PORT"
)

// Config represents the application configuration
type Config struct {
	API    APIConfig    `yaml:"api"`
	Yahoo  YahooConfig  `yaml:"yahoo"`
	Search SearchConfig `yaml:"search"`
	Chart  ChartConfig  `yaml:"chart"`
	Store  StoreConfig  `yaml:"store"`
	Warm   WarmConfig   `yaml:"warm"`
	Server ServerConfig `yaml:"server"`
	Log    LogConfig    `yaml:"log"`
}

// APIConfig holds the analysis API settings
type APIConfig struct {
	BaseURL           string `yaml:"base_url"`
	Token             string `yaml:"token"`
	PatternSearchPath string `yaml:"pattern_search_path"`
	FindSimilarPath   string `yaml:"find_similar_path"`
	RateLimit         int    `yaml:"rate_limit"` // requests per minute
}

// YahooConfig holds the fallback candle source settings
type YahooConfig struct {
	Enabled   bool `yaml:"enabled"`
	RateLimit int  `yaml:"rate_limit"` // requests per minute
}

// SearchConfig holds search defaults
type SearchConfig struct {
	MinSimilarity float64       `yaml:"min_similarity"`
	Limit         int           `yaml:"limit"`
	Timeout       time.Duration `yaml:"timeout"`

	// PrimaryTimeout bounds the pattern call; 0 gives it half of Timeout
	PrimaryTimeout time.Duration `yaml:"primary_timeout"`
}

// ChartConfig holds the default candle request
type ChartConfig struct {
	Interval string `yaml:"interval"`
	Period   string `yaml:"period"`
	Width    int    `yaml:"width"`
	Height   int    `yaml:"height"`
}

// StoreConfig holds the candle cache settings. An empty path disables the
// persistent tier.
type StoreConfig struct {
	Path     string        `yaml:"path"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// WarmConfig holds cache warm-up settings
type WarmConfig struct {
	Schedule string        `yaml:"schedule"` // 5-field cron, empty disables
	Workers  int           `yaml:"workers"`
	Timeout  time.Duration `yaml:"timeout"`
	Universe string        `yaml:"universe"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LogConfig holds log file settings. An empty file logs to stderr only.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:           "http://localhost:8001/api",
			PatternSearchPath: "/stocks/search-by-pattern",
			FindSimilarPath:   "/stocks/find-similar",
			RateLimit:         60,
		},
		Yahoo: YahooConfig{
			Enabled:   true,
			RateLimit: 30,
		},
		Search: SearchConfig{
			MinSimilarity: 0.6,
			Limit:         20,
			Timeout:       2 * time.Minute,
		},
		Chart: ChartConfig{
			Interval: provider.DefaultInterval,
			Period:   provider.DefaultPeriod,
			Width:    1000,
			Height:   500,
		},
		Store: StoreConfig{
			Path:     "patterndraw.db",
			CacheTTL: 12 * time.Hour,
		},
		Warm: WarmConfig{
			Schedule: "30 18 * * 1-5",
			Workers:  4,
			Timeout:  30 * time.Minute,
			Universe: "bist100",
		},
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			MaxSizeMB:  20,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load loads configuration from a YAML file. A .env file next to the process
// is read first; a missing config file means defaults.
func Load(path string) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Override with environment variables if set
	if u := os.Getenv(EnvAPIURL); u != "" {
		cfg.API.BaseURL = u
	}
	if tok := os.Getenv(EnvAPIToken); tok != "" {
		cfg.API.Token = tok
	}
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", EnvPort, err)
		}
		cfg.Server.Port = port
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("api.base_url must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.API.RateLimit < 1 {
		return fmt.Errorf("api.rate_limit must be at least 1")
	}
	if c.Yahoo.Enabled && c.Yahoo.RateLimit < 1 {
		return fmt.Errorf("yahoo.rate_limit must be at least 1")
	}
	if c.Search.MinSimilarity <= 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be in (0, 1]")
	}
	if c.Search.Limit < 1 {
		return fmt.Errorf("search.limit must be at least 1")
	}
	if c.Search.PrimaryTimeout < 0 || (c.Search.Timeout > 0 && c.Search.PrimaryTimeout >= c.Search.Timeout) {
		return fmt.Errorf("search.primary_timeout must be shorter than search.timeout")
	}
	if c.Chart.Width < 1 || c.Chart.Height < 1 {
		return fmt.Errorf("chart width and height must be positive")
	}
	if c.Warm.Workers < 1 {
		return fmt.Errorf("warm.workers must be at least 1")
	}
	if c.Warm.Schedule != "" {
		if _, err := cron.ParseStandard(c.Warm.Schedule); err != nil {
			return fmt.Errorf("warm.schedule: %w", err)
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	return nil
}
