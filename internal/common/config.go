package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration, loaded in layers:
// defaults -> config file(s) -> environment variables -> CLI flag
// overrides (applied by the caller via ApplyFlagOverrides).
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Store       StoreConfig      `toml:"store"`
	Logging     LoggingConfig    `toml:"logging"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Classifier  ClassifierConfig `toml:"classifier"`
	Uploader    UploaderConfig   `toml:"uploader"`
	Scheduler   SchedulerConfig  `toml:"scheduler"`
	Supervisor  SupervisorConfig `toml:"supervisor"`
}

// ServerConfig is the HTTP API adapter's bind address.
type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// StoreConfig is the Badger-backed state store.
type StoreConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration.
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// LoggingConfig controls the arbor logger.
type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Format     string   `toml:"format"`      // "json" or "text"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// CrawlerConfig controls the Crawler Engine and the Fetcher's
// direct-HTTP tier.
type CrawlerConfig struct {
	UserAgent             string        `toml:"user_agent"`
	RequestTimeout        time.Duration `toml:"request_timeout"`          // per-fetch timeout (default 20s)
	MaxBodySize           int64         `toml:"max_body_size"`            // bound streamed bodies (default 10MB)
	MaxRedirects          int           `toml:"max_redirects"`            // default 10
	MaxPages              int           `toml:"max_pages"`                // default 2000
	MaxDepth              int           `toml:"max_depth"`                // default 6
	MaxConcurrencyPerHost int           `toml:"max_concurrency_per_host"` // default 4
	BrowserPoolSize       int           `toml:"browser_pool_size"`        // chromedp contexts, default 2
}

// ClassifierConfig controls the Claude-backed LLM classification call.
type ClassifierConfig struct {
	APIKey              string        `toml:"api_key"`
	Model               string        `toml:"model"`
	Timeout             time.Duration `toml:"timeout"`              // default 30s
	ConfidenceThreshold float64       `toml:"confidence_threshold"` // default 0.5
}

// UploaderConfig controls the SharePoint-backed document store client.
type UploaderConfig struct {
	IdentityTenant       string        `toml:"identity_tenant"`
	IdentityClientID     string        `toml:"identity_client_id"`
	IdentityClientSecret string        `toml:"identity_client_secret"`
	TokenURL             string        `toml:"token_url"`
	Scope                string        `toml:"scope"`
	BaseURL              string        `toml:"base_url"`
	MaxConcurrentUploads int           `toml:"max_concurrent_uploads"` // default 4
	ChunkSizeBytes       int64         `toml:"chunk_size_bytes"`       // default 4MiB
	ChunkTimeout         time.Duration `toml:"chunk_timeout"`          // default 60s
}

// SchedulerConfig controls the weekly-recrawl cron registration.
type SchedulerConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"` // fixed "0 0 * * 0" (Sunday 00:00 UTC)
}

// SupervisorConfig controls the Job Supervisor's admission control and
// cancellation grace period.
type SupervisorConfig struct {
	MaxConcurrentJobs  int           `toml:"max_concurrent_jobs"`  // default 8
	WorkerGraceSeconds int           `toml:"worker_grace_seconds"` // default 10
	WorkerBinaryPath   string        `toml:"worker_binary_path"`   // path to cmd/worker binary
	HeartbeatInterval  time.Duration `toml:"heartbeat_interval"`   // not read by the worker, which checks cancel_requested between stages and before each PDF download
	JobWallClockLimit  time.Duration `toml:"job_wall_clock_limit"` // soft timeout, default 6h
}

// NewDefaultConfig creates a configuration with default values. Technical
// parameters are hardcoded here for production stability; only
// user-facing settings need to appear in docharvest.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Store: StoreConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     []string{"stdout", "file"},
			TimeFormat: "15:04:05.000",
		},
		Crawler: CrawlerConfig{
			UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout:        20 * time.Second,
			MaxBodySize:           10 * 1024 * 1024,
			MaxRedirects:          10,
			MaxPages:              2000,
			MaxDepth:              6,
			MaxConcurrencyPerHost: 4,
			BrowserPoolSize:       2,
		},
		Classifier: ClassifierConfig{
			Model:               "claude-haiku-3-5-20241022",
			Timeout:             30 * time.Second,
			ConfidenceThreshold: 0.5,
		},
		Uploader: UploaderConfig{
			MaxConcurrentUploads: 4,
			ChunkSizeBytes:       4 * 1024 * 1024,
			ChunkTimeout:         60 * time.Second,
		},
		Scheduler: SchedulerConfig{
			Enabled: true,
			Cron:    "0 0 * * 0",
		},
		Supervisor: SupervisorConfig{
			MaxConcurrentJobs:  8,
			WorkerGraceSeconds: 10,
			WorkerBinaryPath:   "./worker",
			HeartbeatInterval:  2 * time.Second,
			JobWallClockLimit:  6 * time.Hour,
		},
	}
}

// LoadFromFile loads configuration from a single file, or defaults if
// path is empty.
func LoadFromFile(path string) (*Config, error) {
	if path == "" {
		return LoadFromFiles()
	}
	return LoadFromFiles(path)
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier
// files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config.
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("DOCHARVEST_ENV"); env != "" {
		config.Environment = env
	}

	if port := os.Getenv("DOCHARVEST_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("DOCHARVEST_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	if path := os.Getenv("STATE_STORE_URL"); path != "" {
		config.Store.Badger.Path = path
	}

	if level := os.Getenv("DOCHARVEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("DOCHARVEST_LOG_OUTPUT"); output != "" {
		outputs := strings.Split(output, ",")
		for i := range outputs {
			outputs[i] = strings.TrimSpace(outputs[i])
		}
		config.Logging.Output = outputs
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.Classifier.APIKey = apiKey
	}

	if tenant := os.Getenv("IDENTITY_TENANT"); tenant != "" {
		config.Uploader.IdentityTenant = tenant
	}
	if clientID := os.Getenv("IDENTITY_CLIENT_ID"); clientID != "" {
		config.Uploader.IdentityClientID = clientID
	}
	if clientSecret := os.Getenv("IDENTITY_CLIENT_SECRET"); clientSecret != "" {
		config.Uploader.IdentityClientSecret = clientSecret
	}

	if maxJobs := os.Getenv("MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if mj, err := strconv.Atoi(maxJobs); err == nil {
			config.Supervisor.MaxConcurrentJobs = mj
		}
	}
	if grace := os.Getenv("WORKER_GRACE_SECONDS"); grace != "" {
		if g, err := strconv.Atoi(grace); err == nil {
			config.Supervisor.WorkerGraceSeconds = g
		}
	}
}

// ApplyFlagOverrides layers CLI flag values on top of file/env config as
// the highest-priority override tier. Zero values are treated as
// "not set" and left untouched.
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
