// Package config loads runtime settings for the dreamsync engine and CLI.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Config holds runtime settings for the sync engine.
//
// Sources are layered: defaults, then a JSON file (-c/-config), then
// environment variables, then command-line flags. Later sources take
// precedence over earlier ones.
type Config struct {
	// ServerURL is the base URL of the remote document collection,
	// e.g. "https://api.example.com".
	ServerURL string `env:"DREAMSYNC_SERVER_URL"`

	// DatabasePath is the SQLite file holding the local record store.
	DatabasePath string `env:"DREAMSYNC_DB_PATH"`

	// CacheDir is the root of the on-device media cache.
	CacheDir string `env:"DREAMSYNC_CACHE_DIR"`

	// TokenFile is the path of the bearer-token file for the remote API.
	TokenFile string `env:"DREAMSYNC_TOKEN_FILE"`

	// HTTPTimeout bounds every remote HTTP call.
	HTTPTimeout time.Duration `env:"DREAMSYNC_HTTP_TIMEOUT"`

	// S3 settings for the binary object store (MinIO-compatible).
	S3BaseEndpoint string `env:"DREAMSYNC_S3_ENDPOINT"`
	S3Region       string `env:"DREAMSYNC_S3_REGION"`
	S3Bucket       string `env:"DREAMSYNC_S3_BUCKET"`
	S3AccessKey    string `env:"DREAMSYNC_S3_ACCESS_KEY"`
	S3SecretKey    string `env:"DREAMSYNC_S3_SECRET_KEY"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, _ := os.UserHomeDir()
	c.ServerURL = "http://127.0.0.1:8080"
	c.DatabasePath = filepath.Join(home, ".dreamsync", "dreams.db")
	c.CacheDir = filepath.Join(home, ".dreamsync", "cache")
	c.TokenFile = filepath.Join(home, ".dreamsync", "token")
	c.HTTPTimeout = 30 * time.Second
	c.S3Region = "us-east-1"
	c.S3Bucket = "dreams"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present), environment variables, and command-line flags.
func LoadConfig() *Config {
	_ = godotenv.Load()

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	_ = env.Parse(cfg)
	parseFlags(cfg)
	return cfg
}
