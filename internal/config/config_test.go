package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", cfg.ServerURL)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.NotEmpty(t, cfg.CacheDir)
	assert.NotEmpty(t, cfg.TokenFile)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "us-east-1", cfg.S3Region)
	assert.Equal(t, "dreams", cfg.S3Bucket)
}

func TestEnvOverridesDefaults(t *testing.T) {
	t.Setenv("DREAMSYNC_SERVER_URL", "https://api.dreams.example")
	t.Setenv("DREAMSYNC_DB_PATH", "/tmp/dreams.db")
	t.Setenv("DREAMSYNC_HTTP_TIMEOUT", "5s")

	cfg := LoadConfig()

	assert.Equal(t, "https://api.dreams.example", cfg.ServerURL)
	assert.Equal(t, "/tmp/dreams.db", cfg.DatabasePath)
	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
}
