package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"SERVER_PORT", "MAX_DB_CONNS", "BLUR_GRACE_MS", "ALLOWED_ORIGINS", "MAX_UPLOAD_SIZE_MB"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, int32(16), cfg.MaxDBConns)
	assert.Equal(t, 2*time.Second, cfg.BlurGrace)
	assert.Equal(t, int64(2<<20), cfg.MaxUploadBytes)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXTENSION_POLL_SECONDS", "5")
	t.Setenv("MAX_DB_CONNS", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.ExtensionPollInterval)
	assert.Equal(t, int32(16), cfg.MaxDBConns)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}
