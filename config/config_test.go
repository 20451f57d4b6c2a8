package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("SESSION_TTL", "30m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.AppPort)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "SESSION", cfg.SessionCookie)
	assert.Equal(t, int64(50<<20), cfg.MaxUploadBytes())
}

func TestValidate(t *testing.T) {
	base := AppConfig{SessionSecret: "s", SessionTTL: time.Hour, DBDriver: "mysql", StorageDriver: "local"}
	require.NoError(t, base.Validate())

	c := base
	c.SessionSecret = ""
	assert.Error(t, c.Validate())

	c = base
	c.DBDriver = "oracle"
	assert.Error(t, c.Validate())

	c = base
	c.StorageDriver = "s3"
	assert.Error(t, c.Validate())
	c.S3 = S3Config{Endpoint: "localhost:9000", Bucket: "files"}
	assert.NoError(t, c.Validate())
}
