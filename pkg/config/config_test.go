package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, StorageDriverLocal, cfg.Storage.Driver)
	assert.Equal(t, 32, cfg.Folders.MaxDepth)
	assert.Equal(t, 10, cfg.Search.DefaultLimit)
	assert.Equal(t, 100, cfg.Search.MaxLimit)
	assert.Equal(t, 8, cfg.Outbox.MaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.Outbox.RetryDelay)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.JWT.Required)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("STORAGE_DRIVER", "GCS")
	v.Set("FOLDER_MAX_DEPTH", -1)
	v.Set("OUTBOX_RETRY_DELAY", "bogus")
	v.Set("ALLOWED_ORIGINS", " http://a.test , ,http://b.test")
	v.Set("PUBLIC_BASE_URL", "https://docs.example.com/")

	cfg := fromViper(v)

	assert.Equal(t, StorageDriverGCS, cfg.Storage.Driver)
	assert.Equal(t, 32, cfg.Folders.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.Outbox.RetryDelay)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, "https://docs.example.com", cfg.Storage.PublicBaseURL)
}
