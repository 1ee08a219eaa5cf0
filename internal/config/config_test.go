package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	cfg := Load()
	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, ScopeOrganization, cfg.VelocityScope)
	assert.Equal(t, 3, cfg.QueueMaxAttempts)
	assert.Equal(t, 6334, cfg.QdrantPort)
	assert.Equal(t, 1536, cfg.OpenAIEmbeddingDim)
	assert.Equal(t, "0 9 * * MON-FRI", cfg.SweepCron)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("VELOCITY_SCOPE", " Global ")
	t.Setenv("WORKERS", "9")
	t.Setenv("OPENAI_TIMEOUT", "3s")
	t.Setenv("QDRANT_USE_TLS", "true")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("OPENAI_EMBEDDING_DIM", "3072")

	cfg := Load()
	assert.Equal(t, ScopeGlobal, cfg.VelocityScope)
	assert.Equal(t, 9, cfg.Workers)
	assert.Equal(t, 3*time.Second, cfg.OpenAITimeout)
	assert.True(t, cfg.QdrantUseTLS)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.Equal(t, 3072, cfg.OpenAIEmbeddingDim)
}

func TestLoad_UnknownScopeFallsBack(t *testing.T) {
	t.Setenv("APP_TZ", "UTC")
	t.Setenv("VELOCITY_SCOPE", "tenant")
	assert.Equal(t, ScopeOrganization, Load().VelocityScope)
}
