package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "STORE_BACKEND", "ANON_LIMIT", "ANON_WINDOW", "JWT_TTL", "TRUST_PROXY_HEADERS"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, BackendSQL, cfg.StoreBackend)
	assert.Equal(t, 3, cfg.AnonLimit)
	assert.Equal(t, 24*time.Hour, cfg.AnonWindow)
	assert.Equal(t, 7*24*time.Hour, cfg.JWTTTL)
	assert.False(t, cfg.TrustProxyHeaders)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", BackendGorm)
	t.Setenv("ANON_LIMIT", "5")
	t.Setenv("ANON_WINDOW", "1h")
	t.Setenv("APP_ENV", "production")
	t.Setenv("TRUST_PROXY_HEADERS", "true")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, BackendGorm, cfg.StoreBackend)
	assert.Equal(t, 5, cfg.AnonLimit)
	assert.Equal(t, time.Hour, cfg.AnonWindow)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.TrustProxyHeaders)
}

func TestGetEnvInt_Invalid(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	assert.Equal(t, 7, getEnvInt("SOME_INT", 7))
}

func TestGetEnvBool_Invalid(t *testing.T) {
	t.Setenv("SOME_BOOL", "maybe")
	assert.True(t, getEnvBool("SOME_BOOL", true))
}
