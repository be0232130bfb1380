package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ROLE_SCHEME", "")
	t.Setenv("ADMIN_SLOTS", "")
	t.Setenv("AUTO_SESSION_ON_SIGNUP", "")
	t.Setenv("GUARD_CALL_TIMEOUT_MS", "")

	cfg := Load()

	assert.Equal(t, "tiered", cfg.RoleScheme)
	assert.Equal(t, 2, cfg.AdminSlots)
	assert.True(t, cfg.AutoSessionOnSignUp)
	assert.Equal(t, 3*time.Second, cfg.GuardCallTimeout)
	assert.Equal(t, 30*time.Minute, cfg.ResetTokenTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ROLE_SCHEME", "SIMPLE")
	t.Setenv("AUTO_SESSION_ON_SIGNUP", "false")
	t.Setenv("PUBLIC_BASE_URL", "https://library.example.com/")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg := Load()

	assert.Equal(t, "simple", cfg.RoleScheme)
	assert.False(t, cfg.AutoSessionOnSignUp)
	assert.Equal(t, "https://library.example.com", cfg.PublicBaseURL)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}

func TestGetEnvBoolFallsBackOnGarbage(t *testing.T) {
	t.Setenv("LIBRIS_TEST_BOOL", "maybe")
	assert.True(t, getEnvBool("LIBRIS_TEST_BOOL", true))
}
