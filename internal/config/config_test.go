package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "https://shiftheroes.fr", cfg.ShiftHeroesURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Second, cfg.StartupDeadline)
	assert.Equal(t, time.Minute, cfg.RaceDeadline)
	assert.Empty(t, cfg.TokenCipherKey)
}

func TestFromEnvOverridesAndKeys(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	t.Setenv("TOKEN_CIPHER_KEY", base64.StdEncoding.EncodeToString(key))
	t.Setenv("RACE_DEADLINE_SECONDS", "120")
	t.Setenv("SHIFTHEROES_URL", "http://localhost:9999")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, key, cfg.TokenCipherKey)
	assert.Equal(t, 2*time.Minute, cfg.RaceDeadline)
	assert.Equal(t, "http://localhost:9999", cfg.ShiftHeroesURL)
	assert.NoError(t, cfg.RequireCipherKey())
}

func TestFromEnvKeyFromFile(t *testing.T) {
	key := base64.StdEncoding.EncodeToString([]byte("0123456789abcdef"))
	path := filepath.Join(t.TempDir(), "cipher.key")
	require.NoError(t, os.WriteFile(path, []byte(key+"\n"), 0o600))
	t.Setenv("TOKEN_CIPHER_KEY", path)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), cfg.TokenCipherKey)
}

func TestFromEnvRejectsBadSeconds(t *testing.T) {
	t.Setenv("POLL_SECONDS", "soon")
	_, err := FromEnv()
	assert.Error(t, err)
}

func TestRequireHelpers(t *testing.T) {
	var c Config
	assert.Error(t, c.RequireWebKeys())
	assert.Error(t, c.RequireCipherKey())

	c.CookieHashKey = make([]byte, 32)
	c.CookieBlockKey = make([]byte, 32)
	assert.NoError(t, c.RequireWebKeys())

	c.TokenCipherKey = make([]byte, 20)
	assert.Error(t, c.RequireCipherKey())
	c.TokenCipherKey = make([]byte, 24)
	assert.NoError(t, c.RequireCipherKey())
}
