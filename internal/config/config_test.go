// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, env expansion, duration parsing, and validation

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Minimal(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/handoff.db"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "/tmp/handoff.db", cfg.Database.Path)

	// Defaults
	assert.Equal(t, 60, cfg.Handoff.ResponseTimeoutSeconds)
	assert.Equal(t, 2.0, cfg.Handoff.RedirectTimeoutMultiplier)
	assert.Equal(t, 24*time.Hour, cfg.Handoff.InactivityTimeout)
	assert.NotEmpty(t, cfg.Handoff.WaitingMessage)
	assert.NotEmpty(t, cfg.Handoff.TransferMessage)
	assert.NotEmpty(t, cfg.Handoff.TriggerPhrases)
	assert.Equal(t, 60*time.Second, cfg.Handoff.ResponseTimeout())
}

func TestLoad_FullHandoffSection(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/handoff.db"
handoff:
  response_timeout_seconds: 30
  redirect_timeout_multiplier: 3
  waiting_message: "un momento"
  trigger_phrases:
    - "hablar con humano"
  inactivity_timeout: "12h"
  sweep_schedule: "*/5 * * * *"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30, cfg.Handoff.ResponseTimeoutSeconds)
	assert.Equal(t, 3.0, cfg.Handoff.RedirectTimeoutMultiplier)
	assert.Equal(t, "un momento", cfg.Handoff.WaitingMessage)
	assert.Equal(t, []string{"hablar con humano"}, cfg.Handoff.TriggerPhrases)
	assert.Equal(t, 12*time.Hour, cfg.Handoff.InactivityTimeout)
	assert.Equal(t, "*/5 * * * *", cfg.Handoff.SweepSchedule)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("HANDOFF_TEST_DB", "/tmp/expanded.db")

	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "${HANDOFF_TEST_DB}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/expanded.db", cfg.Database.Path)
}

func TestLoad_MissingHTTPAddr(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/handoff.db"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http_addr")
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database.path")
}

func TestLoad_BadInactivityTimeout(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/handoff.db"
handoff:
  inactivity_timeout: "not-a-duration"
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inactivity_timeout")
}

func TestLoad_TelegramRequiresToken(t *testing.T) {
	path := writeConfig(t, `
server:
  http_addr: ":8080"
database:
  path: "/tmp/handoff.db"
telegram:
  enabled: true
`)

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram.token")
}
