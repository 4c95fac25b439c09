package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstRunWritesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "etc", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8080", cfg.Listen)
	assert.Equal(t, "outlook", cfg.Calendar.Provider)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, 10*time.Second, cfg.HostTimeout)

	st, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), st.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
listen: ":9000"
host_timeout: 3s
log:
  level: DEBUG
calendar:
  provider: ics
  ics:
    - url: https://cal.example.com/a.ics
export:
  format: XLSX
  encoding: cp1252
journal:
  backend: bogus
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, 3*time.Second, cfg.HostTimeout)
	assert.Equal(t, 5*time.Minute, cfg.ConfirmTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "ics", cfg.Calendar.Provider)
	require.Len(t, cfg.Calendar.ICS, 1)
	assert.Equal(t, "ics-1", cfg.Calendar.ICS[0].ID)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	assert.Equal(t, "windows-1252", cfg.Export.Encoding)
	assert.Equal(t, "memory", cfg.Journal.Backend)
	assert.False(t, cfg.BasicAuth.Enabled())
}

func TestEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: \":9000\"\n"), 0o600))

	t.Setenv("TIMEREPORT_LISTEN", ":7000")
	t.Setenv("TIMEREPORT_BASIC_AUTH_USERNAME", "admin")
	t.Setenv("TIMEREPORT_BASIC_AUTH_PASSWORD", "secret")
	t.Setenv("TIMEREPORT_JOURNAL_BACKEND", "redis")
	t.Setenv("TIMEREPORT_JOURNAL_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("TIMEREPORT_CONFIRM_TIMEOUT", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Listen)
	assert.True(t, cfg.BasicAuth.Enabled())
	assert.Equal(t, "secret", cfg.BasicAuth.Password)
	assert.Equal(t, "redis", cfg.Journal.Backend)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Journal.RedisURL)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [\n"), 0o600))
	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load("")
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Export.Schedule = "0 18 * * 5"
	cfg.Export.Mailbox = "jean.dupont@example.com"
	require.NoError(t, cfg.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	loc, err := back.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())
}
