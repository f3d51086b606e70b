package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromINIOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.ini")
	contents := `
[general]
listen_host = 127.0.0.1
listen_port = 9090
auth_username = scanner
auth_password = hunter2
cooldown = 12
cooldown_reuse = 1.5
encounter_limit = 5000
device_max_logins_per_hour = 6
account_max_logins_per_hour = 6
disable_iv_purpose = true

[database]
host = db.internal
port = 3307
user = broker_user
pass = secret
db = accounts
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))

	s, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", s.ListenHost)
	assert.Equal(t, 9090, s.ListenPort)
	assert.Equal(t, "scanner", s.AuthUsername)
	assert.Equal(t, "hunter2", s.AuthPassword)
	assert.Equal(t, 12.0, s.CooldownHours)
	assert.Equal(t, 1.5, s.CooldownReuseHours)
	assert.Equal(t, 5000, s.EncounterLimit)
	assert.True(t, s.DisableIVPurpose)
	assert.Equal(t, "db.internal", s.DBHost)
	assert.Equal(t, 3307, s.DBPort)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "does-not-exist.ini"))
	require.NoError(t, err)
	assert.Equal(t, Default().ListenPort, s.ListenPort)
}

func TestDerivedValues(t *testing.T) {
	s := Default()
	s.CooldownHours = 24
	s.CooldownReuseHours = 3

	assert.Equal(t, int64(24*3600), s.CooldownSeconds())
	assert.Equal(t, int64(3*3600), s.ShortCooldownSeconds())
	assert.Contains(t, s.DSN(), "@tcp(localhost:3306)/accountbroker")
}
