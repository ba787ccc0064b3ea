package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsRetentionWindows(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"host":"discord.com","cdn_host":"cdn.discordapp.com","token":"a"},
		"spacebar": {"host":"spacebar.example","cdn_host":"cdn.spacebar.example","token":"b"},
		"bridges": [{"discord_channel_id":"1","spacebar_channel_id":"2"}],
		"database": {"dir_path":"/tmp/bridge"}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Database.PairLifetimeDays)
	assert.Equal(t, 7, cfg.Database.CleanupDays)
}

func TestLoadRejectsCleanupNotLessThanLifetime(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"token":"a"},
		"spacebar": {"token":"b"},
		"bridges": [{"discord_channel_id":"1","spacebar_channel_id":"2"}],
		"database": {"dir_path":"/tmp/bridge", "cleanup_days": 30, "pair_lifetime_days": 30}
	}`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "cleanup_days")
}

func TestLoadRequiresAtLeastOneBridge(t *testing.T) {
	path := writeConfig(t, `{
		"discord": {"token":"a"},
		"spacebar": {"token":"b"},
		"bridges": [],
		"database": {"dir_path":"/tmp/bridge"}
	}`)

	_, err := Load(path)
	assert.ErrorContains(t, err, "bridges")
}

func TestPairID(t *testing.T) {
	assert.Equal(t, "pair_100_200", PairID("100", "200"))
}
