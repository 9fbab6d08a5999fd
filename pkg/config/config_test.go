package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aryan-cloud-arch/LOGGING-ALL-THE-CHATS/pkg/mirror"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	cfg, err := Parse([]byte(ExampleConfig))
	require.NoError(t, err)
	cfg.Source.APIID = 12345
	cfg.Source.APIHash = "0123456789abcdef"
	cfg.Source.PartnerUserID = 777
	cfg.Destination.GroupID = -1001234567890
	cfg.Destination.Self.Token = "111:self"
	cfg.Destination.Peer.Token = "222:peer"
	return cfg
}

func TestExampleConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte(ExampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", cfg.Database.Type)
	assert.Equal(t, "memory", cfg.Cache.Type)
	assert.True(t, cfg.Mirror.BackfillReplies)
	assert.Equal(t, mirror.RetryPolicy{Attempts: 3, InitialDelay: time.Second, MaxDelay: 30 * time.Second}, cfg.Mirror.Retry.Policy())
	assert.Equal(t, 500*time.Millisecond, cfg.CatchUp.ItemDelay)
	assert.Equal(t, 100, cfg.CatchUp.RecentLimit)
	assert.Equal(t, 24*time.Hour, cfg.Media.TempMaxAge)
	assert.Equal(t, "@hourly", cfg.Media.CleanupSchedule)
	assert.Equal(t, "Me", cfg.Destination.Self.DisplayName)
	assert.Equal(t, 24*time.Hour, cfg.Cache.Redis.TTL)
	require.NotNil(t, cfg.Logging.MinLevel)
}

func TestExampleConfigNeedsCredentials(t *testing.T) {
	cfg, err := Parse([]byte(ExampleConfig))
	require.NoError(t, err)

	var ce *mirror.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Contains(t, ce.Problems, "source.api_id must be set")
	assert.Contains(t, ce.Problems, "destination.group_id must be set")
	assert.Contains(t, ce.Problems, "destination.self.token must be set")
	assert.Contains(t, ce.Problems, "destination.peer.token must be set")
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidateRejectsSharedBot(t *testing.T) {
	cfg := validConfig(t)
	cfg.Destination.Peer.Token = cfg.Destination.Self.Token
	var ce *mirror.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Equal(t, []string{"destination.self and destination.peer must use different bots"}, ce.Problems)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := validConfig(t)
	cfg.Media.CleanupSchedule = "every tuesday"
	cfg.Database.Type = "mysql"
	cfg.Cache.Type = "redis"
	cfg.Cache.Redis.Addr = ""
	cfg.Mirror.Retry.Attempts = 0

	var ce *mirror.ConfigurationError
	require.ErrorAs(t, cfg.Validate(), &ce)
	assert.Len(t, ce.Problems, 4)
}

func TestEnvOverrides(t *testing.T) {
	cfg := validConfig(t)
	env := map[string]string{
		"DMMIRROR_API_ID":         "999",
		"DMMIRROR_SELF_BOT_TOKEN": " 333:override ",
		"DMMIRROR_GROUP_ID":       "-100555",
	}
	err := cfg.applyEnv(func(key string) (string, bool) {
		val, ok := env[key]
		return val, ok
	})
	require.NoError(t, err)
	assert.Equal(t, 999, cfg.Source.APIID)
	assert.Equal(t, "333:override", cfg.Destination.Self.Token)
	assert.Equal(t, int64(-100555), cfg.Destination.GroupID)
	assert.Equal(t, "222:peer", cfg.Destination.Peer.Token)

	err = cfg.applyEnv(func(key string) (string, bool) {
		return "abc", key == "DMMIRROR_PARTNER_USER_ID"
	})
	var ce *mirror.ConfigurationError
	assert.ErrorAs(t, err, &ce)
}

func TestLoadFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("source:\n    api_id: 42\ncatchup:\n    item_delay: 2s\n"), 0600))

	cfg, err := Load(path, false)
	require.NoError(t, err)
	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, 42, cfg.Source.APIID)
	assert.Equal(t, 2*time.Second, cfg.CatchUp.ItemDelay)
	assert.Equal(t, 100, cfg.CatchUp.RecentLimit)
	assert.Equal(t, "sqlite3", cfg.Database.Type)
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), false))
	assert.Error(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env"), true))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DMMIRROR_TEST_ONLY_VALUE=from-file\n"), 0600))
	require.NoError(t, LoadEnvFile(path, true))
	t.Cleanup(func() { _ = os.Unsetenv("DMMIRROR_TEST_ONLY_VALUE") })
	assert.Equal(t, "from-file", os.Getenv("DMMIRROR_TEST_ONLY_VALUE"))
}
