package config_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ArcticLampyrid/aurmetad/config"
)

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]string{"--repo-url", "https://aur.example.org/foo.git"})
	require.NoError(t, err)
	require.Equal(t, "https://aur.example.org/foo.git", cfg.RepoURL)
	require.Equal(t, "aurmetad.db", cfg.DBPath)
	require.Equal(t, 10*1024*1024, cfg.DeltaCacheBytes)
}

func TestParseRequiresRepoURL(t *testing.T) {
	t.Parallel()

	_, err := config.Parse(nil)
	require.Error(t, err)
}

func TestParseRejectsNonPositiveCacheSize(t *testing.T) {
	t.Parallel()

	_, err := config.Parse([]string{"--repo-url", "https://aur.example.org/foo.git", "--delta-cache-bytes", "0"})
	require.Error(t, err)
}

func TestParseOverridesAuth(t *testing.T) {
	t.Parallel()

	cfg, err := config.Parse([]string{
		"--repo-url", "https://aur.example.org/foo.git",
		"--auth-user", "alice",
		"--auth-token", "secret",
		"--user-agent", "custom/1.0",
	})
	require.NoError(t, err)
	require.Equal(t, "alice", cfg.AuthUser)
	require.Equal(t, "secret", cfg.AuthToken)
	require.Equal(t, "custom/1.0", cfg.UserAgent)
}
