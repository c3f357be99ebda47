package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadEmptyFileUsesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, "https://bnoc.xyz", cfg.Source.BaseURL)
	require.Equal(t, 24*time.Hour, cfg.Source.Lookback)
	require.Equal(t, []string{
		"wss://relay.damus.io",
		"wss://relay.primal.net",
		"wss://nos.lol",
		"wss://relay.bitcoindistrict.org",
	}, cfg.Publish.Relays)
	require.Equal(t, 1, cfg.Publish.MinAcks)
	require.Equal(t, 3, cfg.Publish.Retry.MaxAttempts)
	require.Equal(t, time.Second, cfg.Publish.Retry.InitialBackoff)
	require.Equal(t, "BNOC Daily Summary", cfg.Report.Heading)
	require.Equal(t, "nstr_report.key", cfg.Identity.KeyFile)
	require.Equal(t, "nstr_report.db", cfg.Storage.Path)
	require.Equal(t, 24*time.Hour, cfg.Schedule.Interval)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
log_level: debug
source:
  base_url: https://forum.example.org
  lookback: 6h
publish:
  relays:
    - wss://relay-a.example.org
    - wss://relay-b.example.org
  min_acks: 2
  deadline: 45s
`))
	require.NoError(t, err)

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, "https://forum.example.org", cfg.Source.BaseURL)
	require.Equal(t, 6*time.Hour, cfg.Source.Lookback)
	require.Equal(t, []string{"wss://relay-a.example.org", "wss://relay-b.example.org"}, cfg.Publish.Relays)
	require.Equal(t, 2, cfg.Publish.MinAcks)
	require.Equal(t, 45*time.Second, cfg.Publish.Deadline)

	// Untouched sections still get defaults.
	require.Equal(t, "https://forum.example.org", cfg.Report.SourceURL)
	require.Equal(t, 10*time.Second, cfg.Publish.AckTimeout)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("NSTR_TEST_API_KEY", "sk-from-env")

	cfg, err := Load(writeConfig(t, `
summarizer:
  enabled: true
  api_key: ${NSTR_TEST_API_KEY}
`))
	require.NoError(t, err)
	require.Equal(t, "sk-from-env", cfg.Summarizer.APIKey)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(writeConfig(t, "relays:\n  - wss://relay.example.org\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not found in type")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "read config file")
}

func TestValidateQuorumBounds(t *testing.T) {
	_, err := Load(writeConfig(t, `
publish:
  relays:
    - wss://relay-a.example.org
  min_acks: 3
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "min_acks 3 exceeds relay count 1")
}

func TestValidateRelayScheme(t *testing.T) {
	_, err := Load(writeConfig(t, `
publish:
  relays:
    - https://relay-a.example.org
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "ws:// or wss://")
}

func TestValidateSummarizerNeedsKey(t *testing.T) {
	_, err := Load(writeConfig(t, "summarizer:\n  enabled: true\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "api_key required")
}
