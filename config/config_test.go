package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goplex.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, `auth:
  server_base_url: http://192.168.1.10:32400
  server_token: abc
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://192.168.1.10:32400", cfg.Auth.ServerBaseURL)
	assert.Equal(t, "abc", cfg.Auth.ServerToken)
	assert.Equal(t, "goplex", cfg.Client.Product)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 100, cfg.Network.ContainerSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.True(t, cfg.Logging.Color)
	assert.Empty(t, cfg.Filters)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfigFile(t, `auth:
  server_base_url: https://plex.example.com:32400
  server_token: abc
  myplex_token: def
client:
  product: media-janitor
  version: 2.1.0
  identifier: janitor-01
  device_name: cron-box
network:
  timeout: 15s
  container_size: 200
filters:
  stale: "ViewCount == 0 && daysSince(AddedAt) > 180"
  watched: "ViewCount > 0"
logging:
  level: debug
  format: json
  color: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "def", cfg.Auth.MyPlexToken)
	assert.Equal(t, "media-janitor", cfg.Client.Product)
	assert.Equal(t, "2.1.0", cfg.Client.Version)
	assert.Equal(t, "janitor-01", cfg.Client.Identifier)
	assert.Equal(t, "cron-box", cfg.Client.DeviceName)
	assert.Equal(t, 15*time.Second, cfg.Network.Timeout)
	assert.Equal(t, 200, cfg.Network.ContainerSize)
	assert.Len(t, cfg.Filters, 2)
	assert.Contains(t, cfg.Filters["stale"], "daysSince")
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Logging.Color)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("GOPLEX_AUTH_SERVER_TOKEN", "env-token")
	t.Setenv("GOPLEX_NETWORK_CONTAINER_SIZE", "50")
	t.Setenv("GOPLEX_LOGGING_LEVEL", "warn")

	path := writeConfigFile(t, `auth:
  server_base_url: http://192.168.1.10:32400
  server_token: file-token
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Auth.ServerToken)
	assert.Equal(t, 50, cfg.Network.ContainerSize)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithoutFile(t *testing.T) {
	// An empty home and working directory leave only the environment.
	t.Setenv("HOME", t.TempDir())
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Setenv("PWD", dir)
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("GOPLEX_AUTH_SERVER_BASE_URL", "http://10.0.0.2:32400")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:32400", cfg.Auth.ServerBaseURL)
	assert.Equal(t, 30*time.Second, cfg.Network.Timeout)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Auth:    AuthConfig{ServerBaseURL: "http://localhost:32400", ServerToken: "abc"},
			Network: NetworkConfig{Timeout: 30 * time.Second, ContainerSize: 100},
			Logging: LoggingConfig{Level: "info", Format: "console"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:   "myplex token alone is enough",
			mutate: func(c *Config) { c.Auth.ServerBaseURL = ""; c.Auth.MyPlexToken = "tok" },
		},
		{
			name:    "no server and no myplex token",
			mutate:  func(c *Config) { c.Auth.ServerBaseURL = "" },
			wantErr: "auth.server_base_url or auth.myplex_token",
		},
		{
			name:    "bad base URL scheme",
			mutate:  func(c *Config) { c.Auth.ServerBaseURL = "ftp://nas:32400" },
			wantErr: "http(s)",
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.Network.Timeout = 0 },
			wantErr: "network.timeout",
		},
		{
			name:    "negative container size",
			mutate:  func(c *Config) { c.Network.ContainerSize = -1 },
			wantErr: "container_size",
		},
		{
			name:    "bad logging level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging level",
		},
		{
			name:    "bad logging format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "logging format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	tests := []struct {
		name string
		cfg  LoggingConfig
	}{
		{name: "json", cfg: LoggingConfig{Level: "debug", Format: "json"}},
		{name: "console", cfg: LoggingConfig{Level: "info", Format: "console", Color: true}},
		{name: "unknown level falls back to info", cfg: LoggingConfig{Level: "loud", Format: "json"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := SetupLogger(tt.cfg)
			// Logging must not panic regardless of output format.
			logger.Debug().Str("k", "v").Msg("probe")
		})
	}
}
