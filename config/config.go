package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from a file with environment overrides. An
// explicit path must exist; an empty path searches ./goplex.yaml and
// ~/.config/goplex/goplex.yaml and tolerates finding nothing, since every
// key can also arrive through GOPLEX_* variables (GOPLEX_AUTH_SERVER_TOKEN
// overrides auth.server_token).
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("GOPLEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("goplex")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "goplex"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every known key. Keys without a meaningful default
// get an empty one so environment overrides reach them.
func setDefaults(v *viper.Viper) {
	// Auth defaults
	v.SetDefault("auth.server_base_url", "")
	v.SetDefault("auth.server_token", "")
	v.SetDefault("auth.myplex_token", "")

	// Client identity defaults
	v.SetDefault("client.product", "goplex")
	v.SetDefault("client.version", "")
	v.SetDefault("client.identifier", "")
	v.SetDefault("client.device_name", "")

	// Network defaults
	v.SetDefault("network.timeout", 30*time.Second)
	v.SetDefault("network.container_size", 100)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Auth.ServerBaseURL == "" && cfg.Auth.MyPlexToken == "" {
		return fmt.Errorf("either auth.server_base_url or auth.myplex_token is required")
	}

	if cfg.Auth.ServerBaseURL != "" {
		u, err := url.Parse(cfg.Auth.ServerBaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return fmt.Errorf("auth.server_base_url must be an http(s) URL, got %q", cfg.Auth.ServerBaseURL)
		}
	}

	if cfg.Network.Timeout <= 0 {
		return fmt.Errorf("network.timeout must be positive")
	}
	if cfg.Network.ContainerSize < 0 {
		return fmt.Errorf("network.container_size cannot be negative")
	}

	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
