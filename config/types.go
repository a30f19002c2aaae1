package config

import "time"

// Config is the complete configuration structure.
type Config struct {
	Auth    AuthConfig    `mapstructure:"auth"`
	Client  ClientConfig  `mapstructure:"client"`
	Network NetworkConfig `mapstructure:"network"`
	Filters FilterConfig  `mapstructure:"filters"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// AuthConfig carries the server address and tokens. A direct connection
// needs ServerBaseURL (plus ServerToken for claimed servers); discovery
// through plex.tv needs MyPlexToken.
type AuthConfig struct {
	ServerBaseURL string `mapstructure:"server_base_url"`
	ServerToken   string `mapstructure:"server_token"`
	MyPlexToken   string `mapstructure:"myplex_token"`
}

// ClientConfig shapes the X-Plex identity headers sessions send.
type ClientConfig struct {
	Product    string `mapstructure:"product"`
	Version    string `mapstructure:"version"`
	Identifier string `mapstructure:"identifier"`
	DeviceName string `mapstructure:"device_name"`
}

// NetworkConfig bounds request behavior.
type NetworkConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	ContainerSize int           `mapstructure:"container_size"`
}

// FilterConfig maps preset names to filter expressions.
type FilterConfig map[string]string

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
