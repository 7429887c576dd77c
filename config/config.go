// Package config loads the control room's YAML configuration: the listen
// address, default sampling parameters, the history window and the catalog of
// preconfigured tool servers started at boot.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"controlroom/backend"
)

// ToolServer describes a preconfigured tool server launched at startup.
type ToolServer struct {
	Name        string   `yaml:"name"`
	Command     []string `yaml:"command"`
	Description string   `yaml:"description,omitempty"`
	AutoStart   bool     `yaml:"auto_start,omitempty"`
}

// Config is the full file configuration.
type Config struct {
	// Listen is the HTTP listen address.
	Listen string `yaml:"listen"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// LogFormat is json or text.
	LogFormat string `yaml:"log_format,omitempty"`

	// HistoryWindow bounds how many messages are replayed as model context;
	// zero replays the full history.
	HistoryWindow int `yaml:"history_window,omitempty"`

	// Sampling holds the default generation parameters applied when a
	// request specifies none.
	Sampling backend.SamplingParams `yaml:"sampling,omitempty"`

	// ToolServers is the catalog of preconfigured tool servers.
	ToolServers []ToolServer `yaml:"tool_servers,omitempty"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Listen:    ":8000",
		LogLevel:  "info",
		LogFormat: "json",
		Sampling:  backend.SamplingParams{Temperature: 0.7},
		ToolServers: []ToolServer{
			{
				Name:        "filesystem",
				Command:     []string{"npx", "-y", "@modelcontextprotocol/server-filesystem", "/tmp"},
				Description: "Access filesystem operations",
			},
			{
				Name:        "brave_search",
				Command:     []string{"npx", "-y", "@modelcontextprotocol/server-brave-search"},
				Description: "Web search via Brave Search API",
			},
			{
				Name:        "github",
				Command:     []string{"npx", "-y", "@modelcontextprotocol/server-github"},
				Description: "GitHub repository operations",
			},
		},
	}
}

// Load reads a YAML config file, layering it over Default. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8000"
	}
	return cfg, nil
}
