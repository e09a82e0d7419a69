package cli

import (
	"os"
	"path/filepath"

	"github.com/ubbuilder/ubb/pkg/config"
)

// Config holds the global CLI flags
type Config struct {
	ConfigFile string
	Verbosity  string
	LogFile    string
	Version    string
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		Verbosity: "info",
	}
}

// settingsPath returns the settings file in use, or "" when running on
// defaults. Viper searches the working directory for these extensions.
func (c *Config) settingsPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	for _, ext := range []string{"yaml", "yml", "json", "toml"} {
		path := filepath.Join(".", config.DefaultFileName+"."+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
