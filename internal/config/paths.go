package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "meteofetch"

func ConfigDir() string {
	if v := os.Getenv("METEOFETCH_CONFIG_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.ConfigHome, appName)
}

func DataDir() string {
	if v := os.Getenv("METEOFETCH_DATA_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.DataHome, appName)
}

func CacheDir() string {
	if v := os.Getenv("METEOFETCH_CACHE_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.CacheHome, appName)
}

func ConfigFile() string     { return filepath.Join(ConfigDir(), "config.toml") }
func CredentialsDir() string { return filepath.Join(ConfigDir(), "credentials") }
func EnvFile() string        { return filepath.Join(ConfigDir(), ".env") }
func LocationsFile() string  { return filepath.Join(ConfigDir(), "locations.yaml") }
func UsageFile() string      { return filepath.Join(DataDir(), "usage.json") }
