// Package config loads bon's settings from viper and resolves its paths.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "bon"

// ExpandPath resolves a leading ~ to the home directory and then expands
// $VAR references. The path is returned unchanged when there is no home.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}

// ConfigDir is where config.yaml lives: $XDG_CONFIG_HOME/bon, else ~/.config/bon.
func ConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// DataDir holds the database: $XDG_DATA_HOME/bon, else ~/.local/share/bon.
func DataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); base != "" && filepath.IsAbs(base) {
		return filepath.Join(base, appDir)
	}
	return filepath.Join(ExpandPath("~"), fallback, appDir)
}
