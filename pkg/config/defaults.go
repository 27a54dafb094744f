package config

import (
	"os"
	"path/filepath"
)

// OpenCode keeps its data under $XDG_DATA_HOME/opencode/storage.
func opencodeStorage() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "opencode", "storage")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "opencode", "storage")
	}

	return filepath.Join(homeDir, ".local", "share", "opencode", "storage")
}

// defaultMessagesDir returns the OpenCode message storage directory.
//
// Returns: ~/.local/share/opencode/storage/message.
func defaultMessagesDir() string {
	return filepath.Join(opencodeStorage(), "message")
}

// defaultSessionInfoDir returns the OpenCode session info directory.
//
// Returns: ~/.local/share/opencode/storage/session/info.
func defaultSessionInfoDir() string {
	return filepath.Join(opencodeStorage(), "session", "info")
}

// configDir returns ~/.config/session-monitor.
func configDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "session-monitor")
}

// defaultDBPath returns the default snapshot database path.
//
// Returns: ~/.config/session-monitor/cache.db.
func defaultDBPath() string {
	return filepath.Join(configDir(), "cache.db")
}

// defaultPricingFile returns the default user pricing overlay.
//
// Returns: ~/.config/session-monitor/models.json.
func defaultPricingFile() string {
	return filepath.Join(configDir(), "models.json")
}

// DefaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/session-monitor/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir(), "config.yaml")
}
