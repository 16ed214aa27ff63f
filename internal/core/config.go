package core

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Config stores client settings.
type Config struct {
	Version int `json:"version"`
	// ServerURL is the forum base URL, e.g. "http://localhost:8080".
	ServerURL string `json:"server_url"`
	// SessionCookie is the value of the forum session cookie.
	SessionCookie string `json:"session_cookie,omitempty"`
	// StorePath overrides the default unread-store location.
	StorePath string `json:"store_path,omitempty"`
	LogFile   string `json:"log_file,omitempty"`
	LogLevel  string `json:"log_level,omitempty"`
	// DesktopNotify enables OS pop-ups for unread messages.
	DesktopNotify bool `json:"desktop_notify"`
}

func configPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".config", "rtf")
	return filepath.Join(configDir, "rtf-config.json"), nil
}

func ensureConfigDir() (string, error) {
	path, err := configPath()
	if err != nil {
		return "", err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

// ReadConfig reads the config file if present. Returns nil when absent.
func ReadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

// WriteConfig writes the config to disk, creating the directory if needed.
func WriteConfig(config Config) error {
	path, err := ensureConfigDir()
	if err != nil {
		return err
	}
	if config.Version == 0 {
		config.Version = 1
	}
	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

// DefaultStorePath returns the default location of the unread-count store.
func DefaultStorePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rtf", "unread.db"), nil
}

// DefaultLogPath returns the default log file location.
func DefaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rtf", "rtf.log"), nil
}
