// Package config provides configuration management for NC Connect.
// It handles loading, saving, and guarding the user's settings.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yllada/ncconnect/common"
)

// Config represents the application configuration.
// All settings are persisted to a YAML file in the user's config directory.
type Config struct {
	// Host is the VPN portal host name, or a full base URL.
	Host string `yaml:"host"`
	// Username is the last username used to sign in.
	Username string `yaml:"username,omitempty"`
	// RememberPassword keeps the portal password in the keyring.
	RememberPassword bool `yaml:"remember_password"`
	// ShowNotifications enables desktop notifications for tray messages.
	ShowNotifications bool `yaml:"show_notifications"`
	// ServiceBinary is the path of the ncsvc helper.
	ServiceBinary string `yaml:"service_binary"`
	// UIBinary is the path of the ncui helper.
	UIBinary string `yaml:"ui_binary"`
	// CertFile is the portal certificate handed to ncui.
	CertFile string `yaml:"cert_file,omitempty"`
}

// Environment overrides read after the env file is loaded.
const (
	EnvHost          = "NCCONNECT_HOST"
	EnvServiceBinary = "NCCONNECT_NCSVC"
	EnvUIBinary      = "NCCONNECT_NCUI"
	EnvCertFile      = "NCCONNECT_CERT"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	helperDir := ""
	if home, err := os.UserHomeDir(); err == nil {
		helperDir = filepath.Join(home, ".juniper_networks", "network_connect")
	}
	return &Config{
		ShowNotifications: true,
		ServiceBinary:     filepath.Join(helperDir, "ncsvc"),
		UIBinary:          filepath.Join(helperDir, "ncui"),
	}
}

// validate fills in defaults for empty helper paths.
func (c *Config) validate() error {
	def := DefaultConfig()
	if c.ServiceBinary == "" {
		c.ServiceBinary = def.ServiceBinary
	}
	if c.UIBinary == "" {
		c.UIBinary = def.UIBinary
	}
	return nil
}

// applyEnv overrides values from the process environment.
func (c *Config) applyEnv() {
	if v := os.Getenv(EnvHost); v != "" {
		c.Host = v
	}
	if v := os.Getenv(EnvServiceBinary); v != "" {
		c.ServiceBinary = v
	}
	if v := os.Getenv(EnvUIBinary); v != "" {
		c.UIBinary = v
	}
	if v := os.Getenv(EnvCertFile); v != "" {
		c.CertFile = v
	}
}

// Store owns the settings and their file. It is safe for concurrent use:
// dialogs edit it on the UI thread while the orchestrator saves it.
type Store struct {
	mu   sync.RWMutex
	path string
	cfg  *Config
}

// DefaultPath returns ~/.config/ncconnect/config.yaml.
func DefaultPath() (string, error) {
	dir, err := common.GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, common.ConfigFileName), nil
}

// NewStore creates a store for path holding the default configuration.
func NewStore(path string) *Store {
	return &Store{path: path, cfg: DefaultConfig()}
}

// Open loads the configuration at path. The optional env file next to it
// is loaded first so its values can override the file.
// If the file doesn't exist, it is created with default values.
func Open(path string) (*Store, error) {
	s := NewStore(path)

	envPath := filepath.Join(filepath.Dir(path), common.EnvFileName)
	if common.FileExists(envPath) {
		if err := godotenv.Load(envPath); err != nil {
			common.LogWarn("Config: could not load %s: %v", envPath, err)
		}
	}

	if err := s.Load(); err != nil {
		return s, err
	}
	return s, nil
}

// Load reads the configuration file into the store.
func (s *Store) Load() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		s.mu.Lock()
		s.cfg = DefaultConfig()
		s.cfg.applyEnv()
		s.mu.Unlock()
		return s.Save()
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigLoad, err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)

	var cfg Config
	if err := decoder.Decode(&cfg); err != nil {
		return fmt.Errorf("%w: error parsing configuration: %v", common.ErrConfigLoad, err)
	}

	if err := cfg.validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg.applyEnv()

	s.mu.Lock()
	s.cfg = &cfg
	s.mu.Unlock()
	return nil
}

// Save writes the configuration to its file.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.cfg)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: error serializing configuration: %v", common.ErrConfigSave, err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("%w: error creating config directory: %v", common.ErrConfigSave, err)
	}

	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", common.ErrConfigSave, err)
	}

	return nil
}

// Snapshot returns a copy of the current configuration.
func (s *Store) Snapshot() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return *s.cfg
}

// Update applies fn to the configuration under the write lock. It does not
// persist; the orchestrator saves when the settings dialog reports an update.
func (s *Store) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.cfg)
}

// Host returns the configured portal host.
func (s *Store) Host() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Host
}

// Username returns the remembered username.
func (s *Store) Username() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Username
}

// RememberPassword reports the password recall policy.
func (s *Store) RememberPassword() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.RememberPassword
}

// RememberLogin records the username of a sign-in attempt and saves if it
// changed.
func (s *Store) RememberLogin(username string) error {
	s.mu.Lock()
	changed := s.cfg.Username != username
	s.cfg.Username = username
	s.mu.Unlock()

	if !changed {
		return nil
	}
	return s.Save()
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}
