// Package certman manages a local certificate authority and its leaf
// certificates on disk, delegating all cryptographic work to the openssl
// command line tool. It creates and reuses CA key/certificate pairs, issues
// and signs certificate requests, bundles keys with their certificates, and
// keeps the key store's ownership and permissions consistent.
//
// The package never overwrites existing private keys unless explicitly
// forced, and every toolkit invocation runs through a single subprocess
// choke point with a restricted environment and a hard wall-clock timeout.
package certman

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Built-in defaults for the hosting environment.
const (
	DefaultKeyStoreDir    = "/var/lib/certman/keys"
	DefaultServiceAccount = "asterisk"
	DefaultToolBinary     = "openssl"
	DefaultTimeoutSeconds = 120
)

// Config carries the hosting application's settings. It is constructed once
// at startup and passed by reference into every component; there is no
// hidden global state.
type Config struct {
	// KeyStoreDir is the directory holding all key material.
	KeyStoreDir string `yaml:"keyStoreDir"`
	// ServiceAccount is the system account that must own the key store.
	ServiceAccount string `yaml:"serviceAccount"`
	// ToolBinary is the openssl executable, resolved through PATH when not
	// absolute.
	ToolBinary string `yaml:"toolBinary"`
	// TimeoutSeconds bounds each toolkit invocation. Slower hosts need a
	// larger value.
	TimeoutSeconds int `yaml:"timeoutSeconds"`
}

// DefaultConfig returns a Config populated with the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		KeyStoreDir:    DefaultKeyStoreDir,
		ServiceAccount: DefaultServiceAccount,
		ToolBinary:     DefaultToolBinary,
		TimeoutSeconds: DefaultTimeoutSeconds,
	}
}

// LoadConfig reads a YAML configuration file over the built-in defaults.
// Fields left unset in the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Timeout returns the subprocess timeout as a duration.
func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// fileExists reports whether path names an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
