// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads walletctl settings from a key=value file in the data
// directory, with WALLETCORE_* environment variables taking precedence.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/storage"
	"github.com/ogbo/walletcore/wallet"
)

// EnvPrefix prefixes every environment override, e.g. WALLETCORE_NETWORK.
const EnvPrefix = "walletcore"

// Config holds walletctl settings.
type Config struct {
	DataDir      string        `envconfig:"DATADIR"`
	Backend      string        `envconfig:"BACKEND"`
	Network      string        `envconfig:"NETWORK"`
	LogLevel     string        `envconfig:"LOGLEVEL"`
	KDF          string        `envconfig:"KDF"`
	ScryptN      uint32        `envconfig:"SCRYPTN"`
	Argon2Memory uint32        `envconfig:"ARGON2MEMORY"` // KiB
	AllowWeakKDF bool          `envconfig:"ALLOWWEAKKDF"` // development only
	Workers      int           `envconfig:"WORKERS"`      // 0 = pick from CPU count
	MaxAttempts  int           `envconfig:"MAXATTEMPTS"`
	Lockout      time.Duration `envconfig:"LOCKOUT"`
}

// DefaultDataDir returns ~/.walletcore, or .walletcore in the working
// directory when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".walletcore"
	}
	return filepath.Join(home, ".walletcore")
}

// ConfigPath returns the config file location inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DataDir:     DefaultDataDir(),
		Backend:     storage.BackendBolt,
		Network:     wallet.DefaultNetwork,
		LogLevel:    "info",
		KDF:         keystore.KDFScrypt,
		MaxAttempts: 5,
		Lockout:     60 * time.Second,
	}
}

// LoadConfig reads path on top of DefaultConfig. Blank lines and lines
// starting with '#' are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with any WALLETCORE_* variables that are set.
func ApplyEnv(cfg *Config) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}

// Load reads the config file in dataDir if there is one, applies the
// environment and validates the result.
func Load(dataDir string) (Config, error) {
	cfg, err := LoadConfig(ConfigPath(dataDir))
	if err != nil && !errors.Is(err, ErrConfigNotFound) {
		return cfg, err
	}
	if cfg.DataDir == DefaultDataDir() {
		cfg.DataDir = dataDir
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes cfg to path, creating parent directories.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# walletcore configuration\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "backend = %s\n", cfg.Backend)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "kdf = %s\n", cfg.KDF)
	fmt.Fprintf(&b, "scryptn = %d\n", cfg.ScryptN)
	fmt.Fprintf(&b, "argon2memory = %d\n", cfg.Argon2Memory)
	fmt.Fprintf(&b, "allowweakkdf = %t\n", cfg.AllowWeakKDF)
	fmt.Fprintf(&b, "workers = %d\n", cfg.Workers)
	fmt.Fprintf(&b, "maxattempts = %d\n", cfg.MaxAttempts)
	fmt.Fprintf(&b, "lockout = %s\n", cfg.Lockout)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}
	return nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "backend":
		c.Backend = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "kdf":
		c.KDF = value
	case "scryptn":
		c.ScryptN, err = parseUint32(value)
	case "argon2memory":
		c.Argon2Memory, err = parseUint32(value)
	case "allowweakkdf":
		c.AllowWeakKDF, err = strconv.ParseBool(value)
	case "workers":
		c.Workers, err = strconv.Atoi(value)
	case "maxattempts":
		c.MaxAttempts, err = strconv.Atoi(value)
	case "lockout":
		c.Lockout, err = time.ParseDuration(value)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

func parseUint32(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	return uint32(v), err
}
