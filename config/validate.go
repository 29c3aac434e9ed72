// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/storage"
	"github.com/ogbo/walletcore/wallet"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" && cfg.Backend != storage.BackendMemory {
		return ErrEmptyDataDir
	}

	if !slices.Contains(storage.Backends, cfg.Backend) {
		return ErrInvalidBackend
	}

	if _, err := wallet.GetNetwork(cfg.Network); err != nil || cfg.Network == "" {
		return ErrInvalidNetwork
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	params, err := cfg.KDFParams()
	if err != nil {
		return err
	}
	if err := params.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKDF, err)
	}

	if cfg.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidLimit, cfg.Workers)
	}
	if cfg.MaxAttempts < 1 {
		return fmt.Errorf("%w: maxattempts %d", ErrInvalidLimit, cfg.MaxAttempts)
	}
	if cfg.Lockout <= 0 {
		return fmt.Errorf("%w: lockout %v", ErrInvalidLimit, cfg.Lockout)
	}

	return nil
}

// Lowest KDF costs accepted unless AllowWeakKDF is set.
const (
	MinScryptN      = 1 << 12
	MinArgon2Memory = 19 * 1024 // KiB
)

// KDFParams turns the kdf, scryptn and argon2memory settings into keystore
// parameters. A zero cost keeps the recommended value; a cost below
// MinScryptN or MinArgon2Memory is rejected unless AllowWeakKDF is set.
func (c Config) KDFParams() (keystore.KDFParams, error) {
	switch strings.ToLower(c.KDF) {
	case keystore.KDFScrypt:
		p := keystore.RecommendedScrypt
		if c.ScryptN != 0 {
			if c.ScryptN < MinScryptN && !c.AllowWeakKDF {
				return p, fmt.Errorf("%w: scryptn %d below %d (set allowweakkdf for development)", ErrInvalidKDF, c.ScryptN, MinScryptN)
			}
			p.CPUCost = c.ScryptN
		}
		return p, nil
	case keystore.KDFArgon2id:
		p := keystore.RecommendedArgon2id
		if c.Argon2Memory != 0 {
			if c.Argon2Memory < MinArgon2Memory && !c.AllowWeakKDF {
				return p, fmt.Errorf("%w: argon2memory %dKiB below %dKiB (set allowweakkdf for development)", ErrInvalidKDF, c.Argon2Memory, MinArgon2Memory)
			}
			p.MemoryCost = c.Argon2Memory
		}
		return p, nil
	}
	return keystore.KDFParams{}, fmt.Errorf("%w: unknown kdf %q", ErrInvalidKDF, c.KDF)
}
