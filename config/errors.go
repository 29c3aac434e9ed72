// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"ethereum\", \"bsc\", or \"polygon\")")

	// ErrInvalidBackend indicates the storage backend name is not recognized.
	ErrInvalidBackend = errors.New("config: invalid backend (must be \"memory\", \"file\", \"bolt\", or \"leveldb\")")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrInvalidKDF indicates the KDF name or its cost parameters are unusable.
	ErrInvalidKDF = errors.New("config: invalid kdf settings")

	// ErrInvalidLimit indicates a non-positive worker, attempt or lockout setting.
	ErrInvalidLimit = errors.New("config: invalid limit")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")
)
