package storage

import "errors"

var (
	// ErrNotFound indicates no value exists for the given key.
	ErrNotFound = errors.New("storage: key not found")

	// ErrInvalidKey indicates an empty key.
	ErrInvalidKey = errors.New("storage: key must not be empty")

	// ErrUnavailable indicates the backend could not be read or written.
	ErrUnavailable = errors.New("storage: backend unavailable")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("storage: store is closed")

	// ErrInvalidBaseDir indicates the base directory path is invalid.
	ErrInvalidBaseDir = errors.New("storage: invalid base directory")

	// ErrUnknownBackend indicates Open was given a backend name it does not know.
	ErrUnknownBackend = errors.New("storage: unknown backend")
)
