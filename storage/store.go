// Package storage provides the small key-value port the wallet registry
// persists through, plus in-memory, file, bbolt and LevelDB backends.
package storage

// Store is a durable string-keyed byte store.
//
// Set replaces the whole value for a key in one step: a reader observes either
// the previous value or the new one, never a mix. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases the backend. Calls after Close fail with ErrClosed.
	Close() error
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}
