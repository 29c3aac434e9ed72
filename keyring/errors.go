package keyring

import (
	"errors"

	"github.com/ogbo/walletcore/keystore"
)

var (
	// ErrEmptyPassword indicates an empty password was supplied for encryption.
	ErrEmptyPassword = errors.New("keyring: password must not be empty")

	// ErrTooManyAttempts indicates unlock is refused until the lockout window ends.
	ErrTooManyAttempts = errors.New("keyring: too many failed unlock attempts")

	// ErrKeyMismatch indicates a keystore decrypted to a key for a different address.
	ErrKeyMismatch = errors.New("keyring: keystore does not match wallet address")

	// ErrNoStore indicates Options.Store was not set.
	ErrNoStore = errors.New("keyring: storage backend is required")
)

// IsRetryable reports whether the user can fix err by trying again with a
// different password. Lockout, corruption and storage failures are not.
func IsRetryable(err error) bool {
	return errors.Is(err, keystore.ErrWrongPassword) && !errors.Is(err, ErrTooManyAttempts)
}
