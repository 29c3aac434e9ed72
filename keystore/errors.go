package keystore

import "errors"

var (
	// ErrWrongPassword indicates the integrity tag did not verify under the supplied password.
	// Callers may re-prompt.
	ErrWrongPassword = errors.New("keystore: wrong password")

	// ErrCorruptKeystore indicates the blob is structurally invalid (missing, garbled or
	// out-of-bounds fields). Retrying with another password cannot help.
	ErrCorruptKeystore = errors.New("keystore: corrupt keystore")

	// ErrInvalidParams indicates KDF parameters passed to Encrypt are unusable.
	ErrInvalidParams = errors.New("keystore: invalid KDF parameters")

	// ErrEmptyKey indicates an attempt to encrypt empty key material.
	ErrEmptyKey = errors.New("keystore: key material is empty")

	// ErrMigrationFailed indicates a KDF migration could not complete. It always wraps the cause.
	ErrMigrationFailed = errors.New("keystore: migration failed")
)
