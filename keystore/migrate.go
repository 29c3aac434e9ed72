package keystore

import (
	"bytes"
	"fmt"
)

// MigrationResult is the outcome of a successful Migrate call.
type MigrationResult struct {
	Blob     *EncryptedBlob // current-version blob; the input blob when Migrated is false
	Key      []byte         // recovered key material, owned by the caller
	Migrated bool
}

// Migrator upgrades blobs whose version or KDF cost is below Target.
type Migrator struct {
	target KDFParams
}

// NewMigrator returns a Migrator re-encrypting with target.
func NewMigrator(target KDFParams) (*Migrator, error) {
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if target.Algorithm == KDFPBKDF2 {
		return nil, fmt.Errorf("%w: pbkdf2 cannot be a migration target", ErrInvalidParams)
	}
	return &Migrator{target: target}, nil
}

// Target returns the parameters new blobs are written with.
func (m *Migrator) Target() KDFParams { return m.target }

// NeedsMigration reports whether blob is below the current recommendation.
func (m *Migrator) NeedsMigration(blob *EncryptedBlob) bool {
	if blob == nil {
		return false
	}
	return blob.Version < CurrentVersion || !blob.KDF.Meets(m.target)
}

// Migrate decrypts blob and, when it is outdated, re-encrypts the recovered
// key with the target parameters and fresh randomness. A current blob is
// returned unchanged, so a second Migrate is a no-op.
//
// Migrate never touches storage. Callers persist Blob only when Migrated is
// true and err is nil; on failure the stored record must stay as it was.
func (m *Migrator) Migrate(blob *EncryptedBlob, password string) (*MigrationResult, error) {
	key, err := Decrypt(blob, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}
	if !m.NeedsMigration(blob) {
		return &MigrationResult{Blob: blob, Key: key}, nil
	}

	upgraded, err := m.Upgrade(key, password)
	if err != nil {
		clear(key)
		return nil, err
	}
	return &MigrationResult{Blob: upgraded, Key: key, Migrated: true}, nil
}

// Upgrade encrypts already-recovered key material with the target
// parameters and checks the new blob decrypts back to key before returning it.
func (m *Migrator) Upgrade(key []byte, password string) (*EncryptedBlob, error) {
	upgraded, err := Encrypt(key, password, m.target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	// Prove the new blob opens before anyone replaces the old one with it.
	check, err := Decrypt(upgraded, password)
	defer clear(check)
	if err != nil || !bytes.Equal(check, key) {
		return nil, fmt.Errorf("%w: re-encrypted keystore failed verification", ErrMigrationFailed)
	}
	return upgraded, nil
}
