// Package keystore encrypts EVM key material at rest with a password-derived
// key and upgrades blobs written with outdated KDF parameters.
//
// Blob layout follows Web3 Secret Storage: a 32-byte derived key is split into
// an AES-128-CTR key (first half) and a MAC key (second half). The MAC is
// Keccak256 and is verified before any decryption is attempted.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
)

// Encrypt derives a key from password with params and encrypts key with a
// fresh random salt and IV. Two calls with identical inputs never produce the
// same blob.
func Encrypt(key []byte, password string, params KDFParams) (*EncryptedBlob, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	if params.Algorithm == KDFPBKDF2 {
		return nil, fmt.Errorf("%w: pbkdf2 is accepted for import only", ErrInvalidParams)
	}

	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate salt: %w", err)
	}
	iv := make([]byte, IVLen)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("keystore: failed to generate iv: %w", err)
	}

	derivedKey, err := deriveKey(password, salt, params)
	if err != nil {
		return nil, fmt.Errorf("keystore: failed to derive key: %w", err)
	}
	defer clear(derivedKey)

	ciphertext, err := aesCTRXOR(derivedKey[:16], key, iv)
	if err != nil {
		return nil, err
	}

	blob := &EncryptedBlob{
		Version: CurrentVersion,
		KDF:     params,
		Salt:    salt,
		Cipher: CipherParams{
			Algorithm:  CipherAES128CTR,
			IV:         iv,
			CipherText: ciphertext,
		},
	}
	blob.MAC = computeMAC(blob, derivedKey[16:32])
	return blob, nil
}

// Decrypt re-derives the key from password, verifies the integrity tag and
// only then decrypts. A structurally broken blob fails with ErrCorruptKeystore,
// a tag mismatch with ErrWrongPassword.
func Decrypt(blob *EncryptedBlob, password string) ([]byte, error) {
	if err := blob.Validate(); err != nil {
		return nil, err
	}

	derivedKey, err := deriveKey(password, blob.Salt, blob.KDF)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}
	defer clear(derivedKey)

	mac := computeMAC(blob, derivedKey[16:32])
	if subtle.ConstantTimeCompare(mac, blob.MAC) != 1 {
		return nil, ErrWrongPassword
	}

	plaintext, err := aesCTRXOR(derivedKey[:16], blob.Cipher.CipherText, blob.Cipher.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}
	return plaintext, nil
}

// computeMAC returns the integrity tag for blob under macKey.
//
//	v3: keccak256(macKey || ciphertext)
//	v4: keccak256(macKey || header || iv || ciphertext)
func computeMAC(blob *EncryptedBlob, macKey []byte) []byte {
	if blob.Version == Version3 {
		return crypto.Keccak256(macKey, blob.Cipher.CipherText)
	}
	return crypto.Keccak256(macKey, macHeader(blob), blob.Cipher.IV, blob.Cipher.CipherText)
}

// macHeader binds the parameters a v4 blob is decrypted with, so downgrading
// the stored KDF cost or swapping the cipher id breaks the tag.
func macHeader(blob *EncryptedBlob) []byte {
	k := blob.KDF
	return fmt.Appendf(nil, "v%d|%s|%d|%d|%d|%d|%d|%s",
		blob.Version, k.Algorithm, k.CPUCost, k.MemoryCost, k.BlockSize, k.Parallelism, k.KeyLen,
		blob.Cipher.Algorithm)
}

func aesCTRXOR(key, in, iv []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keystore: AES cipher creation failed: %w", err)
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
