// Package wallet derives EVM key material from entropy, BIP39 mnemonics or raw
// private keys.
//
// Key hierarchy: m/44'/60'/0'/0/{index}, the standard EVM (coin type 60) path.
// Every function in this package is pure over its inputs; nothing is persisted.
package wallet

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"

	"github.com/bsv-blockchain/go-sdk/compat/bip39"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128 // 12-word mnemonic
	Mnemonic15Words = 160
	Mnemonic18Words = 192
	Mnemonic21Words = 224
	Mnemonic24Words = 256 // 24-word mnemonic
)

// Factory generates wallets from a caller-supplied random source.
// The zero value reads from crypto/rand.
type Factory struct {
	Rand io.Reader
}

// defaultFactory backs the package-level GenerateWallet.
var defaultFactory = &Factory{}

func (f *Factory) reader() io.Reader {
	if f == nil || f.Rand == nil {
		return rand.Reader
	}
	return f.Rand
}

// GenerateMnemonic creates a new BIP39 mnemonic with the specified entropy bits.
func (f *Factory) GenerateMnemonic(entropyBits int) (string, error) {
	switch entropyBits {
	case Mnemonic12Words, Mnemonic15Words, Mnemonic18Words, Mnemonic21Words, Mnemonic24Words:
	default:
		return "", ErrInvalidEntropy
	}

	entropy := make([]byte, entropyBits/8)
	defer clear(entropy)
	if _, err := io.ReadFull(f.reader(), entropy); err != nil {
		return "", fmt.Errorf("%w: %w", ErrEntropyUnavailable, err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("wallet: failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// GenerateMnemonic creates a new BIP39 mnemonic using crypto/rand.
func GenerateMnemonic(entropyBits int) (string, error) {
	return defaultFactory.GenerateMnemonic(entropyBits)
}

// NormalizeMnemonic lowercases the phrase and collapses runs of whitespace,
// so pasted phrases with stray spaces or newlines derive the same seed.
func NormalizeMnemonic(mnemonic string) string {
	return strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")
}

// ValidateMnemonic checks if a mnemonic string is valid BIP39 (word list and checksum).
func ValidateMnemonic(mnemonic string) bool {
	normalized := NormalizeMnemonic(mnemonic)
	if normalized == "" {
		return false
	}
	return bip39.IsMnemonicValid(normalized)
}

// SeedFromMnemonic derives a 64-byte BIP39 seed from mnemonic + optional passphrase.
//
//	seed = PBKDF2(mnemonic, "mnemonic"+passphrase, 2048, 64, SHA512)
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !ValidateMnemonic(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	seed, err := bip39.NewSeedWithErrorChecking(NormalizeMnemonic(mnemonic), passphrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMnemonic, err)
	}
	return seed, nil
}
