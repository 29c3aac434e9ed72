package wallet

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// BIP44 path constants.
	PurposeBIP44 = 44
	CoinTypeEVM  = 60

	// BIP32 limits.
	MaxAccountIndex = 1<<31 - 1 // 2^31 - 1 (non-hardened max)

	// BIP32 hardened offset.
	Hardened = 0x80000000

	// PrivateKeyLen is the size of a raw secp256k1 private key.
	PrivateKeyLen = 32
)

// Key holds derived EVM key material.
type Key struct {
	Address    common.Address          `json:"address"`
	PrivateKey *ecdsa.PrivateKey       `json:"-"`
	Mnemonic   string                  `json:"-"`              // empty for raw private key imports
	Path       accounts.DerivationPath `json:"path,omitempty"` // nil for raw private key imports
}

// Bytes returns the 32-byte big-endian private key.
func (k *Key) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Zero wipes the private scalar and drops the mnemonic reference.
func (k *Key) Zero() {
	if k == nil {
		return
	}
	if k.PrivateKey != nil && k.PrivateKey.D != nil {
		b := k.PrivateKey.D.Bits()
		clear(b)
		k.PrivateKey.D.SetInt64(0)
	}
	k.Mnemonic = ""
}

// AccountPath returns m/44'/60'/0'/0/{index}.
func AccountPath(index uint32) (accounts.DerivationPath, error) {
	if index > MaxAccountIndex {
		return nil, ErrIndexOutOfRange
	}
	path := make(accounts.DerivationPath, len(accounts.DefaultBaseDerivationPath))
	copy(path, accounts.DefaultBaseDerivationPath)
	path[len(path)-1] = index
	return path, nil
}

// GenerateWallet creates a fresh mnemonic and derives the key at index 0.
func (f *Factory) GenerateWallet(entropyBits int) (*Key, error) {
	mnemonic, err := f.GenerateMnemonic(entropyBits)
	if err != nil {
		return nil, err
	}
	return FromMnemonic(mnemonic, 0)
}

// GenerateWallet creates a fresh wallet using crypto/rand.
func GenerateWallet(entropyBits int) (*Key, error) {
	return defaultFactory.GenerateWallet(entropyBits)
}

// FromMnemonic derives the key at m/44'/60'/0'/0/{accountIndex}.
// The same mnemonic and index always yield the same key.
func FromMnemonic(mnemonic string, accountIndex uint32) (*Key, error) {
	path, err := AccountPath(accountIndex)
	if err != nil {
		return nil, err
	}
	return deriveAt(mnemonic, path)
}

// FromMnemonicPath derives the key at an arbitrary path such as "m/44'/60'/1'/0/0".
func FromMnemonicPath(mnemonic, path string) (*Key, error) {
	parsed, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPath, err)
	}
	return deriveAt(mnemonic, parsed)
}

func deriveAt(mnemonic string, path accounts.DerivationPath) (*Key, error) {
	seed, err := SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return nil, err
	}
	defer clear(seed)

	priv, err := derivePrivateKey(seed, path)
	if err != nil {
		return nil, err
	}
	return &Key{
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
		Mnemonic:   NormalizeMnemonic(mnemonic),
		Path:       path,
	}, nil
}

// derivePrivateKey walks the BIP32 tree from the master key along path.
func derivePrivateKey(seed []byte, path accounts.DerivationPath) (*ecdsa.PrivateKey, error) {
	// The network params only affect extended-key serialization, never derivation.
	current, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}

	for depth, step := range path {
		current, err = current.Child(step)
		if err != nil {
			return nil, fmt.Errorf("%w: path derivation at depth %d: %w", ErrDerivationFailed, depth, err)
		}
		if current, err = padChildKey(current); err != nil {
			return nil, fmt.Errorf("%w: path derivation at depth %d: %w", ErrDerivationFailed, depth, err)
		}
	}

	ecKey, err := current.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	raw := ecKey.Serialize()
	defer clear(raw)

	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return priv, nil
}

// padChildKey re-reads k from its serialized form. Child keeps a derived
// private key with its leading zero bytes stripped, and the next hardened
// step would hash that short key left-aligned instead of as ser256(k). The
// extended key serialization always writes 32 bytes, so the round trip
// restores the padding.
func padChildKey(k *bip32.ExtendedKey) (*bip32.ExtendedKey, error) {
	padded, err := bip32.NewKeyFromString(k.String())
	k.Zero()
	return padded, err
}

// ValidatePrivateKey reports whether s is 64 hex chars, with or without a 0x prefix.
func ValidatePrivateKey(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s) != PrivateKeyLen*2 {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// FromPrivateKey wraps a raw hex private key. The 0x prefix is optional.
func FromPrivateKey(hexKey string) (*Key, error) {
	if !ValidatePrivateKey(hexKey) {
		return nil, ErrInvalidPrivateKey
	}
	s := strings.TrimSpace(hexKey)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidPrivateKey
	}
	defer clear(raw)
	return FromPrivateKeyBytes(raw)
}

// FromPrivateKeyBytes wraps a 32-byte private key, e.g. one recovered from a keystore.
func FromPrivateKeyBytes(raw []byte) (*Key, error) {
	if len(raw) != PrivateKeyLen {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidPrivateKey, len(raw))
	}
	priv, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPrivateKey, err)
	}
	return &Key{
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		PrivateKey: priv,
	}, nil
}
