package wallet

import "errors"

var (
	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 word-list or checksum validation.
	ErrInvalidMnemonic = errors.New("wallet: invalid BIP39 mnemonic")

	// ErrInvalidPrivateKey indicates the private key is not 32 bytes of hex or is not a valid secp256k1 scalar.
	ErrInvalidPrivateKey = errors.New("wallet: invalid private key")

	// ErrInvalidEntropy indicates entropy bits is not a BIP39 size (128, 160, 192, 224 or 256).
	ErrInvalidEntropy = errors.New("wallet: entropy bits must be one of 128, 160, 192, 224, 256")

	// ErrEntropyUnavailable indicates the secure random source could not be read.
	ErrEntropyUnavailable = errors.New("wallet: secure entropy source unavailable")

	// ErrIndexOutOfRange indicates an account index exceeds the BIP32 non-hardened max.
	ErrIndexOutOfRange = errors.New("wallet: account index exceeds maximum (2^31-1)")

	// ErrInvalidPath indicates a derivation path could not be parsed.
	ErrInvalidPath = errors.New("wallet: invalid derivation path")

	// ErrInvalidNetwork indicates an unknown network name.
	ErrInvalidNetwork = errors.New("wallet: invalid network name")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("wallet: key derivation failed")
)
