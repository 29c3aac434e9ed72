package keystore

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Blob schema versions.
const (
	// Version3 is a Web3 Secret Storage v3 keystore (ethers, geth) imported as-is.
	// Its MAC covers the ciphertext only.
	Version3 = 3

	// Version4 is the native format. Its MAC also binds the KDF and cipher parameters.
	Version4 = 4

	// CurrentVersion is written by Encrypt.
	CurrentVersion = Version4
)

// CipherAES128CTR is the only supported cipher.
const CipherAES128CTR = "aes-128-ctr"

// Encryption format sizes.
const (
	SaltLen = 32
	IVLen   = 16
	MACLen  = 32
)

// CipherParams holds the symmetric cipher id, its IV and the ciphertext.
type CipherParams struct {
	Algorithm  string        `json:"algorithm"`
	IV         hexutil.Bytes `json:"iv"`
	CipherText hexutil.Bytes `json:"ciphertext"`
}

// EncryptedBlob is the encrypted-at-rest form of key material plus everything
// needed to decrypt it again given the password.
type EncryptedBlob struct {
	Version int           `json:"version"`
	KDF     KDFParams     `json:"kdf"`
	Salt    hexutil.Bytes `json:"salt"`
	Cipher  CipherParams  `json:"cipher"`
	MAC     hexutil.Bytes `json:"mac"`
}

// Validate checks the blob is structurally decryptable. Every failure wraps
// ErrCorruptKeystore.
func (b *EncryptedBlob) Validate() error {
	if b == nil {
		return fmt.Errorf("%w: nil blob", ErrCorruptKeystore)
	}
	if b.Version != Version3 && b.Version != Version4 {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptKeystore, b.Version)
	}
	if err := b.KDF.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}
	if b.KDF.Algorithm == KDFPBKDF2 && b.Version != Version3 {
		return fmt.Errorf("%w: pbkdf2 is only valid in version 3 blobs", ErrCorruptKeystore)
	}
	if len(b.Salt) == 0 {
		return fmt.Errorf("%w: missing salt", ErrCorruptKeystore)
	}
	if b.Cipher.Algorithm != CipherAES128CTR {
		return fmt.Errorf("%w: unsupported cipher %q", ErrCorruptKeystore, b.Cipher.Algorithm)
	}
	if len(b.Cipher.IV) != IVLen {
		return fmt.Errorf("%w: iv must be %d bytes, got %d", ErrCorruptKeystore, IVLen, len(b.Cipher.IV))
	}
	if len(b.Cipher.CipherText) == 0 {
		return fmt.Errorf("%w: missing ciphertext", ErrCorruptKeystore)
	}
	if len(b.MAC) != MACLen {
		return fmt.Errorf("%w: mac must be %d bytes, got %d", ErrCorruptKeystore, MACLen, len(b.MAC))
	}
	return nil
}

// Equal reports whether two blobs are the same encryption (same salt, IV and tag).
func (b *EncryptedBlob) Equal(other *EncryptedBlob) bool {
	if b == nil || other == nil {
		return b == other
	}
	return b.Version == other.Version &&
		b.KDF == other.KDF &&
		bytes.Equal(b.Salt, other.Salt) &&
		b.Cipher.Algorithm == other.Cipher.Algorithm &&
		bytes.Equal(b.Cipher.IV, other.Cipher.IV) &&
		bytes.Equal(b.Cipher.CipherText, other.Cipher.CipherText) &&
		bytes.Equal(b.MAC, other.MAC)
}

// Clone returns a deep copy.
func (b *EncryptedBlob) Clone() *EncryptedBlob {
	if b == nil {
		return nil
	}
	c := *b
	c.Salt = bytes.Clone(b.Salt)
	c.Cipher.IV = bytes.Clone(b.Cipher.IV)
	c.Cipher.CipherText = bytes.Clone(b.Cipher.CipherText)
	c.MAC = bytes.Clone(b.MAC)
	return &c
}

// Marshal encodes the blob in the native JSON format.
func (b *EncryptedBlob) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// ParseBlob decodes a native blob or a Web3 Secret Storage v3 keystore file.
// The result has passed Validate.
func ParseBlob(data []byte) (*EncryptedBlob, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}

	var (
		blob *EncryptedBlob
		err  error
	)
	_, lower := fields["crypto"]
	_, upper := fields["Crypto"]
	if lower || upper {
		blob, err = parseWeb3(data)
	} else {
		blob = new(EncryptedBlob)
		if jerr := json.Unmarshal(data, blob); jerr != nil {
			err = fmt.Errorf("%w: %w", ErrCorruptKeystore, jerr)
		}
	}
	if err != nil {
		return nil, err
	}
	if err := blob.Validate(); err != nil {
		return nil, err
	}
	return blob, nil
}
