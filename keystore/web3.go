package keystore

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// web3KeyJSON is the Web3 Secret Storage v3 layout written by geth and ethers.
// Field names are matched case-insensitively by encoding/json, so both
// "crypto" and "Crypto" decode into Crypto.
type web3KeyJSON struct {
	Address string         `json:"address"`
	Crypto  web3CryptoJSON `json:"crypto"`
	ID      string         `json:"id"`
	Version int            `json:"version"`
}

type web3CryptoJSON struct {
	Cipher       string `json:"cipher"`
	CipherText   string `json:"ciphertext"`
	CipherParams struct {
		IV string `json:"iv"`
	} `json:"cipherparams"`
	KDF       string `json:"kdf"`
	KDFParams struct {
		N     uint32 `json:"n"`
		R     uint32 `json:"r"`
		P     uint32 `json:"p"`
		C     uint32 `json:"c"`
		PRF   string `json:"prf"`
		DKLen uint32 `json:"dklen"`
		Salt  string `json:"salt"`
	} `json:"kdfparams"`
	MAC string `json:"mac"`
}

// parseWeb3 maps a v3 keystore file onto a Version3 blob.
func parseWeb3(data []byte) (*EncryptedBlob, error) {
	var k web3KeyJSON
	if err := json.Unmarshal(data, &k); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptKeystore, err)
	}
	if k.Version != Version3 {
		return nil, fmt.Errorf("%w: web3 keystore version %d not supported", ErrCorruptKeystore, k.Version)
	}

	c := k.Crypto
	var params KDFParams
	switch c.KDF {
	case KDFScrypt:
		params = KDFParams{
			Algorithm:   KDFScrypt,
			CPUCost:     c.KDFParams.N,
			BlockSize:   c.KDFParams.R,
			Parallelism: c.KDFParams.P,
			KeyLen:      c.KDFParams.DKLen,
		}
	case KDFPBKDF2:
		if c.KDFParams.PRF != "hmac-sha256" {
			return nil, fmt.Errorf("%w: unsupported PBKDF2 PRF %q", ErrCorruptKeystore, c.KDFParams.PRF)
		}
		params = KDFParams{Algorithm: KDFPBKDF2, CPUCost: c.KDFParams.C, KeyLen: c.KDFParams.DKLen}
	default:
		return nil, fmt.Errorf("%w: unsupported KDF %q", ErrCorruptKeystore, c.KDF)
	}

	salt, err := decodeHexField("salt", c.KDFParams.Salt)
	if err != nil {
		return nil, err
	}
	iv, err := decodeHexField("iv", c.CipherParams.IV)
	if err != nil {
		return nil, err
	}
	ciphertext, err := decodeHexField("ciphertext", c.CipherText)
	if err != nil {
		return nil, err
	}
	mac, err := decodeHexField("mac", c.MAC)
	if err != nil {
		return nil, err
	}

	blob := &EncryptedBlob{
		Version: Version3,
		KDF:     params,
		Salt:    salt,
		Cipher:  CipherParams{Algorithm: c.Cipher, IV: iv, CipherText: ciphertext},
		MAC:     mac,
	}
	return blob, nil
}

func decodeHexField(name, in string) ([]byte, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(in, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCorruptKeystore, name, err)
	}
	return raw, nil
}
