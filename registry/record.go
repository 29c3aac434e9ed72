package registry

import (
	"fmt"
	"maps"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/wallet"
)

// Kind says where a wallet's key lives.
type Kind string

const (
	KindGenerated Kind = "generated" // mnemonic created by this app
	KindImported  Kind = "imported"  // mnemonic or raw key supplied by the user
	KindExternal  Kind = "external"  // key held by a browser or hardware wallet
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindGenerated, KindImported, KindExternal:
		return true
	}
	return false
}

// Record is one known wallet.
type Record struct {
	ID        string                  `json:"id"`
	Name      string                  `json:"name"`
	Address   string                  `json:"address"` // EIP-55
	Kind      Kind                    `json:"kind"`
	Network   string                  `json:"network,omitempty"`
	Path      string                  `json:"path,omitempty"` // derivation path, mnemonic wallets only
	Keystore  *keystore.EncryptedBlob `json:"keystore,omitempty"`
	Metadata  map[string]string       `json:"metadata,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

// IsExternal reports whether the record has no local key material.
func (r *Record) IsExternal() bool { return r.Kind == KindExternal }

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Keystore = r.Keystore.Clone()
	c.Metadata = maps.Clone(r.Metadata)
	return &c
}

// normalize checksums the address and checks the kind/keystore pairing.
func (r *Record) normalize() error {
	addr, err := ParseAddress(r.Address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	r.Address = addr.Hex()

	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRecord, r.Kind)
	}
	if r.IsExternal() {
		if r.Keystore != nil {
			return fmt.Errorf("%w: external wallet %s carries a keystore", ErrInvalidRecord, r.Address)
		}
	} else {
		if r.Keystore == nil {
			return fmt.Errorf("%w: %s wallet %s has no keystore", ErrInvalidRecord, r.Kind, r.Address)
		}
		if err := r.Keystore.Validate(); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}
	if r.Network != "" {
		if _, err := wallet.GetNetwork(r.Network); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
		}
	}
	return nil
}

// ParseAddress accepts a 0x-prefixed or bare 40-hex-digit address in any case.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return common.HexToAddress(s), nil
}
