// Package session holds the decrypted key of the unlocked wallet in process
// memory and hands out signer handles bound to it.
//
// The cache never touches storage. Clearing it invalidates every signer
// handed out before the clear, including ones held by in-flight operations.
package session

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Cache holds at most one session key.
type Cache struct {
	mu       sync.RWMutex
	walletID string
	key      []byte
	address  common.Address
	epoch    uint64
}

// NewCache returns an empty cache.
func NewCache() *Cache { return &Cache{} }

// Store replaces the cached session with a copy of key for walletID. The
// previous key is zeroed and its signers stop working.
func (c *Cache) Store(walletID string, key []byte) error {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	c.walletID = walletID
	c.key = bytes.Clone(key)
	c.address = crypto.PubkeyToAddress(priv.PublicKey)
	return nil
}

// Get returns a copy of the key cached for walletID.
func (c *Cache) Get(walletID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil || c.walletID != walletID {
		return nil, false
	}
	return bytes.Clone(c.key), true
}

// WalletID returns the wallet whose key is cached, or "".
func (c *Cache) WalletID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.walletID
}

// Clear zeroes the cached key. It returns only after the key is gone.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
}

func (c *Cache) reset() {
	clear(c.key)
	c.key = nil
	c.walletID = ""
	c.address = common.Address{}
	c.epoch++
}

// Signer returns a handle signing with the key cached for walletID.
func (c *Cache) Signer(walletID string) (Signer, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil || c.walletID != walletID {
		return nil, false
	}
	return &cachedSigner{cache: c, epoch: c.epoch, address: c.address}, true
}

// cachedSigner signs with the cache's key for as long as the session it was
// created in is still current.
type cachedSigner struct {
	cache   *Cache
	epoch   uint64
	address common.Address
}

var _ Signer = (*cachedSigner)(nil)

func (s *cachedSigner) Address() common.Address { return s.address }

func (s *cachedSigner) SignMessage(ctx context.Context, payload []byte) ([]byte, error) {
	var sig []byte
	err := s.withKey(ctx, func(raw []byte) error {
		priv, err := crypto.ToECDSA(raw)
		if err != nil {
			return err
		}
		sig, err = signMessage(priv, payload)
		return err
	})
	return sig, err
}

func (s *cachedSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	var signed *types.Transaction
	err := s.withKey(ctx, func(raw []byte) error {
		priv, err := crypto.ToECDSA(raw)
		if err != nil {
			return err
		}
		signed, err = signTx(priv, tx, chainID)
		return err
	})
	return signed, err
}

// withKey runs fn with the live key under the read lock, so Clear waits for
// a signature in progress and nothing signs after Clear returns.
func (s *cachedSigner) withKey(ctx context.Context, fn func(raw []byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c := s.cache
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.epoch != s.epoch || c.key == nil {
		return ErrSessionClosed
	}
	return fn(c.key)
}
