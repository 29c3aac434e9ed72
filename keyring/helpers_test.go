package keyring

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ogbo/walletcore/external"
	"github.com/ogbo/walletcore/storage"
)

// countingStore counts Set calls.
type countingStore struct {
	storage.Store
	mu   sync.Mutex
	sets int
}

func (c *countingStore) Set(key string, value []byte) error {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
	return c.Store.Set(key, value)
}

func (c *countingStore) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

// keyProvider plays a browser wallet for one key.
type keyProvider struct {
	key *ecdsa.PrivateKey
}

var _ external.Provider = (*keyProvider)(nil)

func (p *keyProvider) SignMessage(_ context.Context, _ common.Address, payload []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(payload), p.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

func (p *keyProvider) SignTx(_ context.Context, _ common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
}
