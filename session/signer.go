package session

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces signatures for one address without exposing key bytes.
// Local wallets get a Signer from a Cache; external wallets get one from a
// live provider connection.
type Signer interface {
	Address() common.Address

	// SignMessage returns a 65-byte EIP-191 personal_sign signature over
	// payload with V in {27, 28}.
	SignMessage(ctx context.Context, payload []byte) ([]byte, error)

	// SignTx returns a signed copy of tx for chainID.
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// signMessage hashes payload with the personal message prefix and signs it.
func signMessage(key *ecdsa.PrivateKey, payload []byte) ([]byte, error) {
	sig, err := crypto.Sign(accounts.TextHash(payload), key)
	if err != nil {
		return nil, fmt.Errorf("session: sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

func signTx(key *ecdsa.PrivateKey, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if tx == nil || chainID == nil {
		return nil, fmt.Errorf("session: sign tx: nil transaction or chain id")
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), key)
	if err != nil {
		return nil, fmt.Errorf("session: sign tx: %w", err)
	}
	return signed, nil
}

// VerifyMessage checks that sig is addr's EIP-191 signature over payload.
// V may be 0/1 or 27/28.
func VerifyMessage(addr common.Address, payload, sig []byte) error {
	if len(sig) != crypto.SignatureLength {
		return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	rsv := common.CopyBytes(sig)
	if rsv[crypto.RecoveryIDOffset] >= 27 {
		rsv[crypto.RecoveryIDOffset] -= 27
	}
	if rsv[crypto.RecoveryIDOffset] > 1 {
		return fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, sig[crypto.RecoveryIDOffset])
	}
	pub, err := crypto.SigToPub(accounts.TextHash(payload), rsv)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	if got := crypto.PubkeyToAddress(*pub); got != addr {
		return fmt.Errorf("%w: signed by %s", ErrSignatureMismatch, got.Hex())
	}
	return nil
}
