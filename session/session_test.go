package session

import (
	"context"
	"encoding/hex"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Helper functions ---

// Account 0 of the "test test ... junk" development mnemonic.
const (
	devKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func devKey(t *testing.T) []byte {
	t.Helper()
	key, err := hex.DecodeString(devKeyHex)
	require.NoError(t, err)
	return key
}

func otherKey(t *testing.T) []byte {
	t.Helper()
	priv, err := crypto.GenerateKey()
	require.NoError(t, err)
	return crypto.FromECDSA(priv)
}

// --- Cache ---

func TestCache_StoreGet(t *testing.T) {
	c := NewCache()
	_, ok := c.Get("w1")
	assert.False(t, ok)

	key := devKey(t)
	require.NoError(t, c.Store("w1", key))
	assert.Equal(t, "w1", c.WalletID())

	got, ok := c.Get("w1")
	require.True(t, ok)
	assert.Equal(t, key, got)

	_, ok = c.Get("w2")
	assert.False(t, ok)
}

func TestCache_StoreCopiesInput(t *testing.T) {
	c := NewCache()
	key := devKey(t)
	require.NoError(t, c.Store("w1", key))
	clear(key)

	got, ok := c.Get("w1")
	require.True(t, ok)
	assert.Equal(t, devKey(t), got)

	got[0] ^= 0xff
	again, _ := c.Get("w1")
	assert.Equal(t, devKey(t), again)
}

func TestCache_StoreRejectsInvalidKey(t *testing.T) {
	c := NewCache()
	assert.ErrorIs(t, c.Store("w1", []byte{1, 2, 3}), ErrInvalidKey)
	assert.ErrorIs(t, c.Store("w1", make([]byte, 32)), ErrInvalidKey)
	assert.Equal(t, "", c.WalletID())
}

func TestCache_OverwriteReplacesSession(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	require.NoError(t, c.Store("w2", otherKey(t)))

	_, ok := c.Get("w1")
	assert.False(t, ok)
	assert.Equal(t, "w2", c.WalletID())
}

func TestCache_Clear(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	c.Clear()

	_, ok := c.Get("w1")
	assert.False(t, ok)
	assert.Equal(t, "", c.WalletID())
	_, ok = c.Signer("w1")
	assert.False(t, ok)

	// Idempotent.
	c.Clear()
}

// --- Signer ---

func TestSigner_SignMessage(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))

	s, ok := c.Signer("w1")
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(devAddress), s.Address())

	payload := []byte("hello xmtp")
	sig, err := s.SignMessage(context.Background(), payload)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	assert.NoError(t, VerifyMessage(s.Address(), payload, sig))
	assert.ErrorIs(t, VerifyMessage(s.Address(), []byte("other"), sig), ErrSignatureMismatch)
}

func TestSigner_Deterministic(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	a, err := s.SignMessage(context.Background(), []byte("x"))
	require.NoError(t, err)
	b, err := s.SignMessage(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, a, b, "RFC 6979 signatures are deterministic")
}

func TestSigner_SignTx(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	chainID := big.NewInt(137)
	to := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     3,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(100),
		Gas:       21000,
		To:        &to,
		Value:     big.NewInt(1e15),
	})

	signed, err := s.SignTx(context.Background(), tx, chainID)
	require.NoError(t, err)
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)

	_, err = s.SignTx(context.Background(), nil, chainID)
	assert.Error(t, err)
}

func TestSigner_InvalidatedByClear(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, ok := c.Signer("w1")
	require.True(t, ok)

	c.Clear()
	_, err := s.SignMessage(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrSessionClosed)
	_, err = s.SignTx(context.Background(), types.NewTx(&types.LegacyTx{}), big.NewInt(1))
	assert.ErrorIs(t, err, ErrSessionClosed)

	// Re-unlocking the same wallet does not revive the old handle.
	require.NoError(t, c.Store("w1", devKey(t)))
	_, err = s.SignMessage(context.Background(), []byte("late"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSigner_InvalidatedByOverwrite(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	require.NoError(t, c.Store("w2", otherKey(t)))
	_, err := s.SignMessage(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestSigner_CanceledContext(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.SignMessage(ctx, []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSigner_ConcurrentWithClear(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sig, err := s.SignMessage(context.Background(), []byte("race"))
			if err != nil {
				assert.ErrorIs(t, err, ErrSessionClosed)
				return
			}
			assert.NoError(t, VerifyMessage(s.Address(), []byte("race"), sig))
		}()
	}
	c.Clear()
	wg.Wait()

	_, err := s.SignMessage(context.Background(), []byte("after"))
	assert.ErrorIs(t, err, ErrSessionClosed)
}

// --- VerifyMessage ---

func TestVerifyMessage_Malformed(t *testing.T) {
	addr := common.HexToAddress(devAddress)
	assert.ErrorIs(t, VerifyMessage(addr, []byte("x"), make([]byte, 10)), ErrInvalidSignature)

	bad := make([]byte, 65)
	bad[64] = 5
	assert.ErrorIs(t, VerifyMessage(addr, []byte("x"), bad), ErrInvalidSignature)
}

func TestVerifyMessage_AcceptsRawRecoveryID(t *testing.T) {
	c := NewCache()
	require.NoError(t, c.Store("w1", devKey(t)))
	s, _ := c.Signer("w1")

	sig, err := s.SignMessage(context.Background(), []byte("v"))
	require.NoError(t, err)
	sig[64] -= 27
	assert.NoError(t, VerifyMessage(s.Address(), []byte("v"), sig))
}
