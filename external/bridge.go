// Package external keeps bookkeeping records for wallets whose keys live in a
// browser extension, WalletConnect session or hardware device, and adapts a
// live provider connection into a session.Signer.
package external

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ogbo/walletcore/registry"
	"github.com/ogbo/walletcore/session"
)

// Provider is a live connection to an external wallet. Connection
// negotiation happens elsewhere; the bridge only routes signing requests.
type Provider interface {
	SignMessage(ctx context.Context, account common.Address, payload []byte) ([]byte, error)
	SignTx(ctx context.Context, account common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Metadata describes how an external wallet is reached.
type Metadata struct {
	Connector string // e.g. "injected", "walletconnect", "ledger"
	Label     string
	Network   string
}

func (m Metadata) toMap() map[string]string {
	out := make(map[string]string, 2)
	if m.Connector != "" {
		out["connector"] = m.Connector
	}
	if m.Label != "" {
		out["label"] = m.Label
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// MetadataOf reads back what RecordExternal stored.
func MetadataOf(rec *registry.Record) Metadata {
	return Metadata{
		Connector: rec.Metadata["connector"],
		Label:     rec.Metadata["label"],
		Network:   rec.Network,
	}
}

// Bridge records external wallets in a registry and tracks which of them
// currently have a live provider.
type Bridge struct {
	reg *registry.Registry

	mu    sync.RWMutex
	conns map[common.Address]*connection
}

type connection struct {
	provider Provider
}

// NewBridge returns a Bridge recording wallets in reg.
func NewBridge(reg *registry.Registry) *Bridge {
	return &Bridge{reg: reg, conns: make(map[common.Address]*connection)}
}

// RecordExternal creates or updates the external record for address. An
// address owned by a local wallet fails with registry.ErrDuplicateAddress.
func (b *Bridge) RecordExternal(address string, meta Metadata) (*registry.Record, error) {
	rec := &registry.Record{
		Address:  address,
		Kind:     registry.KindExternal,
		Network:  meta.Network,
		Metadata: meta.toMap(),
	}

	existing, err := b.reg.FindByAddress(address)
	switch {
	case err == nil:
		if !existing.IsExternal() {
			return nil, fmt.Errorf("%w: %s is a %s wallet", registry.ErrDuplicateAddress, existing.Address, existing.Kind)
		}
		rec.ID = existing.ID
	case !errors.Is(err, registry.ErrUnknownWallet):
		return nil, err
	}
	return b.reg.Save(rec)
}

// RemoveExternal deletes the external record for address and drops any live
// connection to it.
func (b *Bridge) RemoveExternal(address string) error {
	rec, err := b.reg.FindByAddress(address)
	if err != nil {
		return err
	}
	if !rec.IsExternal() {
		return fmt.Errorf("%w: %s", ErrNotExternal, rec.Address)
	}
	if err := b.reg.Remove(rec.ID); err != nil {
		return err
	}
	b.drop(common.HexToAddress(rec.Address))
	return nil
}

// Connect attaches a live provider to a recorded external wallet, replacing
// any previous connection.
func (b *Bridge) Connect(address string, p Provider) error {
	if p == nil {
		return ErrNilProvider
	}
	rec, err := b.reg.FindByAddress(address)
	if err != nil {
		return err
	}
	if !rec.IsExternal() {
		return fmt.Errorf("%w: %s", ErrNotExternal, rec.Address)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.conns[common.HexToAddress(rec.Address)] = &connection{provider: p}
	return nil
}

// Disconnect drops the live provider for address. Signers obtained earlier
// fail with ErrNotConnected afterwards.
func (b *Bridge) Disconnect(address string) {
	addr, err := registry.ParseAddress(address)
	if err != nil {
		return
	}
	b.drop(addr)
}

// DisconnectAll drops every live provider.
func (b *Bridge) DisconnectAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.conns)
}

// Connected reports whether address has a live provider.
func (b *Bridge) Connected(address string) bool {
	addr, err := registry.ParseAddress(address)
	if err != nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.conns[addr] != nil
}

// Signer returns a signer routed through the live provider for address.
func (b *Bridge) Signer(address string) (session.Signer, error) {
	addr, err := registry.ParseAddress(address)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	conn := b.conns[addr]
	if conn == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, addr.Hex())
	}
	return &providerSigner{bridge: b, conn: conn, address: addr}, nil
}

func (b *Bridge) drop(addr common.Address) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conns, addr)
}

// current returns the provider if conn is still the live connection for addr.
func (b *Bridge) current(addr common.Address, conn *connection) (Provider, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.conns[addr] != conn {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, addr.Hex())
	}
	return conn.provider, nil
}

// providerSigner is bound to one connection; reconnecting yields a new signer.
type providerSigner struct {
	bridge  *Bridge
	conn    *connection
	address common.Address
}

var _ session.Signer = (*providerSigner)(nil)

func (s *providerSigner) Address() common.Address { return s.address }

func (s *providerSigner) SignMessage(ctx context.Context, payload []byte) ([]byte, error) {
	p, err := s.bridge.current(s.address, s.conn)
	if err != nil {
		return nil, err
	}
	return p.SignMessage(ctx, s.address, payload)
}

func (s *providerSigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	p, err := s.bridge.current(s.address, s.conn)
	if err != nil {
		return nil, err
	}
	return p.SignTx(ctx, s.address, tx, chainID)
}
