// Package keyring is the caller-owned entry point to the wallet core. It ties
// wallet generation, keystore encryption, the registry, the session cache and
// the external wallet bridge together, and runs KDF work on a bounded pool.
package keyring

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ogbo/walletcore/external"
	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/registry"
	"github.com/ogbo/walletcore/session"
	"github.com/ogbo/walletcore/storage"
	"github.com/ogbo/walletcore/wallet"
)

// Keyring owns one registry, one session cache and one bridge. All methods
// are safe for concurrent use.
type Keyring struct {
	opts     Options
	store    storage.Store
	reg      *registry.Registry
	migrator *keystore.Migrator
	cache    *session.Cache
	bridge   *external.Bridge
	pool     *pool
	lockout  *lockout
	log      log.Logger

	// sessMu orders session installs against Lock, and epoch lets an unlock
	// that finishes after a Lock notice it was abandoned.
	sessMu sync.Mutex
	epoch  uint64
}

// Created is the result of CreateWallet. Mnemonic must be shown to the user
// for backup and then discarded; it is not stored anywhere.
type Created struct {
	Record   *registry.Record
	Mnemonic string
}

// Imported is the result of an import. Existing is true when the address was
// already known and the import only switched the active wallet to it.
type Imported struct {
	Record   *registry.Record
	Existing bool
}

// New builds a Keyring over opts.Store.
func New(opts Options) (*Keyring, error) {
	if opts.Store == nil {
		return nil, ErrNoStore
	}
	opts.setDefaults()

	migrator, err := keystore.NewMigrator(opts.KDF)
	if err != nil {
		return nil, err
	}

	var regOpts []registry.Option
	if opts.RegistryKey != "" {
		regOpts = append(regOpts, registry.WithKey(opts.RegistryKey))
	}
	reg := registry.New(opts.Store, regOpts...)

	return &Keyring{
		opts:     opts,
		store:    opts.Store,
		reg:      reg,
		migrator: migrator,
		cache:    session.NewCache(),
		bridge:   external.NewBridge(reg),
		pool:     newPool(opts.Workers),
		lockout:  newLockout(opts.Clock, opts.MaxUnlockAttempts, opts.Lockout),
		log:      opts.Logger.New("module", "keyring"),
	}, nil
}

// CreateWallet generates a new mnemonic wallet, stores it encrypted under
// password and makes it active.
func (k *Keyring) CreateWallet(ctx context.Context, password, network string) (*Created, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	net, err := wallet.GetNetwork(network)
	if err != nil {
		return nil, err
	}

	key, err := k.opts.Factory.GenerateWallet(k.opts.EntropyBits)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	mnemonic := key.Mnemonic

	rec, err := k.storeKey(ctx, key, registry.KindGenerated, password, net.Name, "")
	if err != nil {
		return nil, err
	}
	k.log.Info("Created wallet", "id", rec.ID, "address", rec.Address, "network", rec.Network)
	return &Created{Record: rec, Mnemonic: mnemonic}, nil
}

// ImportMnemonic imports the account at index of mnemonic.
func (k *Keyring) ImportMnemonic(ctx context.Context, mnemonic string, index uint32, password, network string) (*Imported, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	net, err := wallet.GetNetwork(network)
	if err != nil {
		return nil, err
	}
	key, err := wallet.FromMnemonic(mnemonic, index)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	return k.importKey(ctx, key, password, net.Name)
}

// ImportPrivateKey imports a raw hex private key. The 0x prefix is optional.
func (k *Keyring) ImportPrivateKey(ctx context.Context, hexKey, password, network string) (*Imported, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	net, err := wallet.GetNetwork(network)
	if err != nil {
		return nil, err
	}
	key, err := wallet.FromPrivateKey(hexKey)
	if err != nil {
		return nil, err
	}
	defer key.Zero()
	return k.importKey(ctx, key, password, net.Name)
}

// ImportKeystore imports a Web3 Secret Storage v3 file (geth, ethers,
// MetaMask export) or a native blob. The file is re-encrypted with the
// configured KDF, so password must open it.
func (k *Keyring) ImportKeystore(ctx context.Context, data []byte, password, network string) (*Imported, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	net, err := wallet.GetNetwork(network)
	if err != nil {
		return nil, err
	}
	blob, err := keystore.ParseBlob(data)
	if err != nil {
		return nil, err
	}
	raw, err := submit(ctx, k.pool, func() ([]byte, error) {
		return keystore.Decrypt(blob, password)
	}, wipe)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	key, err := wallet.FromPrivateKeyBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", keystore.ErrCorruptKeystore, err)
	}
	defer key.Zero()
	return k.importKey(ctx, key, password, net.Name)
}

func (k *Keyring) importKey(ctx context.Context, key *wallet.Key, password, network string) (*Imported, error) {
	existing, err := k.reg.FindByAddress(key.Address.Hex())
	switch {
	case err == nil && !existing.IsExternal():
		if err := k.reg.SetActive(existing.ID); err != nil {
			return nil, err
		}
		k.log.Info("Wallet already exists, switched to it", "id", existing.ID, "address", existing.Address)
		return &Imported{Record: existing, Existing: true}, nil
	case err == nil:
		// The user now holds the key of a wallet we only knew as external.
		k.bridge.Disconnect(existing.Address)
		rec, err := k.storeKey(ctx, key, registry.KindImported, password, network, existing.ID)
		if err != nil {
			return nil, err
		}
		k.log.Info("Imported key for external wallet", "id", rec.ID, "address", rec.Address)
		return &Imported{Record: rec}, nil
	case !errors.Is(err, registry.ErrUnknownWallet):
		return nil, err
	}

	rec, err := k.storeKey(ctx, key, registry.KindImported, password, network, "")
	if err != nil {
		return nil, err
	}
	k.log.Info("Imported wallet", "id", rec.ID, "address", rec.Address, "network", rec.Network)
	return &Imported{Record: rec}, nil
}

// storeKey encrypts key on the pool, then saves and activates the record in
// one registry write.
func (k *Keyring) storeKey(ctx context.Context, key *wallet.Key, kind registry.Kind, password, network, id string) (*registry.Record, error) {
	raw := key.Bytes()
	defer clear(raw)

	blob, err := submit(ctx, k.pool, func() (*keystore.EncryptedBlob, error) {
		return keystore.Encrypt(raw, password, k.opts.KDF)
	}, nil)
	if err != nil {
		return nil, err
	}

	rec := &registry.Record{
		ID:       id,
		Address:  key.Address.Hex(),
		Kind:     kind,
		Network:  network,
		Keystore: blob,
	}
	if key.Path != nil {
		rec.Path = key.Path.String()
	}
	return k.reg.SaveActive(rec)
}

// Unlock decrypts the keystore of walletID, caches the key for the session
// and returns a signer for it. An outdated keystore is re-encrypted with the
// configured KDF; a failed upgrade is logged and does not fail the unlock.
//
// After MaxUnlockAttempts wrong passwords every Unlock fails with
// ErrTooManyAttempts until the lockout window has passed.
func (k *Keyring) Unlock(ctx context.Context, walletID, password string) (session.Signer, error) {
	if err := k.lockout.check(); err != nil {
		return nil, err
	}
	rec, err := k.reg.Get(walletID)
	if err != nil {
		return nil, err
	}
	if rec.IsExternal() {
		return nil, fmt.Errorf("%w: %s", registry.ErrNoKeystore, rec.Address)
	}

	k.sessMu.Lock()
	epoch := k.epoch
	k.sessMu.Unlock()

	raw, err := submit(ctx, k.pool, func() ([]byte, error) {
		return keystore.Decrypt(rec.Keystore, password)
	}, wipe)
	if errors.Is(err, keystore.ErrWrongPassword) {
		left := k.lockout.fail()
		k.log.Warn("Wrong wallet password", "id", walletID, "remaining", left)
		if left == 0 {
			return nil, fmt.Errorf("%w: %w", ErrTooManyAttempts, err)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	if err := checkAddress(raw, rec.Address); err != nil {
		return nil, err
	}
	k.lockout.reset()

	if err := k.installSession(epoch, walletID, raw); err != nil {
		return nil, err
	}
	signer, ok := k.cache.Signer(walletID)
	if !ok {
		return nil, session.ErrSessionClosed
	}
	k.log.Info("Unlocked wallet", "id", walletID, "address", rec.Address)

	if k.migrator.NeedsMigration(rec.Keystore) {
		k.upgradeKeystore(ctx, rec, raw, password)
	}
	return signer, nil
}

// installSession caches raw unless a Lock happened since epoch was read.
func (k *Keyring) installSession(epoch uint64, walletID string, raw []byte) error {
	k.sessMu.Lock()
	defer k.sessMu.Unlock()
	if k.epoch != epoch {
		return session.ErrSessionClosed
	}
	return k.cache.Store(walletID, raw)
}

func (k *Keyring) upgradeKeystore(ctx context.Context, rec *registry.Record, raw []byte, password string) {
	upgraded, err := submit(ctx, k.pool, func() (*keystore.EncryptedBlob, error) {
		return k.migrator.Upgrade(raw, password)
	}, nil)
	if err != nil {
		k.log.Warn("Keystore upgrade failed", "id", rec.ID, "err", err)
		return
	}
	if err := k.reg.ReplaceKeystore(rec.ID, rec.Keystore, upgraded); err != nil {
		k.log.Warn("Keystore upgrade not saved", "id", rec.ID, "err", err)
		return
	}
	k.log.Info("Upgraded keystore", "id", rec.ID, "from", rec.Keystore.KDF.String(), "to", upgraded.KDF.String())
}

// Lock forgets the session key. Signers handed out earlier stop working, and
// an Unlock still in flight will not install its key.
func (k *Keyring) Lock() {
	k.sessMu.Lock()
	defer k.sessMu.Unlock()
	k.epoch++
	k.cache.Clear()
}

// Logout locks the session and drops every external provider connection.
func (k *Keyring) Logout() {
	k.Lock()
	k.bridge.DisconnectAll()
	k.log.Info("Logged out")
}

// Unlocked returns the wallet whose key is cached, or "".
func (k *Keyring) Unlocked() string { return k.cache.WalletID() }

// SessionSigner returns a signer for walletID without prompting for a
// password: the cached session key for local wallets, the live provider for
// external ones.
func (k *Keyring) SessionSigner(walletID string) (session.Signer, bool) {
	rec, err := k.reg.Get(walletID)
	if err != nil {
		return nil, false
	}
	if rec.IsExternal() {
		s, err := k.bridge.Signer(rec.Address)
		if err != nil {
			return nil, false
		}
		return s, true
	}
	return k.cache.Signer(walletID)
}

// ChangePassword re-encrypts walletID under newPassword.
func (k *Keyring) ChangePassword(ctx context.Context, walletID, oldPassword, newPassword string) error {
	if newPassword == "" {
		return ErrEmptyPassword
	}
	old, err := k.reg.Keystore(walletID)
	if err != nil {
		return err
	}

	blob, err := submit(ctx, k.pool, func() (*keystore.EncryptedBlob, error) {
		raw, err := keystore.Decrypt(old, oldPassword)
		if err != nil {
			return nil, err
		}
		defer clear(raw)
		return k.migrator.Upgrade(raw, newPassword)
	}, nil)
	if err != nil {
		return err
	}
	if err := k.reg.ReplaceKeystore(walletID, old, blob); err != nil {
		return err
	}
	k.log.Info("Changed wallet password", "id", walletID)
	return nil
}

// RemoveWallet deletes walletID. Its session and provider connection, if
// any, are dropped.
func (k *Keyring) RemoveWallet(walletID string) error {
	rec, err := k.reg.Get(walletID)
	if err != nil {
		return err
	}
	if k.cache.WalletID() == walletID {
		k.Lock()
	}
	if rec.IsExternal() {
		k.bridge.Disconnect(rec.Address)
	}
	if err := k.reg.Remove(walletID); err != nil {
		return err
	}
	k.log.Info("Removed wallet", "id", walletID, "address", rec.Address)
	return nil
}

// Reset wipes every wallet and the session. It is the recovery path for a
// forgotten password: wallets can only be restored from their mnemonics.
func (k *Keyring) Reset() error {
	k.Logout()
	k.lockout.reset()
	if err := k.reg.ClearAll(); err != nil {
		return err
	}
	k.log.Warn("Cleared all wallets")
	return nil
}

// Wallets lists every known wallet in insertion order.
func (k *Keyring) Wallets() ([]*registry.Record, error) { return k.reg.List() }

// Active returns the active wallet.
func (k *Keyring) Active() (*registry.Record, error) { return k.reg.Active() }

// SetActive switches the active wallet.
func (k *Keyring) SetActive(walletID string) error { return k.reg.SetActive(walletID) }

// Registry exposes the underlying registry.
func (k *Keyring) Registry() *registry.Registry { return k.reg }

// Bridge exposes the external wallet bridge.
func (k *Keyring) Bridge() *external.Bridge { return k.bridge }

// Close logs out and closes the storage backend.
func (k *Keyring) Close() error {
	k.Logout()
	return k.store.Close()
}

// checkAddress makes sure a decrypted key belongs to the record it came from.
func checkAddress(raw []byte, address string) error {
	key, err := wallet.FromPrivateKeyBytes(raw)
	if err != nil {
		return fmt.Errorf("%w: %w", keystore.ErrCorruptKeystore, err)
	}
	defer key.Zero()
	if key.Address != common.HexToAddress(address) {
		return fmt.Errorf("%w: %s", ErrKeyMismatch, address)
	}
	return nil
}
