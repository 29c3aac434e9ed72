package keyring

import (
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common/mclock"
	"github.com/ethereum/go-ethereum/log"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/storage"
	"github.com/ogbo/walletcore/wallet"
)

// Defaults applied by New for zero-valued Options fields.
const (
	DefaultMaxUnlockAttempts = 5
	DefaultLockout           = 60 * time.Second
	DefaultEntropyBits       = wallet.Mnemonic12Words
)

// Options configures a Keyring. Only Store is required.
type Options struct {
	Store       storage.Store
	RegistryKey string // storage key of the registry document; registry.DefaultKey if empty

	// KDF is used for new keystores and is the migration target for old ones.
	KDF keystore.KDFParams

	// Workers bounds how many KDF computations run at once.
	Workers int

	MaxUnlockAttempts int
	Lockout           time.Duration

	EntropyBits int
	Factory     *wallet.Factory

	Clock  mclock.Clock
	Logger log.Logger
}

func (o *Options) setDefaults() {
	if o.KDF == (keystore.KDFParams{}) {
		o.KDF = keystore.RecommendedScrypt
	}
	if o.Workers <= 0 {
		o.Workers = min(runtime.NumCPU(), 4)
	}
	if o.MaxUnlockAttempts <= 0 {
		o.MaxUnlockAttempts = DefaultMaxUnlockAttempts
	}
	if o.Lockout <= 0 {
		o.Lockout = DefaultLockout
	}
	if o.EntropyBits == 0 {
		o.EntropyBits = DefaultEntropyBits
	}
	if o.Factory == nil {
		o.Factory = &wallet.Factory{}
	}
	if o.Clock == nil {
		o.Clock = mclock.System{}
	}
	if o.Logger == nil {
		o.Logger = log.Root()
	}
}
