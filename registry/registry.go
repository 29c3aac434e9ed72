// Package registry persists the list of known wallets and the active-wallet
// pointer through a storage.Store.
//
// The whole registry is one JSON document under one key, so every mutation is
// a single atomic Set. Mutations are serialized by a mutex held across the
// read-modify-write.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/storage"
)

// DefaultKey is the storage key the registry document is kept under.
const DefaultKey = "walletcore/registry"

// Registry is the wallet list plus the active-wallet pointer.
type Registry struct {
	mu    sync.Mutex
	store storage.Store
	key   string
	now   func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithKey stores the registry document under key instead of DefaultKey.
func WithKey(key string) Option {
	return func(r *Registry) { r.key = key }
}

// WithClock sets the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// New returns a Registry persisting through store.
func New(store storage.Store, opts ...Option) *Registry {
	r := &Registry{store: store, key: DefaultKey, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save inserts rec, or updates the record with the same ID in place. An empty
// ID, Name or CreatedAt is filled in. The first wallet saved into an empty
// registry becomes active. The stored copy is returned.
func (r *Registry) Save(rec *Record) (*Record, error) {
	return r.save(rec, false)
}

// SaveActive is Save followed by SetActive on the stored record, written as
// one update: either both changes persist or neither does.
func (r *Registry) SaveActive(rec *Record) (*Record, error) {
	return r.save(rec, true)
}

func (r *Registry) save(rec *Record, activate bool) (*Record, error) {
	if rec == nil {
		return nil, fmt.Errorf("%w: nil record", ErrInvalidRecord)
	}
	in := rec.Clone()
	if err := in.normalize(); err != nil {
		return nil, err
	}
	addr, _ := ParseAddress(in.Address)

	var saved *Record
	err := r.update(func(s *State) error {
		if i := s.indexOfAddress(addr); i >= 0 && s.Wallets[i].ID != in.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateAddress, in.Address)
		}

		if i := s.indexOf(in.ID); in.ID != "" && i >= 0 {
			prev := s.Wallets[i]
			if in.Name == "" {
				in.Name = prev.Name
			}
			if in.CreatedAt.IsZero() {
				in.CreatedAt = prev.CreatedAt
			}
			s.Wallets[i] = in
			if activate {
				s.Active = in.ID
			}
			saved = in.Clone()
			return nil
		}

		if in.ID == "" {
			in.ID = uuid.NewString()
		}
		if in.Name == "" {
			in.Name = GenerateName(s.names())
		}
		if in.CreatedAt.IsZero() {
			in.CreatedAt = r.now().UTC()
		}
		s.Wallets = append(s.Wallets, in)
		if s.Active == "" || activate {
			s.Active = in.ID
		}
		saved = in.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// List returns every record in insertion order.
func (r *Registry) List() ([]*Record, error) {
	var out []*Record
	err := r.view(func(s *State) error {
		out = make([]*Record, len(s.Wallets))
		for i, rec := range s.Wallets {
			out[i] = rec.Clone()
		}
		return nil
	})
	return out, err
}

// Get returns the record with id, or ErrUnknownWallet.
func (r *Registry) Get(id string) (*Record, error) {
	var out *Record
	err := r.view(func(s *State) error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		out = s.Wallets[i].Clone()
		return nil
	})
	return out, err
}

// FindByAddress looks a record up by address, ignoring case.
func (r *Registry) FindByAddress(address string) (*Record, error) {
	addr, err := ParseAddress(address)
	if err != nil {
		return nil, err
	}
	var out *Record
	err = r.view(func(s *State) error {
		i := s.indexOfAddress(addr)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, addr.Hex())
		}
		out = s.Wallets[i].Clone()
		return nil
	})
	return out, err
}

// Active returns the active record, or ErrNoActiveWallet when the registry
// is empty.
func (r *Registry) Active() (*Record, error) {
	var out *Record
	err := r.view(func(s *State) error {
		if s.Active == "" {
			return ErrNoActiveWallet
		}
		out = s.Wallets[s.indexOf(s.Active)].Clone()
		return nil
	})
	return out, err
}

// SetActive moves the active pointer to id.
func (r *Registry) SetActive(id string) error {
	return r.update(func(s *State) error {
		if s.indexOf(id) < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		s.Active = id
		return nil
	})
}

// Remove deletes the record with id. When it was active, the last remaining
// record becomes active.
func (r *Registry) Remove(id string) error {
	return r.update(func(s *State) error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		s.Wallets = append(s.Wallets[:i], s.Wallets[i+1:]...)
		if s.Active == id {
			s.Active = ""
		}
		s.repairActive()
		return nil
	})
}

// ClearAll deletes every record and the active pointer. It is idempotent.
func (r *Registry) ClearAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.Delete(r.key); err != nil {
		return fmt.Errorf("registry: clear: %w", err)
	}
	return nil
}

// Keystore returns a copy of the encrypted blob of a local wallet.
func (r *Registry) Keystore(id string) (*keystore.EncryptedBlob, error) {
	var out *keystore.EncryptedBlob
	err := r.view(func(s *State) error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		rec := s.Wallets[i]
		if rec.IsExternal() {
			return fmt.Errorf("%w: %s", ErrNoKeystore, rec.Address)
		}
		out = rec.Keystore.Clone()
		return nil
	})
	return out, err
}

// ReplaceKeystore swaps the blob of wallet id from old to replacement. It
// fails with ErrKeystoreChanged, leaving the record untouched, when the stored
// blob is no longer old.
func (r *Registry) ReplaceKeystore(id string, old, replacement *keystore.EncryptedBlob) error {
	if err := replacement.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return r.update(func(s *State) error {
		i := s.indexOf(id)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrUnknownWallet, id)
		}
		rec := s.Wallets[i]
		if rec.IsExternal() {
			return fmt.Errorf("%w: %s", ErrNoKeystore, rec.Address)
		}
		if !rec.Keystore.Equal(old) {
			return fmt.Errorf("%w: %s", ErrKeystoreChanged, id)
		}
		rec.Keystore = replacement.Clone()
		return nil
	})
}

// update runs fn on the current state and persists the result if fn
// succeeds. The lock is held across load, fn and persist.
func (r *Registry) update(fn func(s *State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load()
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	return r.persist(s)
}

func (r *Registry) view(fn func(s *State) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.load()
	if err != nil {
		return err
	}
	return fn(s)
}

func (r *Registry) load() (*State, error) {
	data, err := r.store.Get(r.key)
	if errors.Is(err, storage.ErrNotFound) {
		return NewState(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("registry: load: %w", err)
	}

	s := NewState()
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	s.repairActive()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	return s, nil
}

func (r *Registry) persist(s *State) error {
	if len(s.Wallets) == 0 {
		s.Active = ""
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("registry: encode: %w", err)
	}
	if err := r.store.Set(r.key, data); err != nil {
		return fmt.Errorf("registry: save: %w", err)
	}
	return nil
}
