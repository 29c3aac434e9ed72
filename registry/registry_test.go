package registry

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ogbo/walletcore/keystore"
	"github.com/ogbo/walletcore/storage"
)

// --- Helper functions ---

var lightKDF = keystore.KDFParams{
	Algorithm: keystore.KDFScrypt, CPUCost: 1 << 10, BlockSize: 8, Parallelism: 1, KeyLen: keystore.DerivedKeyLen,
}

func testBlob(t *testing.T) *keystore.EncryptedBlob {
	t.Helper()
	blob, err := keystore.Encrypt([]byte("0123456789abcdef0123456789abcdef"), "pw", lightKDF)
	require.NoError(t, err)
	return blob
}

// addr returns a distinct lowercase address for n.
func addr(n int) string {
	return fmt.Sprintf("0x%040x", n+0xabc)
}

func localRecord(t *testing.T, n int) *Record {
	return &Record{Address: addr(n), Kind: KindGenerated, Network: "ethereum", Keystore: testBlob(t)}
}

func newTestRegistry(t *testing.T) (*Registry, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return New(store, WithClock(func() time.Time { return fixed })), store
}

// failingStore fails every Set after arm is called.
type failingStore struct {
	storage.Store
	mu    sync.Mutex
	armed bool
}

func (f *failingStore) arm() {
	f.mu.Lock()
	f.armed = true
	f.mu.Unlock()
}

func (f *failingStore) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armed {
		return fmt.Errorf("%w: disk full", storage.ErrUnavailable)
	}
	return f.Store.Set(key, value)
}

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

// --- Save ---

func TestSave_AssignsDefaults(t *testing.T) {
	reg, _ := newTestRegistry(t)

	in := localRecord(t, 1)
	in.Address = strings.ToLower("0x9858EfFD232B4033E47d90003D41EC34EcaEda94")
	rec, err := reg.Save(in)
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "Wallet 1", rec.Name)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), rec.CreatedAt)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", rec.Address)
}

func TestSave_FirstWalletBecomesActive(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Active()
	assert.ErrorIs(t, err, ErrNoActiveWallet)

	first, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)
	_, err = reg.Save(localRecord(t, 2))
	require.NoError(t, err)

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestSaveActive(t *testing.T) {
	cs := &countingStore{Store: storage.NewMemoryStore()}
	reg := New(cs)

	first, err := reg.SaveActive(localRecord(t, 1))
	require.NoError(t, err)
	second, err := reg.SaveActive(localRecord(t, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, cs.sets, "record and active pointer go out in one write")

	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	// Updating an existing record in place can also activate it.
	first.Name = "Savings"
	_, err = reg.SaveActive(first)
	require.NoError(t, err)
	active, err = reg.Active()
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "Savings", active.Name)
}

func TestSaveActive_FailedWriteChangesNothing(t *testing.T) {
	fs := &failingStore{Store: storage.NewMemoryStore()}
	reg := New(fs)
	first, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)

	fs.arm()
	_, err = reg.SaveActive(localRecord(t, 2))
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	list, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
}

func TestSave_PreservesInsertionOrderAndNames(t *testing.T) {
	reg, _ := newTestRegistry(t)
	for i := 0; i < 4; i++ {
		_, err := reg.Save(localRecord(t, i))
		require.NoError(t, err)
	}

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 4)
	for i, rec := range list {
		assert.Equal(t, fmt.Sprintf("Wallet %d", i+1), rec.Name)
		assert.True(t, strings.EqualFold(addr(i), rec.Address))
	}
}

func TestSave_DuplicateAddress(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)

	dup := localRecord(t, 1)
	dup.Address = strings.ToUpper(dup.Address[2:])
	_, err = reg.Save(dup)
	assert.ErrorIs(t, err, ErrDuplicateAddress)

	list, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestSave_UpdateInPlace(t *testing.T) {
	reg, _ := newTestRegistry(t)
	first, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)
	_, err = reg.Save(localRecord(t, 2))
	require.NoError(t, err)

	upd := first.Clone()
	upd.Name = ""
	upd.Network = "polygon"
	got, err := reg.Save(upd)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "Wallet 1", got.Name)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "polygon", list[0].Network)
}

func TestSave_InvalidRecords(t *testing.T) {
	reg, _ := newTestRegistry(t)
	blob := testBlob(t)

	tests := []struct {
		name string
		rec  *Record
	}{
		{"nil", nil},
		{"bad address", &Record{Address: "0x1234", Kind: KindImported, Keystore: blob}},
		{"unknown kind", &Record{Address: addr(1), Kind: "custodial", Keystore: blob}},
		{"local without keystore", &Record{Address: addr(1), Kind: KindImported}},
		{"external with keystore", &Record{Address: addr(1), Kind: KindExternal, Keystore: blob}},
		{"corrupt keystore", &Record{Address: addr(1), Kind: KindImported, Keystore: &keystore.EncryptedBlob{Version: 4}}},
		{"unknown network", &Record{Address: addr(1), Kind: KindExternal, Network: "solana"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Save(tt.rec)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}

	list, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestSave_ReturnsCopies(t *testing.T) {
	reg, _ := newTestRegistry(t)
	in := localRecord(t, 1)
	saved, err := reg.Save(in)
	require.NoError(t, err)

	saved.Name = "mutated"
	saved.Keystore.MAC[0] ^= 0xff
	in.Keystore.MAC[1] ^= 0xff

	got, err := reg.Get(saved.ID)
	require.NoError(t, err)
	assert.Equal(t, "Wallet 1", got.Name)
	_, err = keystore.Decrypt(got.Keystore, "pw")
	assert.NoError(t, err)
}

// --- Lookup ---

func TestGetAndFindByAddress(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec, err := reg.Save(localRecord(t, 7))
	require.NoError(t, err)

	got, err := reg.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Address, got.Address)

	byAddr, err := reg.FindByAddress(strings.ToUpper(rec.Address[2:]))
	require.NoError(t, err)
	assert.Equal(t, rec.ID, byAddr.ID)

	_, err = reg.Get("missing")
	assert.ErrorIs(t, err, ErrUnknownWallet)
	_, err = reg.FindByAddress(addr(99))
	assert.ErrorIs(t, err, ErrUnknownWallet)
	_, err = reg.FindByAddress("not-an-address")
	assert.ErrorIs(t, err, ErrInvalidAddress)
}

// --- Active pointer ---

func TestSetActive(t *testing.T) {
	reg, _ := newTestRegistry(t)
	_, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)
	second, err := reg.Save(localRecord(t, 2))
	require.NoError(t, err)

	require.NoError(t, reg.SetActive(second.ID))
	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	err = reg.SetActive("nope")
	assert.ErrorIs(t, err, ErrUnknownWallet)
	active, err = reg.Active()
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID, "failed SetActive must not move the pointer")
}

func TestRemove(t *testing.T) {
	reg, _ := newTestRegistry(t)
	var ids []string
	for i := 0; i < 3; i++ {
		rec, err := reg.Save(localRecord(t, i))
		require.NoError(t, err)
		ids = append(ids, rec.ID)
	}
	require.NoError(t, reg.SetActive(ids[1]))

	// Removing the active wallet moves the pointer to the last remaining one.
	require.NoError(t, reg.Remove(ids[1]))
	active, err := reg.Active()
	require.NoError(t, err)
	assert.Equal(t, ids[2], active.ID)

	// Removing a non-active wallet leaves the pointer alone.
	require.NoError(t, reg.Remove(ids[0]))
	active, err = reg.Active()
	require.NoError(t, err)
	assert.Equal(t, ids[2], active.ID)

	require.NoError(t, reg.Remove(ids[2]))
	_, err = reg.Active()
	assert.ErrorIs(t, err, ErrNoActiveWallet)

	assert.ErrorIs(t, reg.Remove(ids[2]), ErrUnknownWallet)
}

func TestClearAll(t *testing.T) {
	reg, store := newTestRegistry(t)
	for i := 0; i < 3; i++ {
		_, err := reg.Save(localRecord(t, i))
		require.NoError(t, err)
	}

	require.NoError(t, reg.ClearAll())
	list, err := reg.List()
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = reg.Active()
	assert.ErrorIs(t, err, ErrNoActiveWallet)
	assert.Equal(t, 0, store.Len())

	// Idempotent.
	require.NoError(t, reg.ClearAll())

	// Naming restarts after a clear.
	rec, err := reg.Save(localRecord(t, 5))
	require.NoError(t, err)
	assert.Equal(t, "Wallet 1", rec.Name)
}

// --- Keystore access ---

func TestKeystore(t *testing.T) {
	reg, _ := newTestRegistry(t)
	local, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)
	ext, err := reg.Save(&Record{Address: addr(2), Kind: KindExternal, Metadata: map[string]string{"connector": "injected"}})
	require.NoError(t, err)

	blob, err := reg.Keystore(local.ID)
	require.NoError(t, err)
	assert.True(t, local.Keystore.Equal(blob))

	_, err = reg.Keystore(ext.ID)
	assert.ErrorIs(t, err, ErrNoKeystore)
	_, err = reg.Keystore("missing")
	assert.ErrorIs(t, err, ErrUnknownWallet)
}

func TestReplaceKeystore_CompareAndSwap(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rec, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)

	next := testBlob(t)
	require.NoError(t, reg.ReplaceKeystore(rec.ID, rec.Keystore, next))

	got, err := reg.Keystore(rec.ID)
	require.NoError(t, err)
	assert.True(t, next.Equal(got))

	// A second swap from the stale blob loses.
	err = reg.ReplaceKeystore(rec.ID, rec.Keystore, testBlob(t))
	assert.ErrorIs(t, err, ErrKeystoreChanged)
	got, err = reg.Keystore(rec.ID)
	require.NoError(t, err)
	assert.True(t, next.Equal(got))

	assert.ErrorIs(t, reg.ReplaceKeystore(rec.ID, next, nil), ErrInvalidRecord)
	assert.ErrorIs(t, reg.ReplaceKeystore("missing", next, testBlob(t)), ErrUnknownWallet)
}

// --- Persistence ---

func TestPersistsThroughStore(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	reg := New(store)
	rec, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store2, err := storage.NewFileStore(dir)
	require.NoError(t, err)
	defer store2.Close()
	reg2 := New(store2)

	got, err := reg2.Get(rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.Address, got.Address)
	assert.True(t, rec.Keystore.Equal(got.Keystore))
	active, err := reg2.Active()
	require.NoError(t, err)
	assert.Equal(t, rec.ID, active.ID)
}

func TestWithKey_Namespaces(t *testing.T) {
	store := storage.NewMemoryStore()
	a := New(store, WithKey("profile-a"))
	b := New(store, WithKey("profile-b"))

	_, err := a.Save(localRecord(t, 1))
	require.NoError(t, err)
	list, err := b.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestStorageFailureLeavesStateUnchanged(t *testing.T) {
	fs := &failingStore{Store: storage.NewMemoryStore()}
	reg := New(fs)
	rec, err := reg.Save(localRecord(t, 1))
	require.NoError(t, err)

	fs.arm()
	_, err = reg.Save(localRecord(t, 2))
	assert.ErrorIs(t, err, storage.ErrUnavailable)
	err = reg.ReplaceKeystore(rec.ID, rec.Keystore, testBlob(t))
	assert.ErrorIs(t, err, storage.ErrUnavailable)

	list, err := reg.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, rec.Keystore.Equal(list[0].Keystore))
}

func TestCorruptState(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", "{{{"},
		{"wrong version", `{"version":2,"wallets":[]}`},
		{"record without id", `{"version":1,"wallets":[{"address":"0x0000000000000000000000000000000000000abc","kind":"external"}]}`},
		{"duplicate address", `{"version":1,"wallets":[
			{"id":"a","address":"0x0000000000000000000000000000000000000abc","kind":"external"},
			{"id":"b","address":"0x0000000000000000000000000000000000000ABC","kind":"external"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storage.NewMemoryStore()
			require.NoError(t, store.Set(DefaultKey, []byte(tt.doc)))
			_, err := New(store).List()
			assert.ErrorIs(t, err, ErrCorruptState)
		})
	}
}

func TestDanglingActiveIsRepaired(t *testing.T) {
	store := storage.NewMemoryStore()
	doc := `{"version":1,"active":"gone","wallets":[
		{"id":"a","address":"0x0000000000000000000000000000000000000abc","kind":"external"},
		{"id":"b","address":"0x0000000000000000000000000000000000000abd","kind":"external"}]}`
	require.NoError(t, store.Set(DefaultKey, []byte(doc)))

	active, err := New(store).Active()
	require.NoError(t, err)
	assert.Equal(t, "b", active.ID)
}

// --- Concurrency ---

func TestConcurrentSavesAreNotLost(t *testing.T) {
	reg, _ := newTestRegistry(t)
	blob := testBlob(t)

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := reg.Save(&Record{Address: addr(i), Kind: KindImported, Keystore: blob})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := reg.List()
	require.NoError(t, err)
	assert.Len(t, list, 20)

	names := make(map[string]bool)
	for _, rec := range list {
		assert.False(t, names[rec.Name], "duplicate name %q", rec.Name)
		names[rec.Name] = true
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{ErrInvalidRecord, ErrInvalidAddress, ErrDuplicateAddress, ErrUnknownWallet,
		ErrNoActiveWallet, ErrNoKeystore, ErrKeystoreChanged, ErrCorruptState}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.False(t, errors.Is(a, b))
			}
		}
	}
}
