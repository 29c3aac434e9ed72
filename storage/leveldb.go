package storage

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	lerrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelStore keeps values in a LevelDB database.
type LevelStore struct {
	db *leveldb.DB
}

var _ Store = (*LevelStore)(nil)

// syncWrites makes Set and Delete durable before they return.
var syncWrites = &opt.WriteOptions{Sync: true}

// OpenLevelStore opens or creates the LevelDB database in dir. A database
// whose manifest is corrupted is recovered from its tables.
func OpenLevelStore(dir string) (*LevelStore, error) {
	if dir == "" {
		return nil, ErrInvalidBaseDir
	}
	options := &opt.Options{ErrorIfMissing: false}
	db, err := leveldb.OpenFile(dir, options)
	if lerrors.IsCorrupted(err) {
		db, err = leveldb.RecoverFile(dir, options)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open leveldb: %w", ErrUnavailable, err)
	}
	return &LevelStore{db: db}, nil
}

func (s *LevelStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	value, err := s.db.Get([]byte(key), nil)
	if err != nil {
		return nil, levelErr(err)
	}
	return value, nil
}

func (s *LevelStore) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return levelErr(s.db.Put([]byte(key), value, syncWrites))
}

func (s *LevelStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return levelErr(s.db.Delete([]byte(key), syncWrites))
}

// Close closes the underlying database.
func (s *LevelStore) Close() error { return s.db.Close() }

func levelErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, leveldb.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, leveldb.ErrClosed):
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
