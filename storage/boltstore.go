package storage

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"
)

var bucketKV = []byte("kv")

// BoltStore keeps values in a single bbolt bucket.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the bbolt database at dbPath.
// The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("%w: create directory: %w", ErrUnavailable, err)
	}
	// bbolt holds an exclusive file lock; fail rather than hang when another
	// process has the database open.
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bolt db: %w", ErrUnavailable, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketKV); err != nil {
			return fmt.Errorf("boltstore: create bucket %q: %w", bucketKV, err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketKV).Get([]byte(key))
		if data == nil {
			return ErrNotFound
		}
		// Bolt memory is only valid inside the transaction.
		value = bytes.Clone(data)
		return nil
	})
	if err != nil {
		return nil, boltErr(err)
	}
	return value, nil
}

func (s *BoltStore) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return boltErr(s.db.Update(func(tx *bbolt.Tx) error {
		// bbolt rejects nil values.
		if value == nil {
			value = []byte{}
		}
		return tx.Bucket(bucketKV).Put([]byte(key), value)
	}))
}

func (s *BoltStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return boltErr(s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketKV).Delete([]byte(key))
	}))
}

// Close closes the underlying database.
func (s *BoltStore) Close() error { return s.db.Close() }

func boltErr(err error) error {
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		return err
	case errors.Is(err, berrors.ErrDatabaseNotOpen):
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}
