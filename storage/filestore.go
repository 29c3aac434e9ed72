package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// lockFileName is the cross-process lock held while writing.
const lockFileName = ".lock"

// FileStore implements Store using the local filesystem.
// Values are stored at: {baseDir}/{hex(sha256(key))[:2]}/{hex(sha256(key))}
// The first byte (2 hex chars) is used as a subdirectory for sharding.
//
// Writes go to a temp file in the shard directory which is then renamed over
// the target, so a crash never leaves a half-written value. A flock on
// {baseDir}/.lock serializes writers across processes sharing the directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
	lock    *flock.Flock
	closed  bool
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a file-based store rooted at baseDir.
// The directory is created if it does not exist.
func NewFileStore(baseDir string) (*FileStore, error) {
	if baseDir == "" {
		return nil, ErrInvalidBaseDir
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &FileStore{
		baseDir: baseDir,
		lock:    flock.New(filepath.Join(baseDir, lockFileName)),
	}, nil
}

// KeyToPath converts a key to its filesystem path.
// Uses the first byte of sha256(key) as subdirectory: {base}/{ab}/{abcdef...}
func KeyToPath(baseDir, key string) string {
	sum := sha256.Sum256([]byte(key))
	hexHash := hex.EncodeToString(sum[:])
	return filepath.Join(baseDir, hexHash[:2], hexHash)
}

// Get reads the value for key. Readers take no file lock: a value is only
// ever replaced by rename.
func (s *FileStore) Get(key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	data, err := os.ReadFile(KeyToPath(s.baseDir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return data, nil
}

// Set atomically replaces the value for key.
func (s *FileStore) Set(key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: exclusive lock: %w", ErrUnavailable, err)
	}
	defer s.lock.Unlock()

	path := KeyToPath(s.baseDir, key)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0700); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if err := writeFileAtomic(shard, path, value); err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the value for key. A missing key is not an error.
func (s *FileStore) Delete(key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("%w: exclusive lock: %w", ErrUnavailable, err)
	}
	defer s.lock.Unlock()

	if err := os.Remove(KeyToPath(s.baseDir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return nil
}

// Close marks the store closed and releases the lock file handle.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.lock.Close()
}

// writeFileAtomic writes data to a temp file in dir, fsyncs it and renames it
// over path.
func writeFileAtomic(dir, path string, data []byte) error {
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
