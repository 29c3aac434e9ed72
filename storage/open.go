package storage

import (
	"fmt"
	"path/filepath"
)

// Backend names accepted by Open.
const (
	BackendMemory  = "memory"
	BackendFile    = "file"
	BackendBolt    = "bolt"
	BackendLevelDB = "leveldb"
)

// Backends lists the names Open accepts.
var Backends = []string{BackendMemory, BackendFile, BackendBolt, BackendLevelDB}

// Open returns the named backend rooted under dir. The memory backend
// ignores dir.
func Open(backend, dir string) (Store, error) {
	if backend != BackendMemory && dir == "" {
		return nil, ErrInvalidBaseDir
	}
	switch backend {
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(filepath.Join(dir, "kv"))
	case BackendBolt:
		return OpenBoltStore(filepath.Join(dir, "wallets.db"))
	case BackendLevelDB:
		return OpenLevelStore(filepath.Join(dir, "leveldb"))
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
