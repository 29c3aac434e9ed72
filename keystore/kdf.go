package keystore

import (
	"crypto/sha256"
	"fmt"
	"math/bits"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// KDF algorithm identifiers.
const (
	KDFScrypt   = "scrypt"
	KDFArgon2id = "argon2id"
	KDFPBKDF2   = "pbkdf2" // legacy Web3 v3 imports only, never produced
)

// DerivedKeyLen is the only supported derived key length: 16 bytes of AES-128
// key followed by 16 bytes of MAC key.
const DerivedKeyLen = 32

// Upper bounds accepted when reading a blob. Anything beyond is treated as
// corruption. MaxKDFMemory caps what one derivation may allocate, whatever
// the individual parameters say.
const (
	MaxKDFMemory = 1 << 30 // bytes

	maxScryptN       = 1 << 22
	maxScryptR       = 32
	maxScryptP       = 16
	maxArgon2Time    = 16
	maxArgon2Memory  = MaxKDFMemory / 1024 // KiB
	maxArgon2Threads = 255
	maxPBKDF2Iter    = 10_000_000
)

// KDFParams names a password KDF and its cost parameters.
//
// Field meaning per algorithm:
//
//	scrypt:   CPUCost=N, BlockSize=r, Parallelism=p
//	argon2id: CPUCost=time, MemoryCost=KiB, Parallelism=threads
//	pbkdf2:   CPUCost=iterations (hmac-sha256)
type KDFParams struct {
	Algorithm   string `json:"algorithm"`
	CPUCost     uint32 `json:"cpu_cost"`
	MemoryCost  uint32 `json:"memory_cost,omitempty"`
	BlockSize   uint32 `json:"block_size,omitempty"`
	Parallelism uint32 `json:"parallelism,omitempty"`
	KeyLen      uint32 `json:"dklen"`
}

// Presets.
var (
	// RecommendedScrypt follows the OWASP password storage minimum for scrypt.
	RecommendedScrypt = KDFParams{Algorithm: KDFScrypt, CPUCost: 1 << 17, BlockSize: 8, Parallelism: 1, KeyLen: DerivedKeyLen}

	// RecommendedArgon2id is 3 passes over 64 MiB with 4 lanes.
	RecommendedArgon2id = KDFParams{Algorithm: KDFArgon2id, CPUCost: 3, MemoryCost: 64 * 1024, Parallelism: 4, KeyLen: DerivedKeyLen}

	// LightScrypt is cheap enough for tests and development builds. Blobs
	// written with it are migrated as soon as a stronger target is configured.
	LightScrypt = KDFParams{Algorithm: KDFScrypt, CPUCost: 1 << 12, BlockSize: 8, Parallelism: 6, KeyLen: DerivedKeyLen}
)

// String renders the parameters for logs.
func (p KDFParams) String() string {
	switch p.Algorithm {
	case KDFScrypt:
		return fmt.Sprintf("scrypt(n=%d,r=%d,p=%d)", p.CPUCost, p.BlockSize, p.Parallelism)
	case KDFArgon2id:
		return fmt.Sprintf("argon2id(t=%d,m=%dKiB,p=%d)", p.CPUCost, p.MemoryCost, p.Parallelism)
	case KDFPBKDF2:
		return fmt.Sprintf("pbkdf2(c=%d)", p.CPUCost)
	}
	return fmt.Sprintf("unknown(%q)", p.Algorithm)
}

// Validate checks the parameters are well formed and within the accepted bounds.
func (p KDFParams) Validate() error {
	if p.KeyLen != DerivedKeyLen {
		return fmt.Errorf("dklen %d, want %d", p.KeyLen, DerivedKeyLen)
	}
	switch p.Algorithm {
	case KDFScrypt:
		if p.CPUCost < 2 || p.CPUCost > maxScryptN || bits.OnesCount32(p.CPUCost) != 1 {
			return fmt.Errorf("scrypt n=%d must be a power of two in [2, %d]", p.CPUCost, maxScryptN)
		}
		if p.BlockSize < 1 || p.BlockSize > maxScryptR {
			return fmt.Errorf("scrypt r=%d out of range", p.BlockSize)
		}
		if p.Parallelism < 1 || p.Parallelism > maxScryptP {
			return fmt.Errorf("scrypt p=%d out of range", p.Parallelism)
		}
		if mem := scryptMemory(p); mem > MaxKDFMemory {
			return fmt.Errorf("scrypt n=%d r=%d needs %d bytes, limit %d", p.CPUCost, p.BlockSize, mem, MaxKDFMemory)
		}
	case KDFArgon2id:
		if p.CPUCost < 1 || p.CPUCost > maxArgon2Time {
			return fmt.Errorf("argon2id time=%d out of range", p.CPUCost)
		}
		if p.Parallelism < 1 || p.Parallelism > maxArgon2Threads {
			return fmt.Errorf("argon2id threads=%d out of range", p.Parallelism)
		}
		if p.MemoryCost < 8*p.Parallelism || p.MemoryCost > maxArgon2Memory {
			return fmt.Errorf("argon2id memory=%dKiB out of range", p.MemoryCost)
		}
	case KDFPBKDF2:
		if p.CPUCost < 1 || p.CPUCost > maxPBKDF2Iter {
			return fmt.Errorf("pbkdf2 c=%d out of range", p.CPUCost)
		}
	default:
		return fmt.Errorf("unsupported KDF %q", p.Algorithm)
	}
	return nil
}

// scryptMemory is the size of the scrypt V array, 128*r*N bytes.
func scryptMemory(p KDFParams) uint64 {
	return 128 * uint64(p.BlockSize) * uint64(p.CPUCost)
}

// Meets reports whether p uses the same algorithm as min with every cost
// parameter at least as high.
func (p KDFParams) Meets(min KDFParams) bool {
	return p.Algorithm == min.Algorithm &&
		p.CPUCost >= min.CPUCost &&
		p.MemoryCost >= min.MemoryCost &&
		p.BlockSize >= min.BlockSize &&
		p.Parallelism >= min.Parallelism
}

// deriveKey stretches password with salt according to p.
func deriveKey(password string, salt []byte, p KDFParams) ([]byte, error) {
	pw := []byte(password)
	defer clear(pw)

	switch p.Algorithm {
	case KDFScrypt:
		return scrypt.Key(pw, salt, int(p.CPUCost), int(p.BlockSize), int(p.Parallelism), int(p.KeyLen))
	case KDFArgon2id:
		return argon2.IDKey(pw, salt, p.CPUCost, p.MemoryCost, uint8(p.Parallelism), p.KeyLen), nil
	case KDFPBKDF2:
		return pbkdf2.Key(pw, salt, int(p.CPUCost), int(p.KeyLen), sha256.New), nil
	}
	return nil, fmt.Errorf("unsupported KDF %q", p.Algorithm)
}
