package registry

import "errors"

var (
	// ErrInvalidRecord indicates a record that violates the registry invariants.
	ErrInvalidRecord = errors.New("registry: invalid wallet record")

	// ErrInvalidAddress indicates a string that is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("registry: invalid address")

	// ErrDuplicateAddress indicates the address is already held by another record.
	ErrDuplicateAddress = errors.New("registry: address already registered")

	// ErrUnknownWallet indicates no record has the given id or address.
	ErrUnknownWallet = errors.New("registry: unknown wallet")

	// ErrNoActiveWallet indicates the registry is empty.
	ErrNoActiveWallet = errors.New("registry: no active wallet")

	// ErrNoKeystore indicates an external wallet, which has no local key.
	ErrNoKeystore = errors.New("registry: wallet has no keystore")

	// ErrKeystoreChanged indicates a compare-and-swap lost to a concurrent update.
	ErrKeystoreChanged = errors.New("registry: keystore changed since it was read")

	// ErrCorruptState indicates the persisted registry document cannot be decoded.
	ErrCorruptState = errors.New("registry: corrupt registry state")
)
