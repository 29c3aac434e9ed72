package external

import "errors"

var (
	// ErrNotExternal indicates the address belongs to a wallet with a local key.
	ErrNotExternal = errors.New("external: wallet is not external")

	// ErrNotConnected indicates there is no live provider for the address.
	ErrNotConnected = errors.New("external: wallet not connected")

	// ErrNilProvider indicates Connect was called without a provider.
	ErrNilProvider = errors.New("external: nil provider")
)
