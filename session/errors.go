package session

import "errors"

var (
	// ErrSessionClosed indicates the signer's session was cleared or replaced.
	ErrSessionClosed = errors.New("session: session closed")

	// ErrInvalidKey indicates key material that is not a valid secp256k1 private key.
	ErrInvalidKey = errors.New("session: invalid private key")

	// ErrInvalidSignature indicates a malformed 65-byte signature.
	ErrInvalidSignature = errors.New("session: invalid signature")

	// ErrSignatureMismatch indicates a well-formed signature by a different address.
	ErrSignatureMismatch = errors.New("session: signature does not match address")
)
