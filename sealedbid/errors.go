package sealedbid

import "errors"

var (
	// ErrInvalidPublicKey indicates a point that is not on the curve, is the
	// point at infinity, or has a coordinate outside the base field.
	ErrInvalidPublicKey = errors.New("sealedbid: invalid public key")

	// ErrInvalidPrivateKey indicates a scalar outside [1, n-1].
	ErrInvalidPrivateKey = errors.New("sealedbid: invalid private key")

	// ErrKeyMismatch indicates G * privateKey does not equal the public key.
	ErrKeyMismatch = errors.New("sealedbid: private key does not match public key")

	// ErrInvalidSalt indicates a bid salt that is not the bidder's address.
	ErrInvalidSalt = errors.New("sealedbid: invalid salt")

	// ErrPublicKeyMismatch indicates a bid sealed under a different sale key.
	ErrPublicKeyMismatch = errors.New("sealedbid: bid public key does not match sale key")

	// ErrNilInput indicates a missing amount, key or salt.
	ErrNilInput = errors.New("sealedbid: nil input")
)
