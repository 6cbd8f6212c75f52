package signer

import "errors"

var (
	// ErrInvalidSignature indicates a malformed signature or one not produced by the expected signer.
	ErrInvalidSignature = errors.New("signer: invalid signature")

	// ErrNilKey indicates a missing private key.
	ErrNilKey = errors.New("signer: nil private key")

	// ErrInvalidMnemonic indicates the mnemonic fails BIP39 validation.
	ErrInvalidMnemonic = errors.New("signer: invalid BIP39 mnemonic")

	// ErrInvalidEntropy indicates entropy bits is not 128 or 256.
	ErrInvalidEntropy = errors.New("signer: entropy bits must be 128 or 256")

	// ErrInvalidSeed indicates the seed is empty.
	ErrInvalidSeed = errors.New("signer: invalid seed")

	// ErrDerivationFailed indicates BIP32 key derivation failed.
	ErrDerivationFailed = errors.New("signer: key derivation failed")

	// ErrDecryptionFailed indicates wrong password or corrupted keystore data.
	ErrDecryptionFailed = errors.New("signer: seed decryption failed (wrong password or corrupted data)")

	// ErrChecksumMismatch indicates seed checksum verification failed after decryption.
	ErrChecksumMismatch = errors.New("signer: seed checksum mismatch")
)
