// Package signer produces and checks the operator signatures that authorize
// investments, SAFT terms and position transfers.
//
// A signature covers a 32-byte digest wrapped as an EIP-191 personal message:
//
//	hash = keccak256("\x19Ethereum Signed Message:\n32" || digest)
//	sig  = r || s || v   (65 bytes, v in {27, 28})
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignatureLength is the length of an encoded signature.
const SignatureLength = crypto.SignatureLength

// MessageHash returns the EIP-191 hash of digest.
func MessageHash(digest common.Hash) []byte {
	return accounts.TextHash(digest[:])
}

// Sign signs digest with key.
func Sign(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	if key == nil {
		return nil, ErrNilKey
	}
	sig, err := crypto.Sign(MessageHash(digest), key)
	if err != nil {
		return nil, fmt.Errorf("signer: sign: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// Recover returns the address that signed digest. Only v in {27, 28} and
// low-s values are accepted, so every signature has exactly one valid
// encoding.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
	}
	if v := sig[crypto.RecoveryIDOffset]; v != 27 && v != 28 {
		return common.Address{}, fmt.Errorf("%w: v %d", ErrInvalidSignature, v)
	}
	s := make([]byte, SignatureLength)
	copy(s, sig)
	s[crypto.RecoveryIDOffset] -= 27
	r := new(big.Int).SetBytes(s[:32])
	sv := new(big.Int).SetBytes(s[32:64])
	if !crypto.ValidateSignatureValues(s[crypto.RecoveryIDOffset], r, sv, true) {
		return common.Address{}, fmt.Errorf("%w: bad r, s or v", ErrInvalidSignature)
	}
	pub, err := crypto.SigToPub(MessageHash(digest), s)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that sig over digest was produced by want.
func Verify(want common.Address, digest common.Hash, sig []byte) error {
	got, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if got != want || want == (common.Address{}) {
		return fmt.Errorf("%w: signed by %s", ErrInvalidSignature, got.Hex())
	}
	return nil
}
