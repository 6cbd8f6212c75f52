// Package sealedbid implements the elliptic-curve sealing of auction bids.
//
// Bids are sealed on the BN254 (alt_bn128) G1 group, the curve exposed by the
// Ethereum ecAdd/ecMul precompiles:
//
//	y^2 = x^3 + 3 over F_p
//	G   = (1, 2)
//	p   = 0x30644e72e131a029b85045b68181585d97816a916871ca8d3c208c16d87cfd47
//
// A sale fixes one public key P at creation. The amount of a bid is hidden
// with a one-time pad derived from the shared point S = P * d:
//
//	pad        = keccak256(S.x || S.y || salt)
//	ciphertext = amount XOR pad
//
// where salt is the bidder's address as a 256-bit integer. Nobody but the
// key holder can open a bid until d is published after the auction; the sale
// checks G * d == P before accepting d.
package sealedbid

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fp"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/holiman/uint256"
)

var (
	// FieldModulus is the base field modulus p.
	FieldModulus = fp.Modulus()

	// GroupOrder is the order n of the G1 subgroup.
	GroupOrder = fr.Modulus()

	// Generator is the base point G = (1, 2).
	Generator = PublicKey{X: uint256.NewInt(1), Y: uint256.NewInt(2)}
)

// PublicKey is an affine G1 point.
type PublicKey struct {
	X *uint256.Int `json:"x"`
	Y *uint256.Int `json:"y"`
}

// IsZero reports whether the key is unset.
func (k PublicKey) IsZero() bool {
	return (k.X == nil || k.X.IsZero()) && (k.Y == nil || k.Y.IsZero())
}

// Equal reports whether both keys are the same point.
func (k PublicKey) Equal(o PublicKey) bool {
	if k.X == nil || k.Y == nil || o.X == nil || o.Y == nil {
		return k.IsZero() && o.IsZero()
	}
	return k.X.Eq(o.X) && k.Y.Eq(o.Y)
}

// Clone returns a deep copy.
func (k PublicKey) Clone() PublicKey {
	var c PublicKey
	if k.X != nil {
		c.X = k.X.Clone()
	}
	if k.Y != nil {
		c.Y = k.Y.Clone()
	}
	return c
}

// String returns "(x, y)" in hex.
func (k PublicKey) String() string {
	if k.X == nil || k.Y == nil {
		return "(nil)"
	}
	return fmt.Sprintf("(%s, %s)", k.X.Hex(), k.Y.Hex())
}

// ValidatePublicKey checks that k is a finite point on the curve with both
// coordinates reduced modulo p.
func ValidatePublicKey(k PublicKey) error {
	_, err := toAffine(k)
	return err
}

// PublicKeyFromPrivate computes G * d.
func PublicKeyFromPrivate(d *uint256.Int) (PublicKey, error) {
	if err := validatePrivate(d); err != nil {
		return PublicKey{}, err
	}
	_, _, g, _ := bn254.Generators()
	var pub bn254.G1Affine
	pub.ScalarMultiplication(&g, d.ToBig())
	return fromAffine(&pub), nil
}

// VerifyKeyPair checks that d is the private key of pub.
func VerifyKeyPair(pub PublicKey, d *uint256.Int) error {
	if err := ValidatePublicKey(pub); err != nil {
		return err
	}
	derived, err := PublicKeyFromPrivate(d)
	if err != nil {
		return err
	}
	if !derived.Equal(pub) {
		return ErrKeyMismatch
	}
	return nil
}

// GenerateKey draws a private key uniformly from [1, n-1] using r, or
// crypto/rand when r is nil.
func GenerateKey(r io.Reader) (*uint256.Int, PublicKey, error) {
	if r == nil {
		r = rand.Reader
	}
	limit := new(big.Int).Sub(GroupOrder, big.NewInt(1))
	k, err := rand.Int(r, limit)
	if err != nil {
		return nil, PublicKey{}, fmt.Errorf("sealedbid: generate key: %w", err)
	}
	k.Add(k, big.NewInt(1))
	d, _ := uint256.FromBig(k)
	pub, err := PublicKeyFromPrivate(d)
	if err != nil {
		return nil, PublicKey{}, err
	}
	return d, pub, nil
}

func validatePrivate(d *uint256.Int) error {
	if d == nil || d.IsZero() || d.ToBig().Cmp(GroupOrder) >= 0 {
		return ErrInvalidPrivateKey
	}
	return nil
}

func toAffine(k PublicKey) (*bn254.G1Affine, error) {
	if k.X == nil || k.Y == nil || k.IsZero() {
		return nil, ErrInvalidPublicKey
	}
	x, y := k.X.ToBig(), k.Y.ToBig()
	// SetBigInt reduces silently; unreduced coordinates must be rejected.
	if x.Cmp(FieldModulus) >= 0 || y.Cmp(FieldModulus) >= 0 {
		return nil, fmt.Errorf("%w: coordinate exceeds field modulus", ErrInvalidPublicKey)
	}
	var p bn254.G1Affine
	p.X.SetBigInt(x)
	p.Y.SetBigInt(y)
	if !p.IsOnCurve() {
		return nil, fmt.Errorf("%w: %s not on curve", ErrInvalidPublicKey, k)
	}
	return &p, nil
}

func fromAffine(p *bn254.G1Affine) PublicKey {
	var xb, yb big.Int
	p.X.BigInt(&xb)
	p.Y.BigInt(&yb)
	x, _ := uint256.FromBig(&xb)
	y, _ := uint256.FromBig(&yb)
	return PublicKey{X: x, Y: y}
}
