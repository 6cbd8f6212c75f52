package sealedbid

import (
	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// SealedBid is the sealed form of an auction bid.
type SealedBid struct {
	EncryptedAmountOut *uint256.Int `json:"encryptedAmountOut"`
	Salt               *uint256.Int `json:"salt"`
	PublicKey          PublicKey    `json:"publicKey"`
}

// Validate checks that the bid is bound to bidder and sealed under saleKey.
func (b SealedBid) Validate(bidder common.Address, saleKey PublicKey) error {
	if b.EncryptedAmountOut == nil || b.Salt == nil {
		return ErrNilInput
	}
	if !b.Salt.Eq(SaltFromAddress(bidder)) {
		return ErrInvalidSalt
	}
	if !b.PublicKey.Equal(saleKey) {
		return ErrPublicKeyMismatch
	}
	return nil
}

// Open decrypts the bid amount with the sale's published private key.
func (b SealedBid) Open(d *uint256.Int) (*uint256.Int, error) {
	return Decrypt(b.EncryptedAmountOut, b.PublicKey, d, b.Salt)
}

// Seal encrypts amount for bidder under the sale keypair.
func Seal(amount *uint256.Int, bidder common.Address, pub PublicKey, d *uint256.Int) (SealedBid, error) {
	salt := SaltFromAddress(bidder)
	ct, err := Encrypt(amount, pub, d, salt)
	if err != nil {
		return SealedBid{}, err
	}
	return SealedBid{EncryptedAmountOut: ct, Salt: salt, PublicKey: pub.Clone()}, nil
}

// SaltFromAddress interprets an address as a big-endian 160-bit integer.
func SaltFromAddress(addr common.Address) *uint256.Int {
	return new(uint256.Int).SetBytes20(addr.Bytes())
}

// SharedSecret computes S = pub * d.
func SharedSecret(pub PublicKey, d *uint256.Int) (PublicKey, error) {
	p, err := toAffine(pub)
	if err != nil {
		return PublicKey{}, err
	}
	if err := validatePrivate(d); err != nil {
		return PublicKey{}, err
	}
	var s bn254.G1Affine
	s.ScalarMultiplication(p, d.ToBig())
	return fromAffine(&s), nil
}

// Encrypt seals plaintext with the pad keccak256(S.x || S.y || salt).
func Encrypt(plaintext *uint256.Int, pub PublicKey, d, salt *uint256.Int) (*uint256.Int, error) {
	if plaintext == nil || salt == nil {
		return nil, ErrNilInput
	}
	pad, err := keystream(pub, d, salt)
	if err != nil {
		return nil, err
	}
	return pad.Xor(pad, plaintext), nil
}

// Decrypt is the inverse of Encrypt.
func Decrypt(ciphertext *uint256.Int, pub PublicKey, d, salt *uint256.Int) (*uint256.Int, error) {
	return Encrypt(ciphertext, pub, d, salt)
}

func keystream(pub PublicKey, d, salt *uint256.Int) (*uint256.Int, error) {
	s, err := SharedSecret(pub, d)
	if err != nil {
		return nil, err
	}
	x, y, z := s.X.Bytes32(), s.Y.Bytes32(), salt.Bytes32()
	h := crypto.Keccak256(x[:], y[:], z[:])
	return new(uint256.Int).SetBytes32(h), nil
}
