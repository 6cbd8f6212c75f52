package signer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"path/filepath"

	bip32 "github.com/bsv-blockchain/go-sdk/compat/bip32"
	"github.com/bsv-blockchain/go-sdk/compat/bip39"
	chaincfg "github.com/bsv-blockchain/go-sdk/transaction/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/argon2"
)

const (
	// Mnemonic entropy sizes.
	Mnemonic12Words = 128 // 12-word mnemonic
	Mnemonic24Words = 256 // 24-word mnemonic

	// Argon2id parameters for seed encryption.
	Argon2Time        = 3
	Argon2Memory      = 64 * 1024 // 64 MB
	Argon2Parallelism = 4
	Argon2KeyLen      = 32

	// Encryption format sizes.
	SaltLen     = 16
	NonceLen    = 12
	ChecksumLen = 4

	// BIP44 path constants: m/44'/60'/account'/0/index.
	PurposeBIP44    = 44
	CoinTypeEther   = 60
	OperatorAccount = 0
	Hardened        = 0x80000000
)

// Keystore derives operator signing keys from a BIP39 seed.
type Keystore struct {
	master *bip32.ExtendedKey
}

// Key is a derived signing key.
type Key struct {
	PrivateKey *ecdsa.PrivateKey `json:"-"`
	Address    common.Address    `json:"address"`
	Path       string            `json:"path"`
}

// Sign signs digest with the key.
func (k *Key) Sign(digest common.Hash) ([]byte, error) {
	return Sign(k.PrivateKey, digest)
}

// GenerateMnemonic creates a new BIP39 mnemonic with the specified entropy bits.
func GenerateMnemonic(entropyBits int) (string, error) {
	if entropyBits != Mnemonic12Words && entropyBits != Mnemonic24Words {
		return "", ErrInvalidEntropy
	}
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("signer: failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("signer: failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// SeedFromMnemonic derives the 64-byte BIP39 seed.
//
//	seed = PBKDF2(mnemonic, "mnemonic"+passphrase, 2048, 64, SHA512)
func SeedFromMnemonic(mnemonic, passphrase string) ([]byte, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, passphrase)
	if err != nil {
		return nil, fmt.Errorf("signer: failed to derive seed: %w", err)
	}
	return seed, nil
}

// NewKeystore creates a keystore from a BIP39 seed.
func NewKeystore(seed []byte) (*Keystore, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}
	master, err := bip32.NewMaster(seed, &chaincfg.MainNet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Keystore{master: master}, nil
}

// Derive returns the operator key at m/44'/60'/0'/0/index.
func (ks *Keystore) Derive(index uint32) (*Key, error) {
	key := ks.master
	path := []uint32{PurposeBIP44 + Hardened, CoinTypeEther + Hardened, OperatorAccount + Hardened, 0, index}
	for _, child := range path {
		next, err := key.Child(child)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
		}
		key = next
	}

	ecKey, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to extract EC private key: %w", ErrDerivationFailed, err)
	}
	priv, err := crypto.ToECDSA(ecKey.Serialize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDerivationFailed, err)
	}
	return &Key{
		PrivateKey: priv,
		Address:    crypto.PubkeyToAddress(priv.PublicKey),
		Path:       fmt.Sprintf("m/44'/60'/0'/0/%d", index),
	}, nil
}

// EncryptSeed encrypts the seed with Argon2id + AES-256-GCM.
//
// Output format: salt(16B) || nonce(12B) || AES-GCM(argon2id(password,salt), nonce, seed||checksum)
//
// The checksum is SHA256(seed)[:4].
func EncryptSeed(seed []byte, password string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("signer: failed to generate salt: %w", err)
	}
	gcm, err := seedCipher(password, salt)
	if err != nil {
		return nil, err
	}

	seedHash := sha256.Sum256(seed)
	plaintext := make([]byte, 0, len(seed)+ChecksumLen)
	plaintext = append(plaintext, seed...)
	plaintext = append(plaintext, seedHash[:ChecksumLen]...)

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("signer: failed to generate nonce: %w", err)
	}

	result := make([]byte, 0, SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	result = append(result, salt...)
	result = append(result, nonce...)
	return gcm.Seal(result, nonce, plaintext, nil), nil
}

// DecryptSeed reverses EncryptSeed.
func DecryptSeed(encrypted []byte, password string) ([]byte, error) {
	if len(encrypted) < SaltLen+NonceLen+ChecksumLen {
		return nil, ErrDecryptionFailed
	}
	salt := encrypted[:SaltLen]
	nonce := encrypted[SaltLen : SaltLen+NonceLen]
	ciphertext := encrypted[SaltLen+NonceLen:]

	gcm, err := seedCipher(password, salt)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil || len(plaintext) < ChecksumLen {
		return nil, ErrDecryptionFailed
	}

	seed := plaintext[:len(plaintext)-ChecksumLen]
	seedHash := sha256.Sum256(seed)
	if subtle.ConstantTimeCompare(plaintext[len(seed):], seedHash[:ChecksumLen]) != 1 {
		return nil, ErrChecksumMismatch
	}
	return seed, nil
}

// WriteSeedFile encrypts seed with password and writes it to path with
// owner-only permissions.
func WriteSeedFile(path string, seed []byte, password string) error {
	enc, err := EncryptSeed(seed, password)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("signer: seed directory: %w", err)
	}
	if err := os.WriteFile(path, enc, 0600); err != nil {
		return fmt.Errorf("signer: write seed file: %w", err)
	}
	return nil
}

// LoadKeyFile decrypts the seed file at path and derives the operator key
// at index.
func LoadKeyFile(path, password string, index uint32) (*Key, error) {
	enc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("signer: read seed file: %w", err)
	}
	seed, err := DecryptSeed(enc, password)
	if err != nil {
		return nil, err
	}
	ks, err := NewKeystore(seed)
	if err != nil {
		return nil, err
	}
	return ks.Derive(index)
}

func seedCipher(password string, salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey([]byte(password), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("signer: AES cipher creation failed: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("signer: GCM creation failed: %w", err)
	}
	return gcm, nil
}
