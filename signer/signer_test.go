package signer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

var digest = crypto.Keccak256Hash([]byte("invest"))

// ---------------------------------------------------------------------------
// Signatures
// ---------------------------------------------------------------------------

func TestSignRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	sig, err := Sign(key, digest)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)
	assert.Contains(t, []byte{27, 28}, sig[64])

	got, err := Recover(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, got)
	assert.NoError(t, Verify(addr, digest, sig))
}

func TestVerify_Rejects(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	sig, err := Sign(key, digest)
	require.NoError(t, err)

	t.Run("other digest", func(t *testing.T) {
		assert.ErrorIs(t, Verify(addr, crypto.Keccak256Hash([]byte("x")), sig), ErrInvalidSignature)
	})
	t.Run("other signer", func(t *testing.T) {
		other := common.HexToAddress("0x00000000000000000000000000000000000000e1")
		assert.ErrorIs(t, Verify(other, digest, sig), ErrInvalidSignature)
	})
	t.Run("zero signer", func(t *testing.T) {
		assert.ErrorIs(t, Verify(common.Address{}, digest, sig), ErrInvalidSignature)
	})
	t.Run("short", func(t *testing.T) {
		assert.ErrorIs(t, Verify(addr, digest, sig[:64]), ErrInvalidSignature)
	})
	t.Run("bad v", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[64] = 5
		assert.ErrorIs(t, Verify(addr, digest, bad), ErrInvalidSignature)
	})
	t.Run("raw recovery id", func(t *testing.T) {
		raw := append([]byte(nil), sig...)
		raw[64] -= 27
		assert.ErrorIs(t, Verify(addr, digest, raw), ErrInvalidSignature)
	})
	t.Run("high s", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		for i := 32; i < 64; i++ {
			bad[i] = 0xff
		}
		assert.ErrorIs(t, Verify(addr, digest, bad), ErrInvalidSignature)
	})
}

func TestSign_NilKey(t *testing.T) {
	_, err := Sign(nil, digest)
	assert.ErrorIs(t, err, ErrNilKey)
}

// ---------------------------------------------------------------------------
// Keystore
// ---------------------------------------------------------------------------

func TestGenerateMnemonic(t *testing.T) {
	m, err := GenerateMnemonic(Mnemonic12Words)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 12)

	m, err = GenerateMnemonic(Mnemonic24Words)
	require.NoError(t, err)
	assert.Len(t, strings.Fields(m), 24)

	_, err = GenerateMnemonic(100)
	assert.ErrorIs(t, err, ErrInvalidEntropy)
}

func TestSeedFromMnemonic_Invalid(t *testing.T) {
	_, err := SeedFromMnemonic("not a mnemonic", "")
	assert.ErrorIs(t, err, ErrInvalidMnemonic)
}

func TestKeystore_Derive(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	ks, err := NewKeystore(seed)
	require.NoError(t, err)

	k0, err := ks.Derive(0)
	require.NoError(t, err)
	// Well-known first account of the test mnemonic.
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), k0.Address)
	assert.Equal(t, "m/44'/60'/0'/0/0", k0.Path)

	k1, err := ks.Derive(1)
	require.NoError(t, err)
	assert.NotEqual(t, k0.Address, k1.Address)

	sig, err := k1.Sign(digest)
	require.NoError(t, err)
	assert.NoError(t, Verify(k1.Address, digest, sig))
}

func TestNewKeystore_EmptySeed(t *testing.T) {
	_, err := NewKeystore(nil)
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestEncryptDecryptSeed(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)

	enc, err := EncryptSeed(seed, "hunter2")
	require.NoError(t, err)

	got, err := DecryptSeed(enc, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, seed, got)

	_, err = DecryptSeed(enc, "wrong")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = DecryptSeed(enc[:10], "hunter2")
	assert.ErrorIs(t, err, ErrDecryptionFailed)

	_, err = EncryptSeed(nil, "x")
	assert.ErrorIs(t, err, ErrInvalidSeed)
}

func TestSeedFile(t *testing.T) {
	seed, err := SeedFromMnemonic(testMnemonic, "")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "operator.seed")
	require.NoError(t, WriteSeedFile(path, seed, "hunter2"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	k, err := LoadKeyFile(path, "hunter2", 0)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), k.Address)

	_, err = LoadKeyFile(path, "wrong", 0)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
	_, err = LoadKeyFile(filepath.Join(t.TempDir(), "missing"), "hunter2", 0)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
