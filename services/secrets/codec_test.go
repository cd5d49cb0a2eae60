package secrets

import (
	"encoding/base64"
	"testing"

	"github.com/clubops/memberauth/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCodec(t *testing.T) *Codec {
	codec, err := NewCodec(testutils.GetTestConfig())
	require.NoError(t, err)
	return codec
}

func TestCodecRoundTrip(t *testing.T) {
	codec := setupCodec(t)

	encrypted, err := codec.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)
	assert.NotEqual(t, "JBSWY3DPEHPK3PXP", encrypted)

	decrypted, err := codec.Decrypt(encrypted)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", decrypted)
}

func TestCodecNonceUniqueness(t *testing.T) {
	codec := setupCodec(t)

	first, err := codec.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := codec.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCodecTamperedCiphertext(t *testing.T) {
	codec := setupCodec(t)

	encrypted, err := codec.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encrypted)
	require.NoError(t, err)

	t.Run("flipped ciphertext byte", func(t *testing.T) {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[len(tampered)-1] ^= 0x01

		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("flipped tag byte", func(t *testing.T) {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[nonceSize] ^= 0x01

		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})

	t.Run("flipped nonce byte", func(t *testing.T) {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[0] ^= 0x01

		_, err := codec.Decrypt(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryptionFailed)
	})
}

func TestCodecMalformedInput(t *testing.T) {
	codec := setupCodec(t)

	t.Run("not base64", func(t *testing.T) {
		_, err := codec.Decrypt("not-valid-base64!!!")
		assert.ErrorIs(t, err, ErrCiphertextFormat)
	})

	t.Run("too short", func(t *testing.T) {
		short := base64.StdEncoding.EncodeToString([]byte("short"))
		_, err := codec.Decrypt(short)
		assert.ErrorIs(t, err, ErrCiphertextFormat)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := codec.Decrypt("")
		assert.ErrorIs(t, err, ErrCiphertextFormat)
	})
}

func TestCodecKeyMismatch(t *testing.T) {
	cfg := testutils.GetTestConfig()
	codecA, err := NewCodec(cfg)
	require.NoError(t, err)

	cfg2 := testutils.GetTestConfig()
	cfg2.TwoFA.FallbackSecret = "a different secret"
	codecB, err := NewCodec(cfg2)
	require.NoError(t, err)

	encrypted, err := codecA.Encrypt("JBSWY3DPEHPK3PXP")
	require.NoError(t, err)

	_, err = codecB.Decrypt(encrypted)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDeriveKey(t *testing.T) {
	t.Run("hex key", func(t *testing.T) {
		key, err := deriveKey("000102030405060708090a0b0c0d0e0f000102030405060708090a0b0c0d0e0f", "")
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("base64 key", func(t *testing.T) {
		encoded := base64.StdEncoding.EncodeToString(make([]byte, 32))
		key, err := deriveKey(encoded, "")
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := deriveKey("abcdef", "")
		assert.Error(t, err)
	})

	t.Run("fallback hashing", func(t *testing.T) {
		key, err := deriveKey("", "fallback secret")
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("nothing configured", func(t *testing.T) {
		_, err := deriveKey("", "")
		assert.ErrorIs(t, err, ErrKeyMissing)
	})
}
