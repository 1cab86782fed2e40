package encrypted_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/JupiterMetaLabs/chronomerkle/storage/encrypted"
	"github.com/JupiterMetaLabs/chronomerkle/storage/memory"
)

func testKey() []byte {
	key := make([]byte, chacha20poly1305.KeySize)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestSaveLoadRoundTripThroughEncryption(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	b, err := encrypted.New(inner, testKey())
	require.NoError(t, err)

	require.NoError(t, b.Save(ctx, "k", []byte("top secret")))

	raw, ok, err := inner.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotContains(t, string(raw), "top secret")

	data, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("top secret"), data)
}

// Two saves of the same plaintext must not produce identical
// ciphertext, since each Save draws a fresh nonce.
func TestSaveUsesFreshNonceEachTime(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	b, err := encrypted.New(inner, testKey())
	require.NoError(t, err)

	require.NoError(t, b.Save(ctx, "a", []byte("same plaintext")))
	require.NoError(t, b.Save(ctx, "b", []byte("same plaintext")))

	rawA, _, err := inner.Load(ctx, "a")
	require.NoError(t, err)
	rawB, _, err := inner.Load(ctx, "b")
	require.NoError(t, err)
	require.NotEqual(t, rawA, rawB)
}

// A different key must fail to decrypt, not silently return garbage.
func TestLoadWithWrongKeyFails(t *testing.T) {
	ctx := context.Background()
	inner := memory.New()
	writer, err := encrypted.New(inner, testKey())
	require.NoError(t, err)
	require.NoError(t, writer.Save(ctx, "k", []byte("top secret")))

	wrongKey := testKey()
	wrongKey[0] ^= 0xFF
	reader, err := encrypted.New(inner, wrongKey)
	require.NoError(t, err)

	_, _, err = reader.Load(ctx, "k")
	require.Error(t, err)
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	_, err := encrypted.New(memory.New(), []byte("too-short"))
	require.Error(t, err)
}
