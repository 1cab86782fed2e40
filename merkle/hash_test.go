package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSHA256HasherDeterministic(t *testing.T) {
	h := NewSHA256Hasher()
	a := h.Hash([]byte("leaf-data"))
	b := h.Hash([]byte("leaf-data"))
	require.Equal(t, a, b)
	require.NotEqual(t, a, h.Hash([]byte("other-data")))
	require.Equal(t, sha256Size, h.Size())
}

func TestSHA256HasherPairOrderMatters(t *testing.T) {
	h := NewSHA256Hasher()
	left := h.Hash([]byte("a"))
	right := h.Hash([]byte("b"))
	require.NotEqual(t, h.HashPair(left, right), h.HashPair(right, left))
}

func TestInsecureHasherRejectedByConstruction(t *testing.T) {
	_, err := New(InsecureNoHash())
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, KindInvalidConfiguration, merr.Kind)
}

func TestInsecureHasherPanicsIfInvokedDirectly(t *testing.T) {
	h := InsecureNoHash()
	require.Panics(t, func() { h.Hash([]byte("x")) })
	require.Panics(t, func() { h.HashPair([]byte("x"), []byte("y")) })
}

func TestConstantTimeEqual(t *testing.T) {
	require.True(t, ConstantTimeEqual([]byte("abc"), []byte("abc")))
	require.False(t, ConstantTimeEqual([]byte("abc"), []byte("abd")))
	require.False(t, ConstantTimeEqual([]byte("abc"), []byte("ab")))
	require.True(t, ConstantTimeEqual(nil, nil))
}

// sha256Size mirrors the stdlib constant locally so the test doesn't
// need to import crypto/sha256 just to assert Size().
const sha256Size = 32
