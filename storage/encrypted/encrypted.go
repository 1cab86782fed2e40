// Package encrypted wraps any storage.Backend with ChaCha20-Poly1305
// AEAD encryption, transparent to the caller.
package encrypted

import (
	"context"
	"crypto/rand"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/pkg/errors"

	"github.com/JupiterMetaLabs/chronomerkle/storage"
)

// Backend wraps an inner storage.Backend, sealing on Save and opening
// on Load. Each Save generates a fresh random nonce, stored alongside
// the ciphertext.
type Backend struct {
	inner storage.Backend
	aead  cipherAEAD
}

// cipherAEAD is the subset of cipher.AEAD this package needs, kept
// narrow so tests can substitute a fake without pulling in the real
// primitive.
type cipherAEAD interface {
	NonceSize() int
	Overhead() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// New wraps inner with a ChaCha20-Poly1305 AEAD keyed by key, which
// must be exactly chacha20poly1305.KeySize (32) bytes.
func New(inner storage.Backend, key []byte) (*Backend, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "encrypted: construct AEAD cipher")
	}
	return &Backend{inner: inner, aead: aead}, nil
}

func (b *Backend) Save(ctx context.Context, key string, data []byte) error {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "encrypted: generate nonce")
	}
	sealed := b.aead.Seal(nonce, nonce, data, nil)
	return b.inner.Save(ctx, key, sealed)
}

func (b *Backend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := b.inner.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	nonceSize := b.aead.NonceSize()
	if len(raw) < nonceSize+b.aead.Overhead() {
		return nil, false, errors.Errorf("encrypted: ciphertext for key %q is too short", key)
	}
	nonce, ciphertext := raw[:nonceSize], raw[nonceSize:]
	plain, err := b.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false, errors.Wrapf(err, "encrypted: decrypt key %q", key)
	}
	return plain, true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error { return b.inner.Delete(ctx, key) }

func (b *Backend) ListKeys(ctx context.Context) ([]string, error) { return b.inner.ListKeys(ctx) }

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	return b.inner.Exists(ctx, key)
}

var _ storage.Backend = (*Backend)(nil)
