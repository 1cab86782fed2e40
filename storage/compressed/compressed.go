// Package compressed wraps any storage.Backend with zstd compression,
// transparent to the caller.
package compressed

import (
	"context"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"

	"github.com/JupiterMetaLabs/chronomerkle/storage"
)

// Backend wraps an inner storage.Backend, compressing on Save and
// decompressing on Load.
type Backend struct {
	inner storage.Backend
	enc   *zstd.Encoder
	dec   *zstd.Decoder
}

// New wraps inner with a shared zstd encoder/decoder pair. The
// returned Backend owns the encoder/decoder and should be discarded
// (not reused concurrently after) if inner is closed.
func New(inner storage.Backend) (*Backend, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, errors.Wrap(err, "compressed: create zstd encoder")
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, errors.Wrap(err, "compressed: create zstd decoder")
	}
	return &Backend{inner: inner, enc: enc, dec: dec}, nil
}

func (b *Backend) Save(ctx context.Context, key string, data []byte) error {
	return b.inner.Save(ctx, key, b.enc.EncodeAll(data, nil))
}

func (b *Backend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	raw, ok, err := b.inner.Load(ctx, key)
	if err != nil || !ok {
		return nil, ok, err
	}
	plain, err := b.dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, false, errors.Wrapf(err, "compressed: decode key %q", key)
	}
	return plain, true, nil
}

func (b *Backend) Delete(ctx context.Context, key string) error { return b.inner.Delete(ctx, key) }

func (b *Backend) ListKeys(ctx context.Context) ([]string, error) { return b.inner.ListKeys(ctx) }

func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	return b.inner.Exists(ctx, key)
}

// Close releases the encoder/decoder's background resources. It does
// not close the wrapped inner backend.
func (b *Backend) Close() error {
	b.dec.Close()
	return b.enc.Close()
}

var _ storage.Backend = (*Backend)(nil)
