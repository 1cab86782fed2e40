package file_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JupiterMetaLabs/chronomerkle/storage/file"
)

func TestSaveLoadDeleteRoundTrip(t *testing.T) {
	ctx := context.Background()
	b, err := file.New(t.TempDir())
	require.NoError(t, err)

	ok, err := b.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, b.Save(ctx, "k", []byte("hello")))

	data, ok, err := b.Load(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("hello"), data)

	keys, err := b.ListKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"k"}, keys)

	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Load(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLoadMissingKeyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	b, err := file.New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := b.Load(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)
}

// A key containing path separators must never escape the configured
// directory.
func TestKeyWithPathTraversalIsConfined(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	b, err := file.New(dir)
	require.NoError(t, err)

	require.NoError(t, b.Save(ctx, "../../etc/passwd", []byte("x")))

	keys, err := b.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	require.Equal(t, "passwd", keys[0])
	require.NotContains(t, filepath.Join(dir, keys[0]), "..")
}
