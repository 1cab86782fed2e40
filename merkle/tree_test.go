package merkle

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestTree(t *testing.T, opts ...Option) *Tree {
	t.Helper()
	all := append([]Option{WithClock(func() time.Time { return time.Time{} })}, opts...)
	tree, err := New(NewSHA256Hasher(), all...)
	require.NoError(t, err)
	return tree
}

func TestEmptyTreeHasNoRoot(t *testing.T) {
	tree := newTestTree(t)
	require.Nil(t, tree.Root())
	require.Equal(t, 0, tree.LeafCount())
	require.Empty(t, tree.FindByTag(1))
	require.Empty(t, tree.FindRange(0, 1000))
}

func TestSingleLeafIsItsOwnRoot(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert([]byte("a"), 1))
	h := NewSHA256Hasher().Hash([]byte("a"))
	require.True(t, bytes.Equal(h, tree.Root()))
}

func TestCanonicalCombineMatchesManualComputation(t *testing.T) {
	tree := newTestTree(t)
	hasher := NewSHA256Hasher()
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for i, d := range data {
		require.NoError(t, tree.Insert(d, uint64(1000+i)))
	}

	h0 := hasher.Hash(data[0])
	h1 := hasher.Hash(data[1])
	h2 := hasher.Hash(data[2])
	h3 := hasher.Hash(data[3])
	left := hasher.HashPair(h0, h1)
	right := hasher.HashPair(h2, h3)
	want := hasher.HashPair(left, right)

	require.True(t, bytes.Equal(want, tree.Root()))
}

func TestOddLayerDuplicatesLastElement(t *testing.T) {
	tree := newTestTree(t)
	hasher := NewSHA256Hasher()
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for i, d := range data {
		require.NoError(t, tree.Insert(d, uint64(i)))
	}

	h0 := hasher.Hash(data[0])
	h1 := hasher.Hash(data[1])
	h2 := hasher.Hash(data[2])
	left := hasher.HashPair(h0, h1)
	right := hasher.HashPair(h2, h2) // duplicated filler
	want := hasher.HashPair(left, right)

	require.True(t, bytes.Equal(want, tree.Root()))
}

func TestParallelConstructIsBitIdenticalToSequential(t *testing.T) {
	seq := newTestTree(t, WithParallelConstruct(false))
	par := newTestTree(t, WithParallelConstruct(true))

	for i := 0; i < 37; i++ { // deliberately odd, exercises several duplicate-last levels
		d := []byte{byte(i), byte(i * 7), byte(i * 13)}
		require.NoError(t, seq.Insert(d, uint64(i)))
		require.NoError(t, par.Insert(d, uint64(i)))
	}

	require.True(t, bytes.Equal(seq.Root(), par.Root()))
	require.Equal(t, seq.Depth(), par.Depth())
}

func TestFindByTagReturnsAllDuplicatesAscending(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert([]byte("a"), 5))
	require.NoError(t, tree.Insert([]byte("b"), 5))
	require.NoError(t, tree.Insert([]byte("c"), 9))

	require.Equal(t, []int{0, 1}, tree.FindByTag(5))
	require.Equal(t, []int{2}, tree.FindByTag(9))
	require.Empty(t, tree.FindByTag(999))
}

func TestFindRangeIsAscendingAndInclusive(t *testing.T) {
	tree := newTestTree(t)
	for i, tag := range []uint64{10, 20, 30, 40} {
		require.NoError(t, tree.Insert([]byte{byte(i)}, tag))
	}
	require.Equal(t, []int{1, 2}, tree.FindRange(15, 35))
	require.Equal(t, []int{0, 1, 2, 3}, tree.FindRange(0, 1000))
}

func TestSparseIndexOnlySeesAdmittedTags(t *testing.T) {
	tree := newTestTree(t, WithSparsity(10))
	require.NoError(t, tree.Insert([]byte("a"), 1000))
	require.NoError(t, tree.Insert([]byte("b"), 1005))
	require.NoError(t, tree.Insert([]byte("c"), 1010))

	require.Equal(t, []int{1}, tree.FindByTag(1005)) // linear scan sees it
	require.Equal(t, []uint64{1000, 1010}, tree.IndexedTimestamps())
}

func TestInsertRejectsEmptyData(t *testing.T) {
	tree := newTestTree(t)
	err := tree.Insert(nil, 1)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, KindInvalidConfiguration, merr.Kind)
	require.Equal(t, 0, tree.LeafCount())
}

func TestInsertRejectsOversizedData(t *testing.T) {
	tree := newTestTree(t)
	big := make([]byte, maxLeafSize+1)
	err := tree.Insert(big, 1)
	require.Error(t, err)
	require.Equal(t, 0, tree.LeafCount())
}

func TestInsertRejectsTagOutsidePolicyWindow(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tree := newTestTree(t, WithClock(func() time.Time { return now }))

	future := uint64(now.Add(futureWindow + time.Hour).Unix())
	err := tree.Insert([]byte("a"), future)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, KindInvalidTag, merr.Kind)
	require.Equal(t, 0, tree.LeafCount())
}

func TestInsertPermitsDuplicateTagWithoutError(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert([]byte("a"), 1))
	require.NoError(t, tree.Insert([]byte("b"), 1))
	require.Equal(t, 2, tree.LeafCount())
}

func TestMaxDepthCapsLeafCount(t *testing.T) {
	tree := newTestTree(t, WithMaxDepth(2)) // 2^2 = 4 leaves max
	for i := 0; i < 4; i++ {
		require.NoError(t, tree.Insert([]byte{byte(i)}, uint64(i)))
	}
	err := tree.Insert([]byte("overflow"), 999)
	require.Error(t, err)
	var merr *Error
	require.ErrorAs(t, err, &merr)
	require.Equal(t, KindInvalidConfiguration, merr.Kind)
	require.Equal(t, 4, tree.LeafCount())
}

func TestFailedInsertLeavesStateUnchanged(t *testing.T) {
	tree := newTestTree(t)
	require.NoError(t, tree.Insert([]byte("a"), 1))
	rootBefore := tree.Root()

	err := tree.Insert(nil, 2)
	require.Error(t, err)
	require.True(t, bytes.Equal(rootBefore, tree.Root()))
	require.Equal(t, 1, tree.LeafCount())
}
