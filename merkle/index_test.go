package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSparseIndexAdmitsOnlyMultiplesOfSparsity(t *testing.T) {
	idx := newSparseIndex(10)
	idx.insert(1000, 0)
	idx.insert(1005, 1) // not a multiple of 10, not admitted
	idx.insert(1010, 2)

	_, ok := idx.findExact(1005)
	require.False(t, ok)

	i, ok := idx.findExact(1000)
	require.True(t, ok)
	require.Equal(t, 0, i)

	require.Equal(t, []uint64{1000, 1010}, idx.timestamps())
}

func TestSparseIndexLastWriteWinsOnDuplicateTag(t *testing.T) {
	idx := newSparseIndex(1)
	idx.insert(42, 0)
	idx.insert(42, 5)

	i, ok := idx.findExact(42)
	require.True(t, ok)
	require.Equal(t, 5, i)
	require.Equal(t, 1, idx.len())
}

func TestSparseIndexFindRange(t *testing.T) {
	idx := newSparseIndex(1)
	for i, tag := range []uint64{10, 20, 30, 40} {
		idx.insert(tag, i)
	}
	require.Equal(t, []int{1, 2}, idx.findRange(15, 35))
	require.Empty(t, idx.findRange(100, 200))
}

func TestSparseIndexFindNearestPrefersPredecessorOnTie(t *testing.T) {
	idx := newSparseIndex(1)
	idx.insert(10, 0)
	idx.insert(20, 1)

	i, ok := idx.findNearest(15)
	require.True(t, ok)
	require.Equal(t, 0, i) // tie: 5 away from each side, predecessor wins

	i, ok = idx.findNearest(19)
	require.True(t, ok)
	require.Equal(t, 1, i)

	i, ok = idx.findNearest(1)
	require.True(t, ok)
	require.Equal(t, 0, i) // only a successor exists

	i, ok = idx.findNearest(100)
	require.True(t, ok)
	require.Equal(t, 1, i) // only a predecessor exists
}

func TestSparseIndexClear(t *testing.T) {
	idx := newSparseIndex(1)
	idx.insert(1, 0)
	idx.insert(2, 1)
	idx.clear()
	require.Equal(t, 0, idx.len())
	require.Empty(t, idx.timestamps())
}

func TestSparseIndexZeroSparsityTreatedAsOne(t *testing.T) {
	idx := newSparseIndex(0)
	idx.insert(3, 0)
	_, ok := idx.findExact(3)
	require.True(t, ok)
}
