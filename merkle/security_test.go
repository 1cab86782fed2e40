package merkle

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A MaxDepth of 64 is the documented upper bound (§4.8: "1..=64"). It
// must not silently brick every insert through a 1<<64 overflow —
// this caught a real bug during development (maxLeaves computed to 0
// when MaxDepth==64, since Go's shift of a uint64 by its own bit width
// yields zero, not the identity).
func TestSecurityMaxDepth64DoesNotBrickInserts(t *testing.T) {
	tree := newTestTree(t, WithMaxDepth(64))
	for i := 0; i < 100; i++ {
		require.NoError(t, tree.Insert([]byte{byte(i)}, uint64(i)))
	}
	require.Equal(t, 100, tree.LeafCount())
}

// A config requesting MaxDepth outside 1..64 must be rejected at
// construction, never silently clamped — an attacker handing us
// MaxDepth=0 should not get a tree that accepts zero leaves forever,
// nor one that quietly reinterprets the value.
func TestSecurityOutOfRangeMaxDepthRejectedAtConstruction(t *testing.T) {
	_, err := New(NewSHA256Hasher(), WithMaxDepth(0))
	require.Error(t, err)

	_, err = New(NewSHA256Hasher(), WithMaxDepth(65))
	require.Error(t, err)
}

// A forged proof that swaps in an unrelated sibling digest must never
// verify, even if the attacker controls every other field.
func TestSecurityForgedSiblingDigestNeverVerifies(t *testing.T) {
	tree := newTestTree(t)
	data := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for i, d := range data {
		require.NoError(t, tree.Insert(d, uint64(1000+i)))
	}

	proof, err := tree.Generate(0)
	require.NoError(t, err)
	require.NotEmpty(t, proof.Path)

	forged := proof
	forged.Path = append([]ProofStep(nil), proof.Path...)
	forged.Path[0].Sibling = NewSHA256Hasher().Hash([]byte("not-the-real-sibling"))

	hasher := NewSHA256Hasher()
	ok, err := VerifyInclusion(hasher, forged, hasher.Hash(data[0]), 1000, tree.Root())
	require.NoError(t, err)
	require.False(t, ok)
}

// An attacker cannot bypass the forbidden hasher by feeding it in
// through a proof-verification entry point rather than construction.
func TestSecurityInsecureHasherRejectedAtEveryEntryPoint(t *testing.T) {
	insecure := InsecureNoHash()

	_, err := New(insecure)
	require.Error(t, err)

	_, err = VerifyInclusion(insecure, Proof{}, []byte("x"), 0, []byte("root"))
	require.Error(t, err)

	_, err = VerifyDelta(insecure, []byte("a"), []byte("b"), []DeltaRecord{{OldRoot: []byte("a")}})
	require.Error(t, err)
}

// Rolling back with a target tag that happens to equal a dropped
// leaf's tag exactly at the boundary must retain, not drop, that
// leaf — an off-by-one here would silently corrupt the retained set
// on every rollback call that lands exactly on a tag.
func TestSecurityRollbackBoundaryIsInclusive(t *testing.T) {
	tree := newTestTree(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, tree.Insert([]byte{byte(i)}, uint64(i)))
	}
	require.NoError(t, tree.Rollback(2))
	require.Equal(t, 3, tree.LeafCount()) // tags 0,1,2 retained
	require.NotEmpty(t, tree.FindByTag(2))
}

// A delta chain whose claimed old root doesn't match the first
// record's recorded old root must fail closed, not panic or wrap
// around on an empty/short buffer.
func TestSecurityVerifyDeltaRejectsShortOrMismatchedInputs(t *testing.T) {
	hasher := NewSHA256Hasher()
	_, err := VerifyDelta(hasher, []byte("x"), []byte("y"), nil)
	require.Error(t, err)

	ok, err := VerifyDelta(hasher, []byte("x"), []byte("y"), []DeltaRecord{
		{OldRoot: []byte("not-x"), DeltaDigest: hasher.HashPair([]byte("not-x"), []byte("y"))},
	})
	require.NoError(t, err)
	require.False(t, ok)
}
