package merkle

import "github.com/google/btree"

// sparseEntry is one admitted (tag, leaf index) pair in the index.
type sparseEntry struct {
	tag   uint64
	index int
}

func sparseEntryLess(a, b sparseEntry) bool { return a.tag < b.tag }

// sparseIndex is the ordered tag→leaf-index map of §4.2, backed by
// google/btree's generic B-tree rather than a hand-rolled sorted slice
// — the engine wants the same ordered-map contract Rust's BTreeMap
// gave the original, and btree.BTreeG is the pack's idiomatic stand-in
// for it.
type sparseIndex struct {
	sparsity uint64
	tree     *btree.BTreeG[sparseEntry]
}

const btreeDegree = 32

func newSparseIndex(sparsity uint64) *sparseIndex {
	if sparsity == 0 {
		sparsity = 1
	}
	return &sparseIndex{
		sparsity: sparsity,
		tree:     btree.NewG(btreeDegree, sparseEntryLess),
	}
}

// insert admits (tag, leafIndex) iff tag mod sparsity == 0. On a
// duplicate tag the last insert wins (I3) — ReplaceOrInsert already
// gives us that for free since sparseEntryLess only compares tag.
func (s *sparseIndex) insert(tag uint64, leafIndex int) {
	if tag%s.sparsity != 0 {
		return
	}
	s.tree.ReplaceOrInsert(sparseEntry{tag: tag, index: leafIndex})
}

func (s *sparseIndex) findExact(tag uint64) (int, bool) {
	e, ok := s.tree.Get(sparseEntry{tag: tag})
	if !ok {
		return 0, false
	}
	return e.index, true
}

// findRange returns the indexed leaf indices with lo <= tag <= hi, in
// ascending tag order. This is an acceleration path only — callers
// needing exhaustive results over unadmitted tags must fall back to a
// linear scan (§4.4).
func (s *sparseIndex) findRange(lo, hi uint64) []int {
	var out []int
	s.tree.AscendGreaterOrEqual(sparseEntry{tag: lo}, func(e sparseEntry) bool {
		if e.tag > hi {
			return false
		}
		out = append(out, e.index)
		return true
	})
	return out
}

// findNearest returns the leaf index of the indexed tag closest to t,
// preferring the predecessor on a tie (§4.2).
func (s *sparseIndex) findNearest(t uint64) (int, bool) {
	var pred, succ sparseEntry
	havePred, haveSucc := false, false

	s.tree.DescendLessOrEqual(sparseEntry{tag: t}, func(e sparseEntry) bool {
		pred, havePred = e, true
		return false
	})
	s.tree.AscendGreaterOrEqual(sparseEntry{tag: t}, func(e sparseEntry) bool {
		succ, haveSucc = e, true
		return false
	})

	switch {
	case havePred && haveSucc:
		distPred := t - pred.tag
		distSucc := succ.tag - t
		if distPred <= distSucc {
			return pred.index, true
		}
		return succ.index, true
	case havePred:
		return pred.index, true
	case haveSucc:
		return succ.index, true
	default:
		return 0, false
	}
}

func (s *sparseIndex) timestamps() []uint64 {
	out := make([]uint64, 0, s.tree.Len())
	s.tree.Ascend(func(e sparseEntry) bool {
		out = append(out, e.tag)
		return true
	})
	return out
}

func (s *sparseIndex) clear() {
	s.tree.Clear(false)
}

func (s *sparseIndex) len() int { return s.tree.Len() }
