package merkle

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// layerNode is one entry of a derived layer: a combined digest plus
// the tag range it covers and the number of distinct leaves folded
// into it (duplicated filler nodes don't double-count). Diff does not
// read count; it compares digests and tag ranges.
type layerNode struct {
	hash  []byte
	tagLo uint64
	tagHi uint64
	count int
}

// Tree is the ordered-leaf Merkle accumulator (C2-C6). Its zero value
// is not usable; construct one with New. A Tree is single-writer,
// multi-reader (§5): concurrent Insert/Rollback calls from multiple
// goroutines are not supported, but readers may run concurrently with
// each other and are ordered by happens-before with respect to the
// writer via mu.
type Tree struct {
	mu sync.RWMutex

	id     uuid.UUID
	hasher Hasher
	cfg    Config

	leaves []Leaf
	layers [][]layerNode // layers[0] is leaf-derived; top layer has len 1 (or is empty).

	index *sparseIndex

	deltas      []DeltaRecord
	deltaIndex  *sparseIndex // tag -> position in deltas
	proofCache  *proofCache
}

// New constructs a Tree over the given Hasher and options. It refuses
// to start with the insecure no-hash fallback (§4.1) and rejects
// invalid configuration (§4.8) before any state exists.
func New(hasher Hasher, opts ...Option) (*Tree, error) {
	if hasher == nil || isInsecure(hasher) {
		return nil, errInvalidConfiguration("hasher", "a real cryptographic Hasher is required; the insecure no-op hasher is forbidden")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tree{
		id:         uuid.New(),
		hasher:     hasher,
		cfg:        cfg,
		index:      newSparseIndex(cfg.Sparsity),
		deltaIndex: newSparseIndex(1),
		proofCache: newProofCache(256),
	}
	cfg.logger().Emit(Event{
		Severity:    SeverityInfo,
		Kind:        EventTreeInit,
		Description: "tree initialized",
		Metadata: map[string]any{
			"id":            t.id.String(),
			"sparsity":      cfg.Sparsity,
			"enable_deltas": cfg.EnableDeltas,
			"max_depth":     cfg.MaxDepth,
		},
	})
	return t, nil
}

// ID returns this tree instance's opaque identifier, used as a storage
// key and logger correlation id.
func (t *Tree) ID() uuid.UUID { return t.id }

// Hasher returns the Hasher this tree was constructed with.
func (t *Tree) Hasher() Hasher { return t.hasher }

// Config returns a copy of the tree's active configuration.
func (t *Tree) Config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

// LeafCount returns the number of leaves currently retained.
func (t *Tree) LeafCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.leaves)
}

// Root returns the canonical combine of the leaf vector (§4.3), or nil
// if the tree is empty (I1).
func (t *Tree) Root() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rootLocked()
}

func (t *Tree) rootLocked() []byte {
	if len(t.layers) == 0 {
		return nil
	}
	top := t.layers[len(t.layers)-1]
	if len(top) != 1 {
		return nil
	}
	return top[0].hash
}

// Depth returns the number of derived layers above the leaves (0 for
// an empty or single-leaf tree).
func (t *Tree) Depth() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if len(t.layers) == 0 {
		return 0
	}
	return len(t.layers) - 1
}

// Leaf returns a copy of the leaf at index k.
func (t *Tree) Leaf(k int) (Leaf, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if k < 0 || k >= len(t.leaves) {
		return Leaf{}, errIndexOutOfBounds(k, len(t.leaves))
	}
	return t.leaves[k], nil
}

// Insert runs §4.9 validation, appends a leaf, rebuilds the derived
// layers (full rebuild, per §4.5's mandated choice between (a) and
// (b) — see DESIGN.md), updates the sparse index, and — if deltas are
// enabled and the root actually changed — appends a delta record
// (§4.5). No partial effects are visible on any error path (I4).
func (t *Tree) Insert(data []byte, tag uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := validateInsert(data, tag, t.cfg); err != nil {
		t.cfg.logger().Emit(Event{
			Severity:    SeverityWarning,
			Kind:        EventValidationFail,
			Description: err.Error(),
		})
		return err
	}

	// MaxDepth==64 would compute 1<<64, which overflows uint64 to 0 and
	// would reject every insert; a cap that wide is unreachable in
	// practice, so it is treated as unlimited rather than miscomputed.
	if t.cfg.MaxDepth < 64 {
		if maxLeaves := uint64(1) << uint(t.cfg.MaxDepth); uint64(len(t.leaves))+1 > maxLeaves {
			err := errInvalidConfiguration("max_depth", "insert would exceed 2^max_depth leaves")
			t.cfg.logger().Emit(Event{Severity: SeverityWarning, Kind: EventValidationFail, Description: err.Error()})
			return err
		}
	}

	if _, dup := t.index.findExact(tag); dup {
		t.cfg.logger().Emit(Event{
			Severity:    SeverityWarning,
			Kind:        EventValidationFail,
			Description: "duplicate tag inserted (permitted, not deduplicated)",
			Metadata:    map[string]any{"tag": tag},
		})
	} else if idxs := t.findByTagLocked(tag); len(idxs) > 0 {
		t.cfg.logger().Emit(Event{
			Severity:    SeverityWarning,
			Kind:        EventValidationFail,
			Description: "duplicate tag inserted (permitted, not deduplicated)",
			Metadata:    map[string]any{"tag": tag},
		})
	}

	oldRoot := t.rootLocked()

	leaf := Leaf{Hash: t.hasher.Hash(data), Tag: tag, Data: data}
	t.leaves = append(t.leaves, leaf)
	leafIndex := len(t.leaves) - 1

	t.layers = buildLayers(t.leaves, t.hasher, t.cfg.ParallelConstruct)
	t.index.insert(tag, leafIndex)
	t.proofCache.clear()

	newRoot := t.rootLocked()
	if t.cfg.EnableDeltas && oldRoot != nil && newRoot != nil && !ConstantTimeEqual(oldRoot, newRoot) {
		d := DeltaRecord{
			DeltaDigest: t.hasher.HashPair(oldRoot, newRoot),
			OldRoot:     oldRoot,
			Tag:         tag,
		}
		t.deltas = append(t.deltas, d)
		t.deltaIndex.insert(tag, len(t.deltas)-1)
	}

	t.cfg.logger().Emit(Event{
		Severity:    SeverityInfo,
		Kind:        EventLeafInsert,
		Description: "leaf inserted",
		Metadata: map[string]any{
			"leaf_index": leafIndex,
			"tag":        tag,
			"hash":       formatDigest(leaf.Hash),
		},
	})
	return nil
}

// FindByTag returns every leaf index with L[k].Tag == tag, ascending,
// via a mandated linear scan over the leaf vector so duplicates are
// never lost (§4.4).
func (t *Tree) FindByTag(tag uint64) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.findByTagLocked(tag)
}

func (t *Tree) findByTagLocked(tag uint64) []int {
	var out []int
	for i, l := range t.leaves {
		if l.Tag == tag {
			out = append(out, i)
		}
	}
	return out
}

// FindRange returns every leaf index with lo <= L[k].Tag <= hi,
// ascending, via the same mandated linear scan as FindByTag (§4.4).
func (t *Tree) FindRange(lo, hi uint64) []int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []int
	for i, l := range t.leaves {
		if l.Tag >= lo && l.Tag <= hi {
			out = append(out, i)
		}
	}
	return out
}

// FindNearestIndexed returns the leaf index of the sparse-indexed tag
// closest to t, preferring the predecessor on a tie. Unlike FindByTag
// and FindRange this is an acceleration path only: it only sees
// admitted (tag mod sparsity == 0) entries, not every leaf (§4.2).
func (t *Tree) FindNearestIndexed(tag uint64) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.findNearest(tag)
}

// IndexedTimestamps returns every tag currently admitted to the sparse
// index, ascending.
func (t *Tree) IndexedTimestamps() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.index.timestamps()
}

// buildLayers is the canonical combine of §4.3: bottom-up pairing,
// duplicate-the-last-element for an odd layer. It is a pure function
// of (leaves, hasher, parallel) — the only correctness requirement on
// the parallel path is that it produce byte-identical output to the
// sequential path for the same input (§4.8).
func buildLayers(leaves []Leaf, hasher Hasher, parallel bool) [][]layerNode {
	if len(leaves) == 0 {
		return nil
	}

	layer0 := make([]layerNode, len(leaves))
	for i, l := range leaves {
		layer0[i] = layerNode{hash: l.Hash, tagLo: l.Tag, tagHi: l.Tag, count: 1}
	}

	layers := [][]layerNode{layer0}
	current := layer0
	for len(current) > 1 {
		next := combineLayer(current, hasher, parallel)
		layers = append(layers, next)
		current = next
	}
	return layers
}

func combineLayer(cur []layerNode, hasher Hasher, parallel bool) []layerNode {
	n := len(cur)
	outLen := (n + 1) / 2
	next := make([]layerNode, outLen)

	combine := func(i int) {
		left := cur[2*i]
		right := left
		duplicated := true
		if 2*i+1 < n {
			right = cur[2*i+1]
			duplicated = false
		}
		h := hasher.HashPair(left.hash, right.hash)
		count := left.count
		if !duplicated {
			count += right.count
		}
		next[i] = layerNode{
			hash:  h,
			tagLo: minU64(left.tagLo, right.tagLo),
			tagHi: maxU64(left.tagHi, right.tagHi),
			count: count,
		}
	}

	if parallel && outLen > 1 {
		var g errgroup.Group
		for i := 0; i < outLen; i++ {
			i := i
			g.Go(func() error {
				combine(i)
				return nil
			})
		}
		_ = g.Wait() // combine never returns an error; each worker writes a disjoint slot.
	} else {
		for i := 0; i < outLen; i++ {
			combine(i)
		}
	}
	return next
}

func minU64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// nodeRef is a read-only handle onto one node of the derived layer
// structure, used by Diff to walk two trees' structures in lockstep
// without materializing a pointer tree.
type nodeRef struct {
	layers [][]layerNode
	level  int
	index  int
}

func rootRef(t *Tree) (nodeRef, bool) {
	if len(t.layers) == 0 {
		return nodeRef{}, false
	}
	return nodeRef{layers: t.layers, level: len(t.layers) - 1, index: 0}, true
}

func (n nodeRef) node() layerNode { return n.layers[n.level][n.index] }

func (n nodeRef) isLeaf() bool { return n.level == 0 }

// children returns the left and right child refs. For a duplicated
// (odd-layer filler) node, right equals left — matching the builder's
// duplicate-last rule exactly, so Diff never reports a spurious
// mismatch against the filler slot.
func (n nodeRef) children() (left, right nodeRef, ok bool) {
	if n.isLeaf() {
		return nodeRef{}, nodeRef{}, false
	}
	childLayer := n.layers[n.level-1]
	li := n.index * 2
	if li >= len(childLayer) {
		return nodeRef{}, nodeRef{}, false
	}
	left = nodeRef{layers: n.layers, level: n.level - 1, index: li}
	ri := li + 1
	if ri < len(childLayer) {
		right = nodeRef{layers: n.layers, level: n.level - 1, index: ri}
	} else {
		right = left
	}
	return left, right, true
}
