package merkle

import "github.com/google/uuid"

// Leaves returns a copy of the ordered leaf vector, for callers that
// need to serialize tree state (§6's "Tree state that crosses this
// boundary... with data preserved").
func (t *Tree) Leaves() []Leaf {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Leaf, len(t.leaves))
	copy(out, t.leaves)
	return out
}

// SparseEntry is one exported (tag, leafIndex) pair of the sparse
// index, for serialization.
type SparseEntry struct {
	Tag   uint64
	Index int
}

// SparseEntries returns every admitted entry of the sparse index,
// ascending by tag.
func (t *Tree) SparseEntries() []SparseEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []SparseEntry
	t.index.tree.Ascend(func(e sparseEntry) bool {
		out = append(out, SparseEntry{Tag: e.tag, Index: e.index})
		return true
	})
	return out
}

// Deltas returns a copy of the delta log, in insertion order.
func (t *Tree) Deltas() []DeltaRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]DeltaRecord, len(t.deltas))
	copy(out, t.deltas)
	return out
}

// DeltaEntry is one exported (tag, position) pair of the delta index.
type DeltaEntry struct {
	Tag      uint64
	Position int
}

// DeltaEntries returns every entry of the parallel delta index.
func (t *Tree) DeltaEntries() []DeltaEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []DeltaEntry
	t.deltaIndex.tree.Ascend(func(e sparseEntry) bool {
		out = append(out, DeltaEntry{Tag: e.tag, Position: e.index})
		return true
	})
	return out
}

// InternalNodes reconstructs every derived Internal node from the
// current layer cache, leaves-layer excluded, for inspection or
// serialization (§3, §6). These are never consulted on rehydration —
// Rehydrate rebuilds them deterministically from the leaves — so a
// tampered entry here cannot desynchronize a reloaded tree.
func (t *Tree) InternalNodes() []Internal {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Internal
	for level := 1; level < len(t.layers); level++ {
		layer := t.layers[level]
		children := t.layers[level-1]
		for i, n := range layer {
			li := i * 2
			left := children[li].hash
			right := left
			if ri := li + 1; ri < len(children) {
				right = children[ri].hash
			}
			out = append(out, Internal{Hash: n.hash, Left: left, Right: right, TagLo: n.tagLo, TagHi: n.tagHi})
		}
	}
	return out
}

// Rehydrate reconstructs a Tree from previously-serialized state
// without re-running §4.9 validation — the leaves were already
// validated at their original insertion time, and re-validating
// against the current clock would reject perfectly good historical
// data (§6: "the engine must round-trip state losslessly"). The
// sparse index and delta index are rebuilt from the leaves/deltas
// directly rather than trusted from the document, so a corrupt or
// stale index in a tampered document can never desynchronize from the
// data it's supposed to index.
func Rehydrate(id uuid.UUID, hasher Hasher, leaves []Leaf, deltas []DeltaRecord, cfg Config) (*Tree, error) {
	if hasher == nil || isInsecure(hasher) {
		return nil, errInvalidConfiguration("hasher", "a real cryptographic Hasher is required; the insecure no-op hasher is forbidden")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t := &Tree{
		id:         id,
		hasher:     hasher,
		cfg:        cfg,
		leaves:     append([]Leaf(nil), leaves...),
		index:      newSparseIndex(cfg.Sparsity),
		deltas:     append([]DeltaRecord(nil), deltas...),
		deltaIndex: newSparseIndex(1),
		proofCache: newProofCache(256),
	}
	t.layers = buildLayers(t.leaves, t.hasher, false)
	for i, l := range t.leaves {
		t.index.insert(l.Tag, i)
	}
	for i, d := range t.deltas {
		t.deltaIndex.insert(d.Tag, i)
	}

	t.cfg.logger().Emit(Event{
		Severity:    SeverityInfo,
		Kind:        EventTreeInit,
		Description: "tree rehydrated from a persisted document",
		Metadata: map[string]any{
			"id":          t.id.String(),
			"leaf_count":  len(t.leaves),
			"delta_count": len(t.deltas),
		},
	})
	return t, nil
}
