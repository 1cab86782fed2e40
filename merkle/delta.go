package merkle

// DeltaChain returns every delta record with Tag >= fromTag, in the
// order they were recorded (§4.7). It is an audit-trail accessor, not
// a verification primitive — see VerifyDelta for why a chain longer
// than one hop can only be weakly checked.
func (t *Tree) DeltaChain(fromTag uint64) []DeltaRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []DeltaRecord
	for _, d := range t.deltas {
		if d.Tag >= fromTag {
			out = append(out, d)
		}
	}
	return out
}

// Prune discards delta records older than beforeTag (§4.7). It does
// not touch leaves or the sparse index — pruning only trims the
// rollback/audit history, never the accumulator itself.
func (t *Tree) Prune(beforeTag uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.deltas[:0:0]
	for _, d := range t.deltas {
		if d.Tag >= beforeTag {
			kept = append(kept, d)
		}
	}
	t.deltas = kept

	t.deltaIndex.clear()
	for i, d := range t.deltas {
		t.deltaIndex.insert(d.Tag, i)
	}
}

// VerifyDelta checks a claimed (oldRoot -> newRoot) transition against
// a delta chain (§4.5, §4.7).
//
// This is a deliberately weak binding, not a tree-identity proof: each
// DeltaRecord only stores delta_digest = H_pair(old_root, new_root)
// and the old_root it followed, never the new_root itself. A chain of
// length 1 is fully checked — DeltaDigest is a preimage-resistant
// commitment to exactly this (oldRoot, newRoot) pair. A longer chain
// can only have its first hop's old_root and its last hop's digest
// checked against the caller-supplied endpoints; the hops in between
// are accepted on the strength of their own recorded OldRoot/Tag
// ordering, not re-derived cryptographically. A verifier that needs
// full tree identity across a multi-step chain must replay the
// inserts, not just the deltas.
func VerifyDelta(hasher Hasher, oldRoot, newRoot []byte, chain []DeltaRecord) (bool, error) {
	if hasher == nil || isInsecure(hasher) {
		return false, errInvalidProof("a real cryptographic Hasher is required to verify")
	}
	if len(chain) == 0 {
		return false, errInvalidProof("delta chain is empty")
	}
	if len(oldRoot) == 0 || len(newRoot) == 0 {
		return false, errInvalidProof("old/new root must not be empty")
	}

	if !ConstantTimeEqual(chain[0].OldRoot, oldRoot) {
		return false, nil
	}

	for i := 1; i < len(chain); i++ {
		if chain[i].Tag < chain[i-1].Tag {
			return false, errInvalidProof("delta chain tags are not ordered")
		}
		if len(chain[i].OldRoot) == 0 || len(chain[i].DeltaDigest) == 0 {
			return false, errInvalidProof("delta chain has an incomplete record")
		}
	}

	last := chain[len(chain)-1]
	expected := hasher.HashPair(last.OldRoot, newRoot)
	return ConstantTimeEqual(expected, last.DeltaDigest), nil
}

// Rollback keeps every leaf whose tag is <= targetTag, in its original
// insertion order, and drops every other leaf (§4.7); this is a filter
// on tag, not a truncation at a position, so with non-monotonic tags a
// later-inserted leaf can survive an earlier-inserted one. The derived
// layers and sparse index are rebuilt from the retained leaf vector,
// and delta records are filtered by the same tag rule. Rolling back past every leaf is
// rejected — Rollback never empties a non-empty tree out from under a
// caller silently.
func (t *Tree) Rollback(targetTag uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.leaves) == 0 {
		return errEmptyTree()
	}

	retained := t.leaves[:0:0]
	for _, l := range t.leaves {
		if l.Tag <= targetTag {
			retained = append(retained, l)
		}
	}
	if len(retained) == 0 {
		return errInvalidTag(targetTag, "no retained leaf precedes this tag; rollback would empty the tree")
	}

	t.leaves = retained
	t.layers = buildLayers(t.leaves, t.hasher, t.cfg.ParallelConstruct)

	t.index.clear()
	for i, l := range t.leaves {
		t.index.insert(l.Tag, i)
	}

	retainedDeltas := t.deltas[:0:0]
	for _, d := range t.deltas {
		if d.Tag <= targetTag {
			retainedDeltas = append(retainedDeltas, d)
		}
	}
	t.deltas = retainedDeltas
	t.deltaIndex.clear()
	for i, d := range t.deltas {
		t.deltaIndex.insert(d.Tag, i)
	}

	t.proofCache.clear()

	t.cfg.logger().Emit(Event{
		Severity:    SeverityWarning,
		Kind:        EventConfigChange,
		Description: "tree rolled back",
		Metadata: map[string]any{
			"target_tag":     targetTag,
			"retained_count": len(t.leaves),
		},
	})
	return nil
}
