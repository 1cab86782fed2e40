package merkle

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Side records which side of the running hash a proof step's sibling
// sits on when the verifier recombines (§4.6).
type Side int

const (
	SideLeft Side = iota
	SideRight
)

func (s Side) String() string {
	if s == SideLeft {
		return "left"
	}
	return "right"
}

// ProofStep is one level of the sibling inclusion path.
type ProofStep struct {
	Sibling []byte
	Side    Side
}

// DeltaStep is one hop of a cross-root replay (§4.6, "delta-replay
// proofs"): it carries the old/new root of one recorded transition
// plus the companion digest (the delta's recorded DeltaDigest) the
// verifier must recompute and match before advancing.
type DeltaStep struct {
	OldRoot   []byte
	NewRoot   []byte
	Companion []byte
}

// Proof is an inclusion proof for one leaf, optionally extended with a
// delta-replay tail that carries the proof forward from the root it
// was generated against to a later root (§4.6).
type Proof struct {
	LeafIndex  int
	LeafHash   []byte
	Tag        uint64
	Path       []ProofStep
	DeltaSteps []DeltaStep
}

// proofCache memoizes Generate's base (non-delta-bearing) result by
// leaf index. It is cleared on every Insert/Rollback since every path
// can change with the layer structure (§4.5).
type proofCache struct {
	c *lru.Cache[int, Proof]
}

func newProofCache(size int) *proofCache {
	c, err := lru.New[int, Proof](size)
	if err != nil {
		panic(err) // only a non-positive size fails, and size is package-controlled
	}
	return &proofCache{c: c}
}

func (p *proofCache) get(leafIndex int) (Proof, bool) {
	if p == nil || p.c == nil {
		return Proof{}, false
	}
	return p.c.Get(leafIndex)
}

func (p *proofCache) put(leafIndex int, proof Proof) {
	if p == nil || p.c == nil {
		return
	}
	p.c.Add(leafIndex, proof)
}

func (p *proofCache) clear() {
	if p == nil || p.c == nil {
		return
	}
	p.c.Purge()
}

// walkPath builds the sibling inclusion path for leafIndex over a
// fixed set of derived layers, per §4.3/§4.6's duplicate-last rule.
func walkPath(layers [][]layerNode, leafIndex int) []ProofStep {
	var steps []ProofStep
	level, idx := 0, leafIndex
	for level < len(layers)-1 {
		layer := layers[level]
		var sibIdx int
		var side Side
		if idx%2 == 0 {
			sibIdx = idx + 1
			if sibIdx >= len(layer) {
				sibIdx = idx // odd-layer filler: duplicate of self
			}
			side = SideRight
		} else {
			sibIdx = idx - 1
			side = SideLeft
		}
		steps = append(steps, ProofStep{Sibling: layer[sibIdx].hash, Side: side})
		idx /= 2
		level++
	}
	return steps
}

// Generate produces a plain inclusion proof for the leaf at leafIndex,
// valid against the tree's current root (§4.6).
func (t *Tree) Generate(leafIndex int) (Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.leaves) == 0 {
		return Proof{}, errEmptyTree()
	}
	if leafIndex < 0 || leafIndex >= len(t.leaves) {
		return Proof{}, errIndexOutOfBounds(leafIndex, len(t.leaves))
	}
	if cached, ok := t.proofCache.get(leafIndex); ok {
		return cached, nil
	}

	leaf := t.leaves[leafIndex]
	proof := Proof{
		LeafIndex: leafIndex,
		LeafHash:  leaf.Hash,
		Tag:       leaf.Tag,
		Path:      walkPath(t.layers, leafIndex),
	}
	t.proofCache.put(leafIndex, proof)
	return proof, nil
}

// GenerateDeltaBearing produces an inclusion proof for leafIndex valid
// against the root as of leafIndex's own insert, extended with an
// ordered DeltaSteps tail that replays it forward to the root as of
// throughLeafIndex's insert (§4.6, §4.7). It requires a dense delta
// log — every insert after the first must have recorded a delta,
// which holds whenever deltas are enabled and no hash collision has
// occurred — and returns DeltaFailed if that does not hold.
func (t *Tree) GenerateDeltaBearing(leafIndex, throughLeafIndex int) (Proof, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.leaves) == 0 {
		return Proof{}, errEmptyTree()
	}
	if leafIndex < 0 || leafIndex >= len(t.leaves) {
		return Proof{}, errIndexOutOfBounds(leafIndex, len(t.leaves))
	}
	if throughLeafIndex < leafIndex || throughLeafIndex >= len(t.leaves) {
		return Proof{}, errIndexOutOfBounds(throughLeafIndex, len(t.leaves))
	}

	historical := buildLayers(t.leaves[:leafIndex+1], t.hasher, false)
	leaf := t.leaves[leafIndex]
	proof := Proof{
		LeafIndex: leafIndex,
		LeafHash:  leaf.Hash,
		Tag:       leaf.Tag,
		Path:      walkPath(historical, leafIndex),
	}

	if leafIndex == throughLeafIndex {
		return proof, nil
	}
	if !t.cfg.EnableDeltas {
		return Proof{}, errDeltaFailed("deltas are disabled; cannot build a cross-root replay proof")
	}
	if len(t.deltas) != len(t.leaves)-1 {
		return Proof{}, errDeltaFailed("delta log is not dense; cross-root replay is unsupported for this tree")
	}

	for i := leafIndex; i < throughLeafIndex; i++ {
		d := t.deltas[i]
		var newRoot []byte
		switch {
		case i+1 < throughLeafIndex:
			newRoot = t.deltas[i+1].OldRoot
		case throughLeafIndex == len(t.leaves)-1:
			newRoot = t.rootLocked()
		default:
			throughLayers := buildLayers(t.leaves[:throughLeafIndex+1], t.hasher, false)
			newRoot = throughLayers[len(throughLayers)-1][0].hash
		}
		proof.DeltaSteps = append(proof.DeltaSteps, DeltaStep{
			OldRoot:   d.OldRoot,
			NewRoot:   newRoot,
			Companion: d.DeltaDigest,
		})
	}
	return proof, nil
}

// VerifyInclusion checks proof against expectedTag and root (§4.6).
//
// The bool/error split (§7) is load-bearing: a tag mismatch or a
// sibling-path root mismatch returns (false, nil) — an expected
// negative outcome a caller branches on, exactly as scenario 1 of §8
// requires for a mutated declared tag. A malformed DeltaStep (missing
// companion, a companion that doesn't recompute, old==new, or a break
// in the replay chain) returns a typed ProofVerificationFailed error,
// since those can only arise from a corrupt proof or an adversarial
// tamper, never from an honest mismatch.
func VerifyInclusion(hasher Hasher, proof Proof, leafHash []byte, expectedTag uint64, root []byte) (bool, error) {
	if hasher == nil || isInsecure(hasher) {
		return false, errInvalidProof("a real cryptographic Hasher is required to verify")
	}
	if len(leafHash) == 0 {
		return false, errInvalidProof("leaf hash is empty")
	}
	if len(root) == 0 {
		return false, errInvalidProof("root is empty")
	}

	if proof.Tag != expectedTag {
		return false, nil
	}

	cur := leafHash
	for _, step := range proof.Path {
		if len(step.Sibling) == 0 {
			return false, errInvalidProof("proof step has an empty sibling digest")
		}
		switch step.Side {
		case SideLeft:
			cur = hasher.HashPair(step.Sibling, cur)
		case SideRight:
			cur = hasher.HashPair(cur, step.Sibling)
		default:
			return false, errInvalidProof("proof step has an unrecognized side")
		}
	}

	for _, ds := range proof.DeltaSteps {
		if len(ds.OldRoot) == 0 || len(ds.NewRoot) == 0 || len(ds.Companion) == 0 {
			return false, errProofVerificationFailed("delta step is missing old root, new root, or companion")
		}
		if !ConstantTimeEqual(cur, ds.OldRoot) {
			return false, errProofVerificationFailed("delta step old root does not match the accumulated digest")
		}
		if ConstantTimeEqual(ds.OldRoot, ds.NewRoot) {
			return false, errProofVerificationFailed("delta step old and new root are equal")
		}
		expectedCompanion := hasher.HashPair(ds.OldRoot, ds.NewRoot)
		if !ConstantTimeEqual(expectedCompanion, ds.Companion) {
			return false, errProofVerificationFailed("delta step companion does not match the recomputed digest")
		}
		cur = ds.NewRoot
	}

	return ConstantTimeEqual(cur, root), nil
}

// VerifyInclusionWithValidators is VerifyInclusion plus the
// programmable validator hook of §9: every validator must accept leaf
// before the cryptographic check even runs.
func VerifyInclusionWithValidators(hasher Hasher, proof Proof, leaf Leaf, root []byte, validators []Validator) (bool, error) {
	if !runValidators(validators, leaf) {
		return false, errValidationFailed("leaf rejected by a registered validator")
	}
	return VerifyInclusion(hasher, proof, leaf.Hash, leaf.Tag, root)
}
