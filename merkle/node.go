package merkle

// Leaf is an appended record: a data-derived digest, the caller's tag
// (informally a timestamp, but the engine imposes only ordinal
// semantics), and the original data — retained only so a serialized
// tree can be rehydrated (§3). Leaves are created by Insert, never
// mutated, and destroyed only by rollback-driven truncation.
type Leaf struct {
	Hash []byte
	Tag  uint64
	Data []byte
}

// Internal is a derived node: purely a function of its children.
// Discarded and recomputed on every write or rollback (§4.5) — the
// engine never ships a half-updated internal layer.
type Internal struct {
	Hash  []byte
	Left  []byte
	Right []byte
	TagLo uint64
	TagHi uint64
}

// DeltaRecord captures one root transition caused by exactly one
// insert (§3, §4.7). It is a side channel: deltas never participate in
// inclusion proofs, only in verify-delta/rollback.
type DeltaRecord struct {
	DeltaDigest []byte
	OldRoot     []byte
	Tag         uint64
}

// Validator is the "programmable node" hook (§9): a predicate attached
// to verification, not to node identity. Every Validator passed to
// VerifyInclusionWithValidators must evaluate true for verification to accept.
type Validator func(leaf Leaf) bool
