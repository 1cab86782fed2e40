// Package storage defines the optional persistence boundary of §6:
// a five-operation Backend interface and the versioned, self-
// describing JSON document a Tree round-trips through.
package storage

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/JupiterMetaLabs/chronomerkle/merkle"
)

// Backend is the external storage collaborator of §6. Every operation
// may fail with a storage error; a missing key is reported by Load's
// ok return, not an error.
type Backend interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) (data []byte, ok bool, err error)
	Delete(ctx context.Context, key string) error
	ListKeys(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// CurrentDocumentVersion is the only version Unmarshal accepts. Bump it
// and add an explicit migration path before changing the field set
// below in a way that isn't purely additive.
const CurrentDocumentVersion = 1

// NodeKind distinguishes a Document's leaves from its derived nodes.
type NodeKind string

const (
	NodeKindLeaf     NodeKind = "leaf"
	NodeKindInternal NodeKind = "internal"
)

// NodeDoc is one entry of a Document's nodes array. Leaf-only and
// internal-only fields are simply left zero on the other kind.
type NodeDoc struct {
	Kind  NodeKind `json:"kind"`
	Hash  []byte   `json:"hash"`
	Tag   uint64   `json:"tag,omitempty"`
	Data  []byte   `json:"data,omitempty"`
	Left  []byte   `json:"left,omitempty"`
	Right []byte   `json:"right,omitempty"`
	TagLo uint64   `json:"tag_lo,omitempty"`
	TagHi uint64   `json:"tag_hi,omitempty"`
}

// SparseEntryDoc is one entry of the persisted sparse index.
type SparseEntryDoc struct {
	Tag   uint64 `json:"tag"`
	Index int    `json:"index"`
}

// ConfigDoc is the persisted subset of merkle.Config: the fields that
// describe policy rather than runtime wiring (Clock/Logger/Validators
// are injected dependencies, not serializable state).
type ConfigDoc struct {
	Sparsity          uint64 `json:"sparsity"`
	EnableDeltas      bool   `json:"enable_deltas"`
	MaxDepth          int    `json:"max_depth"`
	ParallelConstruct bool   `json:"parallel_construct"`
}

// DeltaDoc is one persisted delta record.
type DeltaDoc struct {
	DeltaDigest []byte `json:"delta_digest"`
	OldRoot     []byte `json:"old_root"`
	Tag         uint64 `json:"tag"`
}

// DeltaEntryDoc is one entry of the persisted delta index.
type DeltaEntryDoc struct {
	Tag      uint64 `json:"tag"`
	Position int    `json:"position"`
}

// Document is the ordered, self-describing record of §6's "Persisted
// state layout": version first, then the tree id, nodes (leaves before
// derived), leaf count, sparse index, configuration, deltas, delta index.
// encoding/json marshals struct fields in declaration order, which is
// what keeps this layout stable across encode calls.
type Document struct {
	Version     int             `json:"version"`
	TreeID      string          `json:"tree_id"`
	Nodes       []NodeDoc       `json:"nodes"`
	LeafCount   int             `json:"leaf_count"`
	SparseIndex []SparseEntryDoc `json:"sparse_index"`
	Config      ConfigDoc       `json:"config"`
	Deltas      []DeltaDoc      `json:"deltas"`
	DeltaIndex  []DeltaEntryDoc `json:"delta_index"`
}

// Encode builds a Document from a live tree's current state.
func Encode(tree *merkle.Tree) (Document, error) {
	leaves := tree.Leaves()
	nodes := make([]NodeDoc, 0, len(leaves))
	for _, l := range leaves {
		nodes = append(nodes, NodeDoc{Kind: NodeKindLeaf, Hash: l.Hash, Tag: l.Tag, Data: l.Data})
	}
	for _, n := range tree.InternalNodes() {
		nodes = append(nodes, NodeDoc{
			Kind: NodeKindInternal, Hash: n.Hash, Left: n.Left, Right: n.Right,
			TagLo: n.TagLo, TagHi: n.TagHi,
		})
	}

	sparse := make([]SparseEntryDoc, 0, len(tree.SparseEntries()))
	for _, e := range tree.SparseEntries() {
		sparse = append(sparse, SparseEntryDoc{Tag: e.Tag, Index: e.Index})
	}

	deltas := make([]DeltaDoc, 0, len(tree.Deltas()))
	for _, d := range tree.Deltas() {
		deltas = append(deltas, DeltaDoc{DeltaDigest: d.DeltaDigest, OldRoot: d.OldRoot, Tag: d.Tag})
	}

	deltaIdx := make([]DeltaEntryDoc, 0, len(tree.DeltaEntries()))
	for _, e := range tree.DeltaEntries() {
		deltaIdx = append(deltaIdx, DeltaEntryDoc{Tag: e.Tag, Position: e.Position})
	}

	cfg := tree.Config()
	return Document{
		Version:   CurrentDocumentVersion,
		TreeID:    tree.ID().String(),
		Nodes:     nodes,
		LeafCount: len(leaves),
		SparseIndex: sparse,
		Config: ConfigDoc{
			Sparsity:          cfg.Sparsity,
			EnableDeltas:      cfg.EnableDeltas,
			MaxDepth:          cfg.MaxDepth,
			ParallelConstruct: cfg.ParallelConstruct,
		},
		Deltas:     deltas,
		DeltaIndex: deltaIdx,
	}, nil
}

// Marshal serializes doc to its wire form.
func Marshal(doc Document) ([]byte, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "storage: marshal document")
	}
	return b, nil
}

// Unmarshal parses raw into a Document and rejects unknown versions
// before the caller ever tries to rebuild a tree from it.
func Unmarshal(raw []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Document{}, errors.Wrap(err, "storage: unmarshal document")
	}
	if doc.Version != CurrentDocumentVersion {
		return Document{}, errors.Errorf("storage: unsupported document version %d (want %d)", doc.Version, CurrentDocumentVersion)
	}
	return doc, nil
}

// Decode rebuilds a live *merkle.Tree from doc using hasher for
// combines. Decode never trusts doc's nodes array for anything beyond
// recovering the leaves (§6): internal nodes and indexes are always
// rebuilt, never replayed, so a document tampered outside its leaves
// cannot desynchronize the rebuilt tree from what it actually commits
// to.
func Decode(doc Document, hasher merkle.Hasher) (*merkle.Tree, error) {
	id, err := uuid.Parse(doc.TreeID)
	if err != nil {
		return nil, errors.Wrap(err, "storage: parse tree id")
	}

	leaves := make([]merkle.Leaf, 0, doc.LeafCount)
	for _, n := range doc.Nodes {
		if n.Kind != NodeKindLeaf {
			continue
		}
		leaves = append(leaves, merkle.Leaf{Hash: n.Hash, Tag: n.Tag, Data: n.Data})
	}
	if len(leaves) != doc.LeafCount {
		return nil, errors.Errorf("storage: document declares %d leaves but nodes array has %d", doc.LeafCount, len(leaves))
	}

	deltas := make([]merkle.DeltaRecord, 0, len(doc.Deltas))
	for _, d := range doc.Deltas {
		deltas = append(deltas, merkle.DeltaRecord{DeltaDigest: d.DeltaDigest, OldRoot: d.OldRoot, Tag: d.Tag})
	}

	cfg := merkle.DefaultConfig()
	cfg.Sparsity = doc.Config.Sparsity
	cfg.EnableDeltas = doc.Config.EnableDeltas
	cfg.MaxDepth = doc.Config.MaxDepth
	cfg.ParallelConstruct = doc.Config.ParallelConstruct

	tree, err := merkle.Rehydrate(id, hasher, leaves, deltas, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "storage: rehydrate tree")
	}
	return tree, nil
}
