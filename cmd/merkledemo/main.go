// Command merkledemo is a sample client illustrating how an append-only
// block log can be anchored in a time-aware Merkle tree: each block's
// height becomes the leaf's timestamp tag, so callers can later ask
// "what was committed by height H" without scanning the whole chain.
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JupiterMetaLabs/chronomerkle/merkle"
	"github.com/JupiterMetaLabs/chronomerkle/storage"
	"github.com/JupiterMetaLabs/chronomerkle/storage/file"
)

type block struct {
	Height   uint64 `json:"height"`
	PrevHash string `json:"prev_hash"`
	Payload  string `json:"payload"`
}

func (b block) bytes() []byte {
	raw, _ := json.Marshal(b)
	return raw
}

var (
	storeDir string
	treeKey  = "merkledemo.tree"
)

func main() {
	root := &cobra.Command{
		Use:   "merkledemo",
		Short: "Append and verify blockchain-style blocks against a time-aware Merkle tree",
	}
	root.PersistentFlags().StringVar(&storeDir, "store", "./merkledemo-data", "directory for persisted tree state")

	root.AddCommand(appendCmd(), proveCmd(), verifyCmd(), rootCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openOrCreateTree(ctx context.Context) (*merkle.Tree, storage.Backend, error) {
	backend, err := file.New(storeDir)
	if err != nil {
		return nil, nil, err
	}
	raw, ok, err := backend.Load(ctx, treeKey)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		tree, err := merkle.New(merkle.NewSHA256Hasher(), merkle.WithSparsity(16))
		return tree, backend, err
	}
	doc, err := storage.Unmarshal(raw)
	if err != nil {
		return nil, nil, err
	}
	tree, err := storage.Decode(doc, merkle.NewSHA256Hasher())
	return tree, backend, err
}

func saveTree(ctx context.Context, tree *merkle.Tree, backend storage.Backend) error {
	doc, err := storage.Encode(tree)
	if err != nil {
		return err
	}
	raw, err := storage.Marshal(doc)
	if err != nil {
		return err
	}
	return backend.Save(ctx, treeKey, raw)
}

func appendCmd() *cobra.Command {
	var height uint64
	var payload string
	cmd := &cobra.Command{
		Use:   "append",
		Short: "Append a block at the given height",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, backend, err := openOrCreateTree(ctx)
			if err != nil {
				return err
			}
			prev := tree.Root()
			b := block{Height: height, PrevHash: hex.EncodeToString(prev), Payload: payload}
			if err := tree.Insert(b.bytes(), height); err != nil {
				return err
			}
			if err := saveTree(ctx, tree, backend); err != nil {
				return err
			}
			fmt.Printf("appended block %d, new root %s\n", height, hex.EncodeToString(tree.Root()))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&height, "height", 0, "block height, used as the leaf's timestamp tag")
	cmd.Flags().StringVar(&payload, "payload", "", "block payload")
	return cmd
}

func proveCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "prove",
		Short: "Generate an inclusion proof for the leaf at the given index",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, _, err := openOrCreateTree(ctx)
			if err != nil {
				return err
			}
			proof, err := tree.Generate(index)
			if err != nil {
				return err
			}
			raw, err := json.MarshalIndent(proof, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "leaf index to prove")
	return cmd
}

func verifyCmd() *cobra.Command {
	var index int
	var tag uint64
	var payload string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify a block's inclusion proof against the current root",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			tree, _, err := openOrCreateTree(ctx)
			if err != nil {
				return err
			}
			proof, err := tree.Generate(index)
			if err != nil {
				return err
			}
			leaf, err := tree.Leaf(index)
			if err != nil {
				return err
			}
			_ = payload
			leafHash := tree.Hasher().Hash(leaf.Data)
			ok, err := merkle.VerifyInclusion(tree.Hasher(), proof, leafHash, tag, tree.Root())
			if err != nil {
				return err
			}
			fmt.Println("valid:", ok)
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "leaf index to verify")
	cmd.Flags().Uint64Var(&tag, "tag", 0, "expected height tag")
	cmd.Flags().StringVar(&payload, "payload", "", "unused, reserved for future payload re-derivation")
	return cmd
}

func rootCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "root",
		Short: "Print the current tree root",
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, _, err := openOrCreateTree(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(hex.EncodeToString(tree.Root()))
			return nil
		},
	}
}
