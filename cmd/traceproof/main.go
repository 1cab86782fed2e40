// Command traceproof is a sample client illustrating an execution-trace
// compression adapter: each trace event is committed as a leaf tagged
// by its timestamp, so a verifier can later request a proof that a
// specific event occurred by a given time without replaying the whole
// trace.
package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/JupiterMetaLabs/chronomerkle/merkle"
	"github.com/JupiterMetaLabs/chronomerkle/storage"
	"github.com/JupiterMetaLabs/chronomerkle/storage/compressed"
	"github.com/JupiterMetaLabs/chronomerkle/storage/file"
)

// traceEvent is one line of an ingested execution trace: a monotonic
// sequence number, a wall-clock timestamp, and an opaque instruction
// record.
type traceEvent struct {
	Seq         uint64 `json:"seq"`
	TimestampNS uint64 `json:"timestamp_ns"`
	Instruction string `json:"instruction"`
}

const docKey = "traceproof.tree"

var storeDir string

func main() {
	root := &cobra.Command{
		Use:   "traceproof",
		Short: "Commit an execution trace to a Merkle tree and prove membership of individual events",
	}
	root.PersistentFlags().StringVar(&storeDir, "store", "./traceproof-data", "directory for the compressed persisted tree")

	root.AddCommand(ingestCmd(), proveAtCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func openBackend() (storage.Backend, error) {
	fileBackend, err := file.New(storeDir)
	if err != nil {
		return nil, err
	}
	return compressed.New(fileBackend)
}

func loadOrNewTree(ctx context.Context, backend storage.Backend) (*merkle.Tree, error) {
	raw, ok, err := backend.Load(ctx, docKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return merkle.New(merkle.NewSHA256Hasher(), merkle.WithSparsity(64), merkle.WithParallelConstruct(true))
	}
	doc, err := storage.Unmarshal(raw)
	if err != nil {
		return nil, err
	}
	return storage.Decode(doc, merkle.NewSHA256Hasher())
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
	return backend.Save(ctx, docKey, raw)
}

// ingestCmd reads newline-delimited JSON trace events from a file (or
// stdin) and commits each as a leaf tagged by its timestamp.
func ingestCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest a newline-delimited JSON trace file",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			in := os.Stdin
			if path != "" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			backend, err := openBackend()
			if err != nil {
				return err
			}
			tree, err := loadOrNewTree(ctx, backend)
			if err != nil {
				return err
			}

			scanner := bufio.NewScanner(in)
			count := 0
			for scanner.Scan() {
				var ev traceEvent
				if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
					return fmt.Errorf("traceproof: parse event %d: %w", count, err)
				}
				raw, err := json.Marshal(ev)
				if err != nil {
					return err
				}
				if err := tree.Insert(raw, ev.TimestampNS); err != nil {
					return err
				}
				count++
			}
			if err := scanner.Err(); err != nil {
				return err
			}

			if err := saveTree(ctx, tree, backend); err != nil {
				return err
			}
			fmt.Printf("ingested %d events, root %s\n", count, hex.EncodeToString(tree.Root()))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "file", "", "trace file to ingest (defaults to stdin)")
	return cmd
}

// proveAtCmd proves that the sparse-indexed event whose timestamp is
// nearest a given timestamp was committed. The chosen event may lie
// before or after that timestamp; on a tie the earlier one wins.
func proveAtCmd() *cobra.Command {
	var atNanos uint64
	var since string
	cmd := &cobra.Command{
		Use:   "prove-at",
		Short: "Prove inclusion of the event nearest the given timestamp",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("traceproof: parse --since: %w", err)
				}
				atNanos = uint64(t.UnixNano())
			}

			backend, err := openBackend()
			if err != nil {
				return err
			}
			tree, err := loadOrNewTree(ctx, backend)
			if err != nil {
				return err
			}

			index, ok := tree.FindNearestIndexed(atNanos)
			if !ok {
				return fmt.Errorf("traceproof: no indexed event to prove near timestamp %d", atNanos)
			}
			leaf, err := tree.Leaf(index)
			if err != nil {
				return err
			}
			proof, err := tree.Generate(index)
			if err != nil {
				return err
			}

			out := struct {
				Index int          `json:"index"`
				Tag   uint64       `json:"tag"`
				Proof merkle.Proof `json:"proof"`
				Root  string       `json:"root"`
			}{Index: index, Tag: leaf.Tag, Proof: proof, Root: hex.EncodeToString(tree.Root())}
			raw, err := json.MarshalIndent(out, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(raw))
			return nil
		},
	}
	cmd.Flags().Uint64Var(&atNanos, "at-nanos", 0, "timestamp in nanoseconds")
	cmd.Flags().StringVar(&since, "since", "", "RFC3339 timestamp, overrides --at-nanos")
	return cmd
}
