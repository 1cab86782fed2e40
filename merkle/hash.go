// Package merkle implements the time-tagged Merkle accumulator: an
// ordered-leaf tree whose leaves carry a monotonic tag alongside their
// data digest, with inclusion proofs, a sparse tag index, and a
// delta/rollback subsystem over root transitions.
package merkle

import (
	"crypto/sha256"
	"fmt"
)

// Hasher is the pluggable hash contract (§4.1). Implementations must be
// pure functions of their inputs: same bytes in, same digest out, every
// time, on every machine. HashPair is used for every internal-node
// combine, every delta combine, and every verifier step, so the
// builder and the verifier MUST share one implementation.
type Hasher interface {
	// Hash returns the digest of data.
	Hash(data []byte) []byte
	// HashPair returns H(a || b), the canonical pair combiner.
	HashPair(a, b []byte) []byte
	// Size returns the fixed digest width in bytes.
	Size() int
}

// SHA256Hasher is the default Hasher, using crypto/sha256.
type SHA256Hasher struct{}

// NewSHA256Hasher returns the default, always-available Hasher.
func NewSHA256Hasher() SHA256Hasher { return SHA256Hasher{} }

func (SHA256Hasher) Hash(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

func (h SHA256Hasher) HashPair(a, b []byte) []byte {
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	return h.Hash(buf)
}

func (SHA256Hasher) Size() int { return sha256.Size }

// insecureHasher is the forbidden no-hash fallback. It satisfies the
// Hasher interface so the engine can detect it by type at construction
// time (§4.1: "attempting to operate an engine with it must fail loudly
// before the first write"), but every method panics if actually called.
type insecureHasher struct{}

// InsecureNoHash returns a Hasher that can never be used to build a
// tree. New rejects it explicitly; its methods panic as a second
// line of defense in case a caller bypasses that check (e.g. by
// embedding it in a wrapper type).
func InsecureNoHash() Hasher { return insecureHasher{} }

const insecureHasherMsg = "merkle: the insecure no-op hasher was used to perform a hash operation; " +
	"construct a tree with a real cryptographic Hasher (e.g. NewSHA256Hasher or hash/blake2b)"

func (insecureHasher) Hash(data []byte) []byte       { panic(insecureHasherMsg) }
func (insecureHasher) HashPair(a, b []byte) []byte   { panic(insecureHasherMsg) }
func (insecureHasher) Size() int                     { return 0 }

// isInsecure reports whether h is the forbidden fallback itself. A
// wrapper type around it is not detected here.
func isInsecure(h Hasher) bool {
	_, ok := h.(insecureHasher)
	return ok
}

// ConstantTimeEqual compares two byte slices in time that depends only
// on their lengths, never their content, per §6's constant-time
// equality requirement. It returns false immediately on a length
// mismatch and otherwise accumulates an XOR difference across every
// byte before branching.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var diff byte
	for i := range a {
		diff |= a[i] ^ b[i]
	}
	return diff == 0
}

func formatDigest(d []byte) string {
	if len(d) > 8 {
		d = d[:8]
	}
	return fmt.Sprintf("%x…", d)
}
