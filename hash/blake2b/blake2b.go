// Package blake2b provides a second concrete merkle.Hasher, exercising
// the core engine's hash-pluggability contract (§4.1) beyond the
// stdlib-backed SHA-256 default.
package blake2b

import (
	"golang.org/x/crypto/blake2b"

	"github.com/JupiterMetaLabs/chronomerkle/merkle"
)

// Hasher implements merkle.Hasher over BLAKE2b-256.
type Hasher struct{}

// New returns a ready-to-use BLAKE2b Hasher.
func New() Hasher { return Hasher{} }

func (Hasher) Hash(data []byte) []byte {
	sum := blake2b.Sum256(data)
	return sum[:]
}

func (h Hasher) HashPair(a, b []byte) []byte {
	buf := make([]byte, 0, len(a)+len(b))
	buf = append(buf, a...)
	buf = append(buf, b...)
	return h.Hash(buf)
}

func (Hasher) Size() int { return blake2b.Size256 }

var _ merkle.Hasher = Hasher{}
