package core

import (
	"crypto/sha256"
	"encoding/binary"
)

// ChunkProof is the fixed-size digest produced by keying a collision
// resistant hash on a nonce and a chunk's bytes. Equality of two proofs
// implies, with cryptographic certainty, equality of the underlying value
// under the same nonce.
type ChunkProof [32]byte

// NewChunkProof computes H(nonce_le_bytes ‖ value). The hash is SHA-256,
// fixed across all nodes so independently computed proofs for the same
// (value, nonce) always agree.
func NewChunkProof(value []byte, nonce Nonce) ChunkProof {
	var nb [8]byte
	binary.LittleEndian.PutUint64(nb[:], uint64(nonce))
	h := sha256.New()
	h.Write(nb[:])
	h.Write(value)
	var out ChunkProof
	copy(out[:], h.Sum(nil))
	return out
}

// Equal reports byte-wise equality between two proofs.
func (p ChunkProof) Equal(other ChunkProof) bool {
	return p == other
}
