package core

import "testing"

func TestNewChunkProofDeterministic(t *testing.T) {
	value := []byte("chunk-bytes")
	p1 := NewChunkProof(value, Nonce(42))
	p2 := NewChunkProof(value, Nonce(42))
	if !p1.Equal(p2) {
		t.Fatal("expected identical proofs for identical (value, nonce)")
	}
}

func TestNewChunkProofDiffersOnNonce(t *testing.T) {
	value := []byte("chunk-bytes")
	p1 := NewChunkProof(value, Nonce(1))
	p2 := NewChunkProof(value, Nonce(2))
	if p1.Equal(p2) {
		t.Fatal("expected different proofs for different nonces")
	}
}

func TestNewChunkProofDiffersOnValue(t *testing.T) {
	p1 := NewChunkProof([]byte("a"), Nonce(1))
	p2 := NewChunkProof([]byte("b"), Nonce(1))
	if p1.Equal(p2) {
		t.Fatal("expected different proofs for different values")
	}
}
