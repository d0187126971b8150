package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeDecodeRequestRoundTrip(t *testing.T) {
	key := RecordKey{1, 2, 3}
	req := Request{Kind: QueryGetChunkExistenceProof, Addr: NewRecordAddress(key), Key: key, Nonce: 42, Difficulty: 3}

	got := decodeRequest(encodeRequest(req))

	if got.Kind != req.Kind || got.Nonce != req.Nonce || got.Difficulty != req.Difficulty {
		t.Fatalf("scalar fields did not round-trip: %+v", got)
	}
	if string(got.Key) != string(req.Key) {
		t.Fatalf("key did not round-trip: got %x want %x", got.Key, req.Key)
	}
	gotKey, ok := got.Addr.ToRecordKey()
	if !ok || string(gotKey) != string(key) {
		t.Fatalf("addr did not round-trip: %+v", got.Addr)
	}
}

func TestEncodeDecodeResponseRoundTripsQuote(t *testing.T) {
	quote := Quote{
		Hash:           QuoteHash{1, 2, 3},
		Cost:           NewAttoTokens(500),
		PricingMetrics: QuotingMetrics{ClosestRecordsCount: 7},
		RewardAddress:  common.HexToAddress("0x00000000000000000000000000000000000042"),
		ExpirationSecs: 12345,
		Signature:      []byte{0xAA, 0xBB},
	}
	resp := Response{Kind: QueryGetStoreCost, Quote: &quote}

	got := decodeResponse(encodeResponse(resp))

	if got.Quote == nil {
		t.Fatal("expected quote to survive the wire round trip")
	}
	if got.Quote.Hash != quote.Hash {
		t.Fatalf("quote hash mismatch: got %x want %x", got.Quote.Hash, quote.Hash)
	}
	if got.Quote.Cost.Cmp(quote.Cost) != 0 {
		t.Fatalf("quote cost mismatch: got %s want %s", got.Quote.Cost, quote.Cost)
	}
	if got.Quote.RewardAddress != quote.RewardAddress {
		t.Fatalf("reward address mismatch: got %s want %s", got.Quote.RewardAddress.Hex(), quote.RewardAddress.Hex())
	}
	if got.Quote.ExpirationSecs != quote.ExpirationSecs {
		t.Fatal("expiration did not round-trip")
	}
}

func TestEncodeDecodeResponseRoundTripsProofs(t *testing.T) {
	key := RecordKey{9, 9, 9}
	proof := NewChunkProof([]byte("chunk bytes"), Nonce(7))
	resp := Response{
		Kind:   QueryGetChunkExistenceProof,
		Proofs: []ChunkProofAnswer{{Addr: NewRecordAddress(key), Proof: proof, Exists: true}},
	}

	got := decodeResponse(encodeResponse(resp))

	if len(got.Proofs) != 1 {
		t.Fatalf("expected 1 proof, got %d", len(got.Proofs))
	}
	gotKey, ok := got.Proofs[0].Addr.ToRecordKey()
	if !ok || string(gotKey) != string(key) {
		t.Fatalf("proof address did not round-trip: %+v", got.Proofs[0].Addr)
	}
	if !got.Proofs[0].Proof.Equal(proof) {
		t.Fatal("proof bytes did not round-trip")
	}
}
