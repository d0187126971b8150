package core

import "testing"

func TestRespondToChallengeDifficultyOneExisting(t *testing.T) {
	store := NewMemoryRecordStore()
	key := RecordKey("chunk-1")
	store.Put(Record{Key: key, Value: []byte("payload"), Type: RecordTypeChunk})

	answers := RespondToChallenge(store, key, Nonce(7), 1, 5)
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	if !answers[0].Exists {
		t.Fatal("expected existing chunk to report exists")
	}
	expected := NewChunkProof([]byte("payload"), Nonce(7))
	if !answers[0].Proof.Equal(expected) {
		t.Fatal("proof mismatch")
	}
}

func TestRespondToChallengeDifficultyOneMissing(t *testing.T) {
	store := NewMemoryRecordStore()
	answers := RespondToChallenge(store, RecordKey("missing"), Nonce(1), 1, 5)
	if len(answers) != 1 || answers[0].Exists {
		t.Fatalf("expected single non-existent answer, got %+v", answers)
	}
}

func TestRespondToChallengeHighDifficultySortedByDistance(t *testing.T) {
	store := NewMemoryRecordStore()
	target := RecordKey{0x00}
	near := RecordKey{0x01}
	far := RecordKey{0xff}
	store.Put(Record{Key: near, Value: []byte("near-value"), Type: RecordTypeChunk})
	store.Put(Record{Key: far, Value: []byte("far-value"), Type: RecordTypeChunk})

	answers := RespondToChallenge(store, target, Nonce(3), 5, 5)
	if len(answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(answers))
	}
	gotKey, _ := answers[0].Addr.ToRecordKey()
	if string(gotKey) != string(near) {
		t.Fatalf("expected nearer chunk first, got %x", gotKey)
	}
}

func TestRespondToChallengeOmitsNonChunkRecords(t *testing.T) {
	store := NewMemoryRecordStore()
	store.Put(Record{Key: RecordKey("r1"), Value: []byte("v"), Type: RecordTypeRegister})

	answers := RespondToChallenge(store, RecordKey{0x00}, Nonce(1), 5, 5)
	if len(answers) != 0 {
		t.Fatalf("expected no answers for non-chunk store, got %d", len(answers))
	}
}
