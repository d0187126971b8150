package core

import "testing"

func TestMemoryRecordStorePutGetDelete(t *testing.T) {
	s := NewMemoryRecordStore()
	rec := Record{Key: RecordKey("k1"), Value: []byte("v1"), Type: RecordTypeChunk}

	if err := s.Put(rec); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, ok := s.Get(rec.Key)
	if !ok {
		t.Fatal("expected record present")
	}
	if string(got.Value) != "v1" {
		t.Fatalf("unexpected value %q", got.Value)
	}

	if err := s.Delete(rec.Key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Has(rec.Key) {
		t.Fatal("expected record gone after delete")
	}
}

func TestMemoryRecordStoreKeysOfType(t *testing.T) {
	s := NewMemoryRecordStore()
	s.Put(Record{Key: RecordKey("c1"), Type: RecordTypeChunk})
	s.Put(Record{Key: RecordKey("c2"), Type: RecordTypeChunk})
	s.Put(Record{Key: RecordKey("r1"), Type: RecordTypeRegister})

	chunks := s.KeysOfType(RecordTypeChunk)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunk keys, got %d", len(chunks))
	}
}

func TestMemoryRecordStoreRetainOnly(t *testing.T) {
	s := NewMemoryRecordStore()
	s.Put(Record{Key: RecordKey("keep"), Type: RecordTypeChunk})
	s.Put(Record{Key: RecordKey("drop"), Type: RecordTypeChunk})

	removed := s.RetainOnly(map[string]struct{}{"keep": {}})
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record remaining, got %d", s.Len())
	}
	if !s.Has(RecordKey("keep")) {
		t.Fatal("expected kept record to remain")
	}
}
