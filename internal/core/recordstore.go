package core

import (
	"sync"

	"go.uber.org/zap"
)

// RecordStore is the local key/value store backing a node's share of the
// network's records. Implementations must be safe for concurrent use.
type RecordStore interface {
	Put(rec Record) error
	Get(key RecordKey) (Record, bool)
	Delete(key RecordKey) error
	Has(key RecordKey) bool
	Keys() []RecordKey
	// KeysOfType returns the keys of all locally held records of the given
	// type, used by the storage-challenge prover to restrict candidates to
	// chunks.
	KeysOfType(t RecordType) []RecordKey
	// RetainOnly drops every record whose key is not present in keep. It
	// reports how many records were removed.
	RetainOnly(keep map[string]struct{}) int
	Len() int
}

// MemoryRecordStore is an in-memory, mutex-guarded RecordStore.
type MemoryRecordStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

// NewMemoryRecordStore constructs an empty MemoryRecordStore.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{data: make(map[string]Record)}
}

// Put inserts or overwrites a record under its own key.
func (s *MemoryRecordStore) Put(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := Record{
		Key:   append(RecordKey(nil), rec.Key...),
		Value: append([]byte(nil), rec.Value...),
		Type:  rec.Type,
	}
	s.data[string(rec.Key)] = cp
	return nil
}

// Get returns a copy of the record stored under key, if present.
func (s *MemoryRecordStore) Get(key RecordKey) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.data[string(key)]
	if !ok {
		return Record{}, false
	}
	return Record{
		Key:   append(RecordKey(nil), rec.Key...),
		Value: append([]byte(nil), rec.Value...),
		Type:  rec.Type,
	}, true
}

// Delete removes the record under key, if any. It is not an error to
// delete a missing key.
func (s *MemoryRecordStore) Delete(key RecordKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[string(key)]; ok {
		delete(s.data, string(key))
		zap.L().Sugar().Debugw("record deleted", "key", RecordKeyHex(key))
	}
	return nil
}

// Has reports whether key is present.
func (s *MemoryRecordStore) Has(key RecordKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[string(key)]
	return ok
}

// Keys returns every key currently held, in no particular order.
func (s *MemoryRecordStore) Keys() []RecordKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]RecordKey, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, RecordKey(k))
	}
	return keys
}

// KeysOfType returns the keys of all records matching type t.
func (s *MemoryRecordStore) KeysOfType(t RecordType) []RecordKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []RecordKey
	for k, rec := range s.data {
		if rec.Type == t {
			keys = append(keys, RecordKey(k))
		}
	}
	return keys
}

// RetainOnly removes every record whose key is absent from keep, returning
// the number of records removed. keep holds raw key bytes cast to string.
func (s *MemoryRecordStore) RetainOnly(keep map[string]struct{}) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k := range s.data {
		if _, ok := keep[k]; !ok {
			delete(s.data, k)
			removed++
		}
	}
	if removed > 0 {
		zap.L().Sugar().Infow("irrelevant records purged", "count", removed)
	}
	return removed
}

// Len returns the number of records currently held.
func (s *MemoryRecordStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
