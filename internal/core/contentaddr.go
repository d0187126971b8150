package core

import (
	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// NewChunkRecordKey derives the content-addressed key for an immutable
// chunk: a CIDv1(raw, sha2-256) over its bytes, giving RecordAddr a real,
// independently verifiable identity rather than an opaque byte string.
// Register and scratchpad records are addressed by their owner-assigned
// key instead and never go through this helper.
func NewChunkRecordKey(data []byte) (RecordKey, error) {
	digest, err := mh.Sum(data, mh.SHA2_256, -1)
	if err != nil {
		return nil, err
	}
	c := cid.NewCidV1(cid.Raw, digest)
	return RecordKey(c.Bytes()), nil
}

// VerifyChunkRecordKey reports whether key is the correct content address
// for data.
func VerifyChunkRecordKey(key RecordKey, data []byte) bool {
	want, err := NewChunkRecordKey(data)
	if err != nil {
		return false
	}
	return string(want) == string(key)
}
