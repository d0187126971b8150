// Package core implements the node's runtime event loop and its four
// tightly-coupled subsystems: the network event dispatcher, the
// storage-challenge protocol, the replication/cleanup scheduler, and the
// payment-verification gate.
package core

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/peer"
)

// PeerID identifies a network participant. It is the libp2p peer identity,
// reused directly rather than re-encoded, so distance arithmetic and wire
// addressing stay consistent with the swarm driver.
type PeerID = peer.ID

// RecordKey is the identity of a stored record.
type RecordKey []byte

// RecordType enumerates how a stored value is interpreted. Only Chunk
// records participate in storage challenges.
type RecordType uint8

const (
	RecordTypeChunk RecordType = iota
	RecordTypeRegister
	RecordTypeScratchpad
)

func (t RecordType) String() string {
	switch t {
	case RecordTypeChunk:
		return "chunk"
	case RecordTypeRegister:
		return "register"
	case RecordTypeScratchpad:
		return "scratchpad"
	default:
		return "unknown"
	}
}

// Record is a value owned by the local Record Store.
type Record struct {
	Key   RecordKey
	Value []byte
	Type  RecordType
}

// Nonce is drawn uniformly at random per storage challenge.
type Nonce uint64

// addressKind tags the union held by a NetworkAddress.
type addressKind uint8

const (
	addressKindPeer addressKind = iota
	addressKindRecord
)

// NetworkAddress is a tagged union over {PeerAddr(PeerID), RecordAddr(key)}.
// It supports conversion to a record key and an XOR-distance metric that
// produces a total order for "closest" queries.
type NetworkAddress struct {
	kind addressKind
	peer PeerID
	key  RecordKey
}

// NewPeerAddress wraps a peer identity as a NetworkAddress.
func NewPeerAddress(p PeerID) NetworkAddress {
	return NetworkAddress{kind: addressKindPeer, peer: p}
}

// NewRecordAddress wraps a record key as a NetworkAddress.
func NewRecordAddress(key RecordKey) NetworkAddress {
	cp := make(RecordKey, len(key))
	copy(cp, key)
	return NetworkAddress{kind: addressKindRecord, key: cp}
}

// IsPeer reports whether the address wraps a peer identity.
func (a NetworkAddress) IsPeer() bool { return a.kind == addressKindPeer }

// Peer returns the wrapped peer identity and true if this is a peer
// address.
func (a NetworkAddress) Peer() (PeerID, bool) {
	if a.kind != addressKindPeer {
		return "", false
	}
	return a.peer, true
}

// ToRecordKey returns the address's record key, if it has one.
func (a NetworkAddress) ToRecordKey() (RecordKey, bool) {
	if a.kind != addressKindRecord {
		return nil, false
	}
	cp := make(RecordKey, len(a.key))
	copy(cp, a.key)
	return cp, true
}

// bytes returns the canonical byte identity used for hashing/distance: the
// peer ID's raw bytes for a peer address, or the record key itself.
func (a NetworkAddress) bytes() []byte {
	if a.kind == addressKindPeer {
		return []byte(a.peer)
	}
	return a.key
}

// String renders a short human-readable form, primarily for logging.
func (a NetworkAddress) String() string {
	if a.kind == addressKindPeer {
		return "peer:" + a.peer.String()
	}
	return "record:" + RecordKeyHex(a.key)
}

// Equal reports whether two addresses wrap the same identity.
func (a NetworkAddress) Equal(b NetworkAddress) bool {
	if a.kind != b.kind {
		return false
	}
	if a.kind == addressKindPeer {
		return a.peer == b.peer
	}
	return string(a.key) == string(b.key)
}

// AttoTokens is a non-negative fixed-point token amount, the smallest unit
// of account on the payment chain.
type AttoTokens struct {
	v *big.Int
}

// NewAttoTokens builds an AttoTokens value from a uint64 amount.
func NewAttoTokens(v uint64) AttoTokens {
	return AttoTokens{v: new(big.Int).SetUint64(v)}
}

// AttoTokensFromBigInt wraps an existing *big.Int without copying.
func AttoTokensFromBigInt(v *big.Int) AttoTokens {
	if v == nil {
		return AttoTokens{v: big.NewInt(0)}
	}
	return AttoTokens{v: v}
}

// Zero returns the zero amount.
func Zero() AttoTokens { return AttoTokens{v: big.NewInt(0)} }

// IsZero reports whether the amount is exactly zero.
func (a AttoTokens) IsZero() bool { return a.v == nil || a.v.Sign() == 0 }

// Cmp compares two amounts the way big.Int.Cmp does.
func (a AttoTokens) Cmp(b AttoTokens) int { return a.BigInt().Cmp(b.BigInt()) }

// BigInt returns the underlying *big.Int, never nil.
func (a AttoTokens) BigInt() *big.Int {
	if a.v == nil {
		return big.NewInt(0)
	}
	return a.v
}

func (a AttoTokens) String() string { return a.BigInt().String() }

// QuotingMetrics captures the local pricing signals a Quote is derived
// from.
type QuotingMetrics struct {
	ClosestRecordsCount  uint64 `json:"closest_records_count"`
	MaxRecords           uint64 `json:"max_records"`
	ReceivedPaymentCount uint64 `json:"received_payment_count"`
	LiveTime             uint64 `json:"live_time_secs"`
}

// QuoteHash uniquely identifies a Quote, binding all of its fields.
type QuoteHash [32]byte

// Quote is a signed, time-bounded offer to store a record at a stated
// price and reward address.
type Quote struct {
	Hash            QuoteHash      `json:"hash"`
	Cost            AttoTokens     `json:"cost"`
	PricingMetrics  QuotingMetrics `json:"pricing_metrics"`
	BadNodes        []PeerID       `json:"bad_nodes"`
	RewardAddress   common.Address `json:"reward_address"`
	ExpirationSecs  uint64         `json:"expiration_secs"`
	PeerAddress     NetworkAddress `json:"-"`
	Signature       []byte         `json:"signature"`
}

// Expired reports whether the quote has passed its expiration relative to
// now.
func (q Quote) Expired(now time.Time) bool {
	return uint64(now.Unix()) > q.ExpirationSecs
}

// Payment is an on-chain record identified by a transaction hash whose
// decoded event fields reference a quote, a reward address and an amount.
type Payment struct {
	TxHash         common.Hash
	QuoteHash      QuoteHash
	RewardAddress  common.Address
	Amount         *big.Int
	BlockTimestamp uint64
}

// NodeIssue tags a per-peer misbehavior attribution used by the routing
// layer to downrank or evict.
type NodeIssue uint8

const (
	IssueReplicationFailure NodeIssue = iota
	IssueFailedChunkProofCheck
)

func (i NodeIssue) String() string {
	switch i {
	case IssueReplicationFailure:
		return "replication_failure"
	case IssueFailedChunkProofCheck:
		return "failed_chunk_proof_check"
	default:
		return "unknown_issue"
	}
}
