package core

import (
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// QuoteIssuer produces signed, time-bounded store-cost quotes from local
// pricing signals.
type QuoteIssuer struct {
	identity *Identity
	ttl      time.Duration
}

// NewQuoteIssuer builds a QuoteIssuer that signs with identity and stamps
// quotes with the given time-to-live.
func NewQuoteIssuer(identity *Identity, ttl time.Duration) *QuoteIssuer {
	return &QuoteIssuer{identity: identity, ttl: ttl}
}

// Issue produces a Quote for targetAddr, priced at localCost, carrying the
// supplied pricing metrics, bad-node set and reward address. If localCost
// is zero the record is already held locally and the bare ErrRecordExists
// sentinel is returned instead; the error does not carry the record key.
func (q *QuoteIssuer) Issue(localCost AttoTokens, metrics QuotingMetrics, badNodes []PeerID, targetAddr NetworkAddress, rewardAddr common.Address) (Quote, error) {
	if localCost.IsZero() {
		return Quote{}, ErrRecordExists
	}

	expiration := uint64(time.Now().Add(q.ttl).Unix())
	quote := Quote{
		Cost:           localCost,
		PricingMetrics: metrics,
		BadNodes:       append([]PeerID(nil), badNodes...),
		RewardAddress:  rewardAddr,
		ExpirationSecs: expiration,
		PeerAddress:    targetAddr,
	}
	quote.Hash = hashQuote(quote)

	sig, err := q.identity.SignQuoteHash(quote.Hash)
	if err != nil {
		return Quote{}, err
	}
	quote.Signature = sig
	return quote, nil
}

// hashQuote binds every field a client can observe into a single 32-byte
// commitment, so a signature over the hash covers the whole quote.
func hashQuote(q Quote) QuoteHash {
	h := sha256.New()
	h.Write(q.Cost.BigInt().Bytes())

	var metricsBuf [32]byte
	binary.BigEndian.PutUint64(metricsBuf[0:8], q.PricingMetrics.ClosestRecordsCount)
	binary.BigEndian.PutUint64(metricsBuf[8:16], q.PricingMetrics.MaxRecords)
	binary.BigEndian.PutUint64(metricsBuf[16:24], q.PricingMetrics.ReceivedPaymentCount)
	binary.BigEndian.PutUint64(metricsBuf[24:32], q.PricingMetrics.LiveTime)
	h.Write(metricsBuf[:])

	for _, bn := range q.BadNodes {
		h.Write([]byte(bn))
	}
	h.Write(q.RewardAddress.Bytes())

	var expBuf [8]byte
	binary.BigEndian.PutUint64(expBuf[:], q.ExpirationSecs)
	h.Write(expBuf[:])

	h.Write(q.PeerAddress.bytes())

	var out QuoteHash
	copy(out[:], h.Sum(nil))
	return out
}
