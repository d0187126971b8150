package core

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// PaymentClaim is the input to a PaymentVerifier check: an on-chain
// transaction plus the quote terms it is expected to satisfy.
type PaymentClaim struct {
	TxHash              common.Hash
	QuoteHash           QuoteHash
	RewardAddress       common.Address
	ExpectedAmount      AttoTokens
	QuoteExpirationSecs uint64
}

// PaymentVerifier validates a PaymentClaim against the chain before a
// paid put is accepted. Implemented by internal/payment.Verifier; declared
// here so the dispatcher can depend on the interface without importing the
// payment package (which in turn depends on core's types).
type PaymentVerifier interface {
	Verify(ctx context.Context, claim PaymentClaim) error
}
