package core

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestQuoteIssuerIssueSignsAndStamps(t *testing.T) {
	id, err := NewIdentity()
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	issuer := NewQuoteIssuer(id, time.Hour)
	target := NewRecordAddress(RecordKey("chunk-key"))

	q, err := issuer.Issue(NewAttoTokens(100), QuotingMetrics{ClosestRecordsCount: 3}, nil, target, common.HexToAddress("0x1"))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if q.Expired(time.Now()) {
		t.Fatal("freshly issued quote should not be expired")
	}
	if len(q.Signature) == 0 {
		t.Fatal("expected non-empty signature")
	}

	ok, err := VerifyQuoteSignature(q.Hash, q.Signature, id.QuoteAddress())
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected signature to verify against issuer's own address")
	}
}

func TestQuoteIssuerZeroCostReturnsRecordExists(t *testing.T) {
	id, err := NewIdentity()
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	issuer := NewQuoteIssuer(id, time.Hour)
	target := NewRecordAddress(RecordKey("chunk-key"))

	_, err = issuer.Issue(Zero(), QuotingMetrics{}, nil, target, common.HexToAddress("0x1"))
	if err != ErrRecordExists {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
}
