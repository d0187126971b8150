package payment

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/aurumnet/aurum-node/internal/core"
)

func sampleLog(dataPayments common.Address, quoteHash core.QuoteHash, reward common.Address, amount *big.Int) *types.Log {
	return &types.Log{
		Address: dataPayments,
		Topics: []common.Hash{
			dataPaymentEventSig,
			common.Hash(quoteHash),
			common.BytesToHash(reward.Bytes()),
		},
		Data: common.LeftPadBytes(amount.Bytes(), 32),
	}
}

func TestFindDataPaymentDecodesMatchingLog(t *testing.T) {
	dataPayments := common.HexToAddress("0x887930F30EDEb1B255Cd2273C3F4400919df2EFe")
	reward := common.HexToAddress("0x00000000000000000000000000000000000001")
	var quoteHash core.QuoteHash
	quoteHash[0] = 0xAB
	amount := big.NewInt(1_000_000)

	logs := []*types.Log{sampleLog(dataPayments, quoteHash, reward, amount)}

	gotHash, gotReward, gotAmount, found := findDataPayment(logs, dataPayments)
	if !found {
		t.Fatal("expected DataPayment log to be found")
	}
	if gotHash != quoteHash {
		t.Fatalf("quote hash mismatch: got %x want %x", gotHash, quoteHash)
	}
	if gotReward != reward {
		t.Fatalf("reward address mismatch: got %s want %s", gotReward.Hex(), reward.Hex())
	}
	if gotAmount.Cmp(amount) != 0 {
		t.Fatalf("amount mismatch: got %s want %s", gotAmount, amount)
	}
}

func TestFindDataPaymentIgnoresOtherContracts(t *testing.T) {
	dataPayments := common.HexToAddress("0x887930F30EDEb1B255Cd2273C3F4400919df2EFe")
	other := common.HexToAddress("0x0000000000000000000000000000000000dEaD")
	var quoteHash core.QuoteHash
	reward := common.HexToAddress("0x0000000000000000000000000000000000bEEF")

	logs := []*types.Log{sampleLog(other, quoteHash, reward, big.NewInt(1))}

	_, _, _, found := findDataPayment(logs, dataPayments)
	if found {
		t.Fatal("expected log from a different contract to be ignored")
	}
}

func TestFindDataPaymentIgnoresWrongTopicCount(t *testing.T) {
	dataPayments := common.HexToAddress("0x887930F30EDEb1B255Cd2273C3F4400919df2EFe")
	logs := []*types.Log{{
		Address: dataPayments,
		Topics:  []common.Hash{dataPaymentEventSig},
		Data:    common.LeftPadBytes(big.NewInt(1).Bytes(), 32),
	}}

	_, _, _, found := findDataPayment(logs, dataPayments)
	if found {
		t.Fatal("expected log missing indexed topics to be ignored")
	}
}

// TestVerifyCachedSuccessSkipsRPC exercises the P1-style success path's
// memoization: once a tx hash has verified successfully, a second Verify
// call must short-circuit before any RPC dial, so it works even against a
// Verifier with no reachable endpoint.
func TestVerifyCachedSuccessSkipsRPC(t *testing.T) {
	v := NewVerifier(NetworkProfile{RPCURL: "http://127.0.0.1:1"}, nil)
	claim := core.PaymentClaim{TxHash: common.HexToHash("0x01")}
	v.okCache.Store(claim.TxHash, struct{}{})

	if err := v.Verify(context.Background(), claim); err != nil {
		t.Fatalf("expected cached success to skip verification, got %v", err)
	}
}

// TestVerifyUnreachableRPCReturnsRPCUnavailable covers the failure-mode
// contract for an uncached claim when the configured endpoint cannot be
// dialed at all.
func TestVerifyUnreachableRPCReturnsRPCUnavailable(t *testing.T) {
	v := NewVerifier(NetworkProfile{RPCURL: "http://127.0.0.1:0"}, nil)
	claim := core.PaymentClaim{TxHash: common.HexToHash("0x02")}

	err := v.Verify(context.Background(), claim)
	if err != core.ErrRPCUnavailable {
		t.Fatalf("expected ErrRPCUnavailable, got %v", err)
	}
}
