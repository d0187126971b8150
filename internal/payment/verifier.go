package payment

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/aurumnet/aurum-node/internal/core"
	"github.com/aurumnet/aurum-node/internal/utils"
)

// dataPaymentEventSig is the topic-0 hash of
// DataPayment(bytes32 indexed quoteHash, address indexed rewardAddr, uint256 amount).
var dataPaymentEventSig = crypto.Keccak256Hash([]byte("DataPayment(bytes32,address,uint256)"))

var amountArg = abi.Arguments{{Type: mustUint256Type()}}

func mustUint256Type() abi.Type {
	t, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return t
}

// Verifier validates an on-chain transaction references the expected
// quote, recipient and amount, and that the quote hadn't expired by the
// time the transaction landed. It implements core.PaymentVerifier.
type Verifier struct {
	log     *logrus.Logger
	profile NetworkProfile

	mu      sync.Mutex
	client  *ethclient.Client

	okCache sync.Map // map[common.Hash]struct{} — successes only, per §4.C caching policy
}

// NewVerifier constructs a Verifier bound to profile. The RPC connection
// is established lazily on first use so construction never blocks on
// network I/O.
func NewVerifier(profile NetworkProfile, log *logrus.Logger) *Verifier {
	return &Verifier{log: log, profile: profile}
}

func (v *Verifier) dial(ctx context.Context) (*ethclient.Client, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.client != nil {
		return v.client, nil
	}
	c, err := ethclient.DialContext(ctx, v.profile.RPCURL)
	if err != nil {
		return nil, utils.Wrap(err, "dial evm rpc")
	}
	v.client = c
	return c, nil
}

// Verify implements core.PaymentVerifier.
func (v *Verifier) Verify(ctx context.Context, claim core.PaymentClaim) error {
	if _, ok := v.okCache.Load(claim.TxHash); ok {
		return nil
	}

	client, err := v.dial(ctx)
	if err != nil {
		return core.ErrRPCUnavailable
	}

	receipt, err := client.TransactionReceipt(ctx, claim.TxHash)
	if err != nil {
		if err == ethereum.NotFound {
			return core.ErrPaymentNotFound
		}
		return core.ErrRPCUnavailable
	}

	quoteHash, rewardAddr, amount, found := findDataPayment(receipt.Logs, v.profile.DataPaymentsAddr)
	if !found {
		return core.ErrPaymentNotFound
	}
	if quoteHash != claim.QuoteHash {
		return core.ErrPaymentNotFound
	}
	if rewardAddr != claim.RewardAddress {
		return core.ErrWrongRecipient
	}
	if amount.Cmp(claim.ExpectedAmount.BigInt()) < 0 {
		return core.ErrAmountMismatch
	}

	header, err := client.HeaderByHash(ctx, receipt.BlockHash)
	if err != nil {
		return core.ErrRPCUnavailable
	}
	if header.Time > claim.QuoteExpirationSecs {
		return core.ErrQuoteExpired
	}

	v.okCache.Store(claim.TxHash, struct{}{})
	zap.L().Sugar().Infow("payment verified", "tx", claim.TxHash.Hex(), "quote_hash", claim.QuoteHash)
	return nil
}

// findDataPayment scans receipt logs for a DataPayment event emitted by
// the data-payments contract and decodes its fields.
func findDataPayment(logs []*types.Log, dataPayments common.Address) (quoteHash core.QuoteHash, rewardAddr common.Address, amount *big.Int, found bool) {
	for _, l := range logs {
		if l.Address != dataPayments {
			continue
		}
		if len(l.Topics) != 3 || l.Topics[0] != dataPaymentEventSig {
			continue
		}
		copy(quoteHash[:], l.Topics[1].Bytes())
		rewardAddr = common.BytesToAddress(l.Topics[2].Bytes())

		values, err := amountArg.Unpack(l.Data)
		if err != nil || len(values) != 1 {
			continue
		}
		amt, ok := values[0].(*big.Int)
		if !ok {
			continue
		}
		return quoteHash, rewardAddr, amt, true
	}
	return core.QuoteHash{}, common.Address{}, nil, false
}
