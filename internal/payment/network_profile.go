// Package payment verifies on-chain storage payments before a paid put is
// accepted into the record store.
package payment

import "github.com/ethereum/go-ethereum/common"

// EvmNetwork identifies which chain profile a Verifier talks to.
type EvmNetwork string

const (
	ArbitrumOne EvmNetwork = "arbitrum-one"
	Custom      EvmNetwork = "custom"
)

// NetworkProfile bundles the RPC endpoint and contract addresses a
// Verifier needs for a given chain.
type NetworkProfile struct {
	RPCURL           string
	PaymentTokenAddr common.Address
	DataPaymentsAddr common.Address
}

// arbitrumOneProfile is the fixed, well-known profile for Arbitrum One.
var arbitrumOneProfile = NetworkProfile{
	RPCURL:           "https://arb1.arbitrum.io/rpc",
	PaymentTokenAddr: common.HexToAddress("0x4bc1aCE0E66170375462cB4E6Af42Ad4D5EC689C"),
	DataPaymentsAddr: common.HexToAddress("0x887930F30EDEb1B255Cd2273C3F4400919df2EFe"),
}

// ResolveProfile returns the NetworkProfile for network. For Custom, the
// caller-supplied fields are used verbatim; for ArbitrumOne they are
// ignored in favor of the fixed, well-known values.
func ResolveProfile(network EvmNetwork, rpcURL string, paymentToken, dataPayments common.Address) NetworkProfile {
	if network == ArbitrumOne {
		return arbitrumOneProfile
	}
	return NetworkProfile{RPCURL: rpcURL, PaymentTokenAddr: paymentToken, DataPaymentsAddr: dataPayments}
}
