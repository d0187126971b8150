package core

import (
	"crypto/ecdsa"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/aurumnet/aurum-node/internal/utils"
)

// Identity holds a node's two keypairs: the libp2p identity used to derive
// its PeerID and dial/listen, and a secp256k1 keypair used to sign quotes
// so clients can verify a quote's origin with the same recovery primitive
// the payment chain uses.
type Identity struct {
	PeerID     PeerID
	hostKey    libp2pcrypto.PrivKey
	quoteKey   *ecdsa.PrivateKey
}

// NewIdentity generates a fresh libp2p host key and a fresh secp256k1
// signing key for quote issuance.
func NewIdentity() (*Identity, error) {
	priv, _, err := libp2pcrypto.GenerateKeyPair(libp2pcrypto.Ed25519, -1)
	if err != nil {
		return nil, utils.Wrap(err, "generate libp2p identity")
	}
	pid, err := peer.IDFromPrivateKey(priv)
	if err != nil {
		return nil, utils.Wrap(err, "derive peer id")
	}
	quoteKey, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, utils.Wrap(err, "generate quote signing key")
	}
	return &Identity{PeerID: pid, hostKey: priv, quoteKey: quoteKey}, nil
}

// HostKey returns the libp2p private key used to bring up the swarm host.
func (id *Identity) HostKey() libp2pcrypto.PrivKey { return id.hostKey }

// SignQuoteHash signs a 32-byte quote hash, producing a recoverable
// signature in the same format go-ethereum's ecrecover precompile expects.
func (id *Identity) SignQuoteHash(hash QuoteHash) ([]byte, error) {
	sig, err := ethcrypto.Sign(hash[:], id.quoteKey)
	if err != nil {
		return nil, utils.Wrap(err, "sign quote hash")
	}
	return sig, nil
}

// QuoteAddress returns the Ethereum-style address derived from the node's
// quote-signing key, the address a remote client recovers when verifying
// a signature produced by SignQuoteHash.
func (id *Identity) QuoteAddress() [20]byte {
	return ethcrypto.PubkeyToAddress(id.quoteKey.PublicKey)
}

// VerifyQuoteSignature recovers the signer of a quote hash and reports
// whether it matches the expected address.
func VerifyQuoteSignature(hash QuoteHash, sig []byte, expected [20]byte) (bool, error) {
	pub, err := ethcrypto.SigToPub(hash[:], sig)
	if err != nil {
		return false, utils.Wrap(err, "recover quote signer")
	}
	addr := ethcrypto.PubkeyToAddress(*pub)
	return addr == expected, nil
}
