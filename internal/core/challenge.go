package core

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// minChunksForChallenge is the default minimum number of locally held
// chunk addresses required before a verifier round has enough evidence to
// tell an honest node from a lazy one. A positive ChallengeSkipThreshold
// on the Network handle overrides it.
const minChunksForChallenge = 50

// RespondToChallenge implements the prover side of the storage-challenge
// protocol for an inbound GetChunkExistenceProof{key, nonce, difficulty}.
//
// difficulty == 1 answers for exactly the requested key. Otherwise the
// prover enumerates every locally held chunk address, sorts ascending by
// XOR distance to key (ties broken lexicographically), and answers for
// the first min(difficulty, closeGroupSize) of them — addresses with no
// locally held record are omitted entirely rather than answered as
// ChunkDoesNotExist, since the spec's two-role split only reports
// existence for the single-key fast path.
func RespondToChallenge(store RecordStore, key RecordKey, nonce Nonce, difficulty int, closeGroupSize int) []ChunkProofAnswer {
	target := NewRecordAddress(key)

	if difficulty == 1 {
		rec, ok := store.Get(key)
		if !ok {
			return []ChunkProofAnswer{{Addr: target, Exists: false}}
		}
		return []ChunkProofAnswer{{Addr: target, Proof: NewChunkProof(rec.Value, nonce), Exists: true}}
	}

	n := difficulty
	if n > closeGroupSize {
		n = closeGroupSize
	}
	if n <= 0 {
		return nil
	}

	chunkKeys := store.KeysOfType(RecordTypeChunk)
	addrs := make([]NetworkAddress, len(chunkKeys))
	for i, k := range chunkKeys {
		addrs[i] = NewRecordAddress(k)
	}
	closest := ClosestTo(target, addrs, n)

	out := make([]ChunkProofAnswer, 0, len(closest))
	for _, addr := range closest {
		k, _ := addr.ToRecordKey()
		rec, ok := store.Get(k)
		if !ok {
			continue
		}
		out = append(out, ChunkProofAnswer{Addr: addr, Proof: NewChunkProof(rec.Value, nonce), Exists: true})
	}
	return out
}

// RunStorageChallengeRound is the verifier side of the storage-challenge
// protocol, triggered by the periodic ticker in the node runtime. It
// challenges every current neighbor with a randomly chosen local chunk
// address and records FailedChunkProofCheck against any peer whose answer
// fails to verify.
func RunStorageChallengeRound(ctx context.Context, net *Network, closeGroupSize int, log logrus.FieldLogger) {
	neighbors := net.GetClosestLocalPeers()
	if len(neighbors) < closeGroupSize {
		return
	}
	threshold := net.challengeSkipThreshold
	if threshold <= 0 {
		threshold = minChunksForChallenge
	}
	if len(net.store.KeysOfType(RecordTypeChunk)) < threshold {
		return
	}
	round := log.WithField("challenge_round", uuid.New().String())
	for _, p := range neighbors {
		addr, ok := randomLocalChunkAddress(net.store)
		if !ok {
			return
		}
		key, _ := addr.ToRecordKey()
		ChallengePeer(ctx, net, p, key, closeGroupSize, round)
	}
}

// ChallengePeer runs the verifier side of the storage-challenge protocol
// against a single peer for a chosen chunk address: it asks the peer to
// prove the closeGroupSize addresses closest to key, then judges each
// returned answer by recomputing the expected proof from this node's own
// local copy of that answer's address — never from key alone, since an
// honest prover need not hold key itself among its closest answers.
// Addresses this node does not hold itself, or that the peer reports
// missing, are skipped rather than counted as a failure. Used both by the periodic
// round above and by the on-demand ChunkProofVerification event path in
// dispatcher.go.
func ChallengePeer(ctx context.Context, net *Network, p PeerID, key RecordKey, closeGroupSize int, log logrus.FieldLogger) {
	nonce := Nonce(rand.Uint64())
	req := Request{Kind: QueryGetChunkExistenceProof, Key: key, Nonce: nonce, Difficulty: closeGroupSize}
	responses := net.SendAndGetResponses(ctx, []PeerID{p}, req, true)

	resp, ok := responses[p]
	if !ok {
		net.RecordNodeIssues(p, IssueFailedChunkProofCheck)
		log.WithField("peer", p.String()).Debug("storage challenge: no response")
		return
	}
	if len(resp.Proofs) == 0 {
		net.RecordNodeIssues(p, IssueFailedChunkProofCheck)
		return
	}
	for _, ans := range resp.Proofs {
		ansKey, isRecord := ans.Addr.ToRecordKey()
		if !isRecord {
			continue
		}
		rec, held := net.store.Get(ansKey)
		if !held {
			// This node doesn't hold the answered address either; there is
			// nothing to recompute the expected proof from.
			continue
		}
		if !ans.Exists {
			// Missing-locally answers are neither pass nor fail.
			continue
		}
		expected := NewChunkProof(rec.Value, nonce)
		if !ans.Proof.Equal(expected) {
			net.RecordNodeIssues(p, IssueFailedChunkProofCheck)
		}
	}
}
