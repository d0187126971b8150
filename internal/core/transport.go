package core

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	libp2pprotocol "github.com/libp2p/go-libp2p/core/protocol"

	"github.com/aurumnet/aurum-node/internal/utils"
)

func hexToBytes(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(s)
}

func decodePeerID(s string) (PeerID, error) {
	return peer.Decode(s)
}

// aurumProtocol is the libp2p stream protocol ID used for every request/
// response exchange between nodes. Wire framing is newline-delimited JSON,
// matching the rest of the node's encoding choices.
const aurumProtocol = libp2pprotocol.ID("/aurum/req/1.0.0")

// wireRequest, wireResponse, wireQuote and wireProof are the JSON-
// serializable mirrors of Request, Response, Quote and ChunkProofAnswer.
// PeerID and hash-typed fields are carried as strings/hex since
// encoding/json has no opinion on them.
type wireRequest struct {
	Kind       QueryKind `json:"kind"`
	AddrPeer   string    `json:"addr_peer,omitempty"`
	AddrKey    string    `json:"addr_key,omitempty"`
	Key        string    `json:"key,omitempty"`
	Nonce      uint64    `json:"nonce,omitempty"`
	Difficulty int       `json:"difficulty,omitempty"`
}

type wireResponse struct {
	Kind        QueryKind   `json:"kind"`
	Err         string      `json:"err,omitempty"`
	OurAddrPeer string      `json:"our_addr_peer,omitempty"`
	Found       bool        `json:"found,omitempty"`
	Value       []byte      `json:"value,omitempty"`
	InProblem   bool        `json:"in_problem,omitempty"`
	Quote       *wireQuote  `json:"quote,omitempty"`
	Proofs      []wireProof `json:"proofs,omitempty"`
}

type wireQuote struct {
	Hash           string         `json:"hash"`
	Cost           string         `json:"cost"`
	PricingMetrics QuotingMetrics `json:"pricing_metrics"`
	BadNodes       []string       `json:"bad_nodes"`
	RewardAddress  string         `json:"reward_address"`
	ExpirationSecs uint64         `json:"expiration_secs"`
	Signature      string         `json:"signature"`
}

type wireProof struct {
	AddrKey string `json:"addr_key"`
	Proof   string `json:"proof,omitempty"`
	Exists  bool   `json:"exists"`
}

// registerStreamHandler wires the node's libp2p host to feed inbound
// requests into eventCh as QueryRequestReceived events, with a response
// channel that writes the answer back over the same stream.
func (n *Network) registerStreamHandler(eventCh chan<- NetworkEvent) {
	n.host.SetStreamHandler(aurumProtocol, func(s network.Stream) {
		defer s.Close()

		var wreq wireRequest
		if err := json.NewDecoder(bufio.NewReader(s)).Decode(&wreq); err != nil {
			n.log.WithError(err).Debug("malformed inbound request, dropping stream")
			return
		}
		req := decodeRequest(wreq)

		done := make(chan struct{})
		ch := NewResponseChannel(func(resp Response) {
			defer close(done)
			w := bufio.NewWriter(s)
			if err := json.NewEncoder(w).Encode(encodeResponse(resp)); err != nil {
				n.log.WithError(err).Debug("failed to write response")
				return
			}
			w.Flush()
		})

		select {
		case eventCh <- NetworkEvent{Kind: EventQueryRequestReceived, Query: req, Channel: ch}:
		default:
			// Backpressure: the runtime's event loop is saturated. Answer
			// inline rather than drop the peer's request.
			ch.send(n.handleQuery(req))
			return
		}
		<-done
	})
}

// SendAndGetResponses dials each peer, sends req over the aurum protocol
// and collects responses, up to the network's configured request timeout
// per peer. Peers whose request fails are left out of the map. When
// awaitAll is false, the call returns as soon as the first successful
// response arrives, and the map holds only that one response.
func (n *Network) SendAndGetResponses(ctx context.Context, peers []PeerID, req Request, awaitAll bool) map[PeerID]Response {
	type result struct {
		peer PeerID
		resp Response
		err  error
	}
	results := make(chan result, len(peers))
	for _, p := range peers {
		go func(p PeerID) {
			resp, err := n.sendRequest(ctx, p, req)
			results <- result{peer: p, resp: resp, err: err}
		}(p)
	}

	out := make(map[PeerID]Response, len(peers))
	need := len(peers)
	if !awaitAll && need > 0 {
		need = 1
	}
	for i := 0; i < len(peers); i++ {
		r := <-results
		if r.err != nil {
			n.log.WithError(r.err).WithField("peer", r.peer.String()).Debug("request failed")
			continue
		}
		out[r.peer] = r.resp
		if !awaitAll && len(out) >= need {
			break
		}
	}
	return out
}

func (n *Network) sendRequest(ctx context.Context, p PeerID, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, n.requestTimeout)
	defer cancel()

	s, err := n.host.NewStream(ctx, p, aurumProtocol)
	if err != nil {
		return Response{}, utils.Wrap(err, "open stream")
	}
	defer s.Close()

	if err := json.NewEncoder(s).Encode(encodeRequest(req)); err != nil {
		return Response{}, utils.Wrap(err, "write request")
	}

	var wresp wireResponse
	if err := json.NewDecoder(bufio.NewReader(s)).Decode(&wresp); err != nil {
		return Response{}, utils.Wrap(err, "read response")
	}
	return decodeResponse(wresp), nil
}

func encodeRequest(r Request) wireRequest {
	w := wireRequest{Kind: r.Kind, Key: RecordKeyHex(r.Key), Nonce: uint64(r.Nonce), Difficulty: r.Difficulty}
	if p, ok := r.Addr.Peer(); ok {
		w.AddrPeer = p.String()
	}
	if k, ok := r.Addr.ToRecordKey(); ok {
		w.AddrKey = RecordKeyHex(k)
	}
	return w
}

func decodeRequest(w wireRequest) Request {
	req := Request{Kind: w.Kind, Nonce: Nonce(w.Nonce), Difficulty: w.Difficulty}
	if key, err := hexToBytes(w.Key); err == nil && len(key) > 0 {
		req.Key = key
	}
	if w.AddrPeer != "" {
		if p, err := decodePeerID(w.AddrPeer); err == nil {
			req.Addr = NewPeerAddress(p)
		}
	} else if key, err := hexToBytes(w.AddrKey); err == nil && len(key) > 0 {
		req.Addr = NewRecordAddress(key)
	}
	return req
}

func encodeResponse(r Response) wireResponse {
	w := wireResponse{Kind: r.Kind, Found: r.Found, Value: r.Value, InProblem: r.InProblem}
	if r.Err != nil {
		w.Err = r.Err.Error()
	}
	if p, ok := r.OurAddress.Peer(); ok {
		w.OurAddrPeer = p.String()
	}
	if r.Quote != nil {
		wq := encodeQuote(*r.Quote)
		w.Quote = &wq
	}
	for _, a := range r.Proofs {
		w.Proofs = append(w.Proofs, encodeProof(a))
	}
	return w
}

func decodeResponse(w wireResponse) Response {
	r := Response{Kind: w.Kind, Found: w.Found, Value: w.Value, InProblem: w.InProblem}
	if w.Err != "" {
		r.Err = fmt.Errorf("%s", w.Err)
	}
	if w.OurAddrPeer != "" {
		if p, err := decodePeerID(w.OurAddrPeer); err == nil {
			r.OurAddress = NewPeerAddress(p)
		}
	}
	if w.Quote != nil {
		q := decodeQuote(*w.Quote)
		r.Quote = &q
	}
	for _, wp := range w.Proofs {
		r.Proofs = append(r.Proofs, decodeProof(wp))
	}
	return r
}

func encodeQuote(q Quote) wireQuote {
	badNodes := make([]string, 0, len(q.BadNodes))
	for _, p := range q.BadNodes {
		badNodes = append(badNodes, p.String())
	}
	return wireQuote{
		Hash:           hex.EncodeToString(q.Hash[:]),
		Cost:           q.Cost.String(),
		PricingMetrics: q.PricingMetrics,
		BadNodes:       badNodes,
		RewardAddress:  q.RewardAddress.Hex(),
		ExpirationSecs: q.ExpirationSecs,
		Signature:      hex.EncodeToString(q.Signature),
	}
}

func decodeQuote(w wireQuote) Quote {
	q := Quote{PricingMetrics: w.PricingMetrics, ExpirationSecs: w.ExpirationSecs}
	if h, err := hexToBytes(w.Hash); err == nil {
		copy(q.Hash[:], h)
	}
	cost, ok := new(big.Int).SetString(w.Cost, 10)
	if !ok {
		cost = big.NewInt(0)
	}
	q.Cost = AttoTokensFromBigInt(cost)
	q.RewardAddress = common.HexToAddress(w.RewardAddress)
	if sig, err := hexToBytes(w.Signature); err == nil {
		q.Signature = sig
	}
	for _, bn := range w.BadNodes {
		if p, err := decodePeerID(bn); err == nil {
			q.BadNodes = append(q.BadNodes, p)
		}
	}
	return q
}

func encodeProof(a ChunkProofAnswer) wireProof {
	w := wireProof{Exists: a.Exists}
	if k, ok := a.Addr.ToRecordKey(); ok {
		w.AddrKey = RecordKeyHex(k)
	}
	if a.Exists {
		w.Proof = hex.EncodeToString(a.Proof[:])
	}
	return w
}

func decodeProof(w wireProof) ChunkProofAnswer {
	a := ChunkProofAnswer{Exists: w.Exists}
	if key, err := hexToBytes(w.AddrKey); err == nil && len(key) > 0 {
		a.Addr = NewRecordAddress(key)
	}
	if w.Proof != "" {
		if p, err := hexToBytes(w.Proof); err == nil {
			copy(a.Proof[:], p)
		}
	}
	return a
}
