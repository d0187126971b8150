package core

// Request is the inbound payload carried by a QueryRequestReceived event.
// It is a tagged union over the query kinds the node answers.
type Request struct {
	Kind       QueryKind
	Addr       NetworkAddress
	Key        RecordKey
	Nonce      Nonce
	Difficulty int
}

// QueryKind enumerates the query variants handled by handleQuery.
type QueryKind uint8

const (
	QueryGetStoreCost QueryKind = iota
	QueryGetRegisterRecord
	QueryGetReplicatedRecord
	QueryGetChunkExistenceProof
	QueryCheckNodeInProblem
)

// ChunkProofAnswer pairs a chunk address with its proof, or records that
// the chunk does not exist locally.
type ChunkProofAnswer struct {
	Addr   NetworkAddress
	Proof  ChunkProof
	Exists bool
}

// Response is the outbound payload the node sends in reply to a Request.
type Response struct {
	Kind        QueryKind
	Quote       *Quote
	Err         error
	OurAddress  NetworkAddress
	Value       []byte
	Found       bool
	Proofs      []ChunkProofAnswer
	InProblem   bool
}

// ResponseChannel identifies where a Response must be delivered. The
// swarm driver that created it owns the underlying stream; the core only
// ever writes through this handle once.
type ResponseChannel struct {
	deliver func(Response)
}

// NewResponseChannel wraps a delivery function supplied by the swarm
// driver for a single inbound request.
func NewResponseChannel(deliver func(Response)) ResponseChannel {
	return ResponseChannel{deliver: deliver}
}

func (c ResponseChannel) send(r Response) {
	if c.deliver != nil {
		c.deliver(r)
	}
}
