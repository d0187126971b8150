package core

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/multiformats/go-multiaddr"
	"github.com/sirupsen/logrus"

	"github.com/aurumnet/aurum-node/internal/utils"
)

const replicationTopic = "aurum/replication/v1"

// peerIssues accumulates NodeIssue counts for a single peer, guarded by
// the owning Network's mutex.
type peerIssues struct {
	counts map[NodeIssue]int
}

// Network is the single outbound-facing handle the node runtime and its
// spawned handlers use to reach the swarm, the record store and peer
// bookkeeping. It owns no back-pointer into the runtime: events reach the
// runtime through the bounded receiver the runtime itself owns, never
// through this handle.
type Network struct {
	log *logrus.Logger

	host   host.Host
	pubsub *pubsub.PubSub
	topic  *pubsub.Topic
	ctx    context.Context

	identity    *Identity
	store       RecordStore
	quoteIssuer *QuoteIssuer
	metrics     MetricsRecorder
	nat         NATManager

	closeGroupSize         int
	requestTimeout         time.Duration
	challengeSkipThreshold int

	mu      sync.RWMutex
	issues  map[PeerID]*peerIssues
	shunned map[PeerID]struct{}

	eventCh chan<- NetworkEvent
}

// NetworkOptions configures a new Network handle.
type NetworkOptions struct {
	ListenAddr             string
	DiscoveryTag           string
	Local                  bool
	BootstrapPeers         []string
	CloseGroupSize         int
	RequestTimeout         time.Duration
	ChallengeSkipThreshold int
	Metrics                MetricsRecorder
	NAT                    NATManager
}

// NewNetwork brings up the libp2p host and GossipSub router and returns an
// outbound Network handle bound to them.
func NewNetwork(ctx context.Context, identity *Identity, store RecordStore, quoteIssuer *QuoteIssuer, opts NetworkOptions, eventCh chan<- NetworkEvent, log *logrus.Logger) (*Network, error) {
	h, err := libp2p.New(
		libp2p.Identity(identity.HostKey()),
		libp2p.ListenAddrStrings(opts.ListenAddr),
	)
	if err != nil {
		return nil, utils.Wrap(err, "create libp2p host")
	}

	ps, err := pubsub.NewGossipSub(ctx, h)
	if err != nil {
		h.Close()
		return nil, utils.Wrap(err, "create gossipsub router")
	}
	topic, err := ps.Join(replicationTopic)
	if err != nil {
		h.Close()
		return nil, utils.Wrap(err, "join replication topic")
	}
	sub, err := topic.Subscribe()
	if err != nil {
		h.Close()
		return nil, utils.Wrap(err, "subscribe replication topic")
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetricsRecorder{}
	}
	nat := opts.NAT
	if nat == nil {
		nat = NoopNATManager{}
	}
	closeGroupSize := opts.CloseGroupSize
	if closeGroupSize <= 0 {
		closeGroupSize = 5
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	n := &Network{
		log:                    log,
		host:                   h,
		pubsub:                 ps,
		topic:                  topic,
		ctx:                    ctx,
		identity:               identity,
		store:                  store,
		quoteIssuer:            quoteIssuer,
		metrics:                metrics,
		nat:                    nat,
		closeGroupSize:         closeGroupSize,
		requestTimeout:         timeout,
		challengeSkipThreshold: opts.ChallengeSkipThreshold,
		issues:                 make(map[PeerID]*peerIssues),
		shunned:                make(map[PeerID]struct{}),
		eventCh:                eventCh,
	}
	n.registerStreamHandler(eventCh)
	go n.consumeReplicationAnnouncements(sub)

	if port, err := listenPort(opts.ListenAddr); err == nil {
		if err := nat.TryMapPort(port); err != nil {
			log.WithError(err).Warn("nat port mapping failed")
		}
	}

	for _, addr := range opts.BootstrapPeers {
		if err := n.Dial(addr); err != nil {
			log.WithError(err).WithField("addr", addr).Warn("bootstrap dial failed")
		}
	}

	if opts.Local {
		mdns.NewMdnsService(h, opts.DiscoveryTag, &mdnsNotifee{n: n})
	}

	h.Network().Notify(&connNotifiee{n: n})

	return n, nil
}

// connNotifiee bridges libp2p's low-level connection notifications into
// PeerAdded/PeerRemoved NetworkEvents, counting connections rather than
// streams so a peer with multiple open streams is not double-counted.
type connNotifiee struct{ n *Network }

func (c *connNotifiee) Connected(netw network.Network, conn network.Conn) {
	p := conn.RemotePeer()
	if len(netw.ConnsToPeer(p)) != 1 {
		return
	}
	c.n.sendEvent(NetworkEvent{Kind: EventPeerAdded, Peer: p, PeerCount: len(netw.Peers())})
}

func (c *connNotifiee) Disconnected(netw network.Network, conn network.Conn) {
	p := conn.RemotePeer()
	if len(netw.ConnsToPeer(p)) != 0 {
		return
	}
	c.n.sendEvent(NetworkEvent{Kind: EventPeerRemoved, Peer: p, PeerCount: len(netw.Peers())})
}

func (c *connNotifiee) Listen(network.Network, multiaddr.Multiaddr)      {}
func (c *connNotifiee) ListenClose(network.Network, multiaddr.Multiaddr) {}

// sendEvent delivers ev to the runtime's event loop without blocking the
// libp2p notification goroutine that produced it.
func (n *Network) sendEvent(ev NetworkEvent) {
	select {
	case n.eventCh <- ev:
	default:
		n.log.WithField("kind", ev.Kind).Warn("event channel saturated, dropping event")
	}
}

// Clone returns a handle to the same underlying swarm and state, the
// Go equivalent of the Arc-clone a task needs to interact with the
// network independently of the runtime's own lifetime.
func (n *Network) Clone() *Network { return n }

// Host exposes the underlying libp2p host for the runtime's own use
// (listen-address inspection, graceful close).
func (n *Network) Host() host.Host { return n.host }

type mdnsNotifee struct{ n *Network }

func (m *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == m.n.host.ID() {
		return
	}
	if err := m.n.host.Connect(m.n.ctx, info); err != nil {
		m.n.log.WithError(err).WithField("peer", info.ID.String()).Debug("mdns connect failed")
	}
}

func listenPort(addr string) (int, error) {
	parts := strings.Split(addr, "/")
	for i, p := range parts {
		if p == "tcp" || p == "udp" {
			if i+1 < len(parts) {
				return strconv.Atoi(parts[i+1])
			}
		}
	}
	return 0, fmt.Errorf("no port in listen addr %q", addr)
}

// Dial connects to a peer identified by a multiaddr string, e.g.
// "/ip4/1.2.3.4/tcp/4001/p2p/Qm...".
func (n *Network) Dial(addr string) error {
	info, err := peer.AddrInfoFromString(addr)
	if err != nil {
		return utils.Wrap(err, "parse multiaddr")
	}
	if err := n.host.Connect(n.ctx, *info); err != nil {
		return utils.Wrap(err, "connect")
	}
	return nil
}

// GetLocal returns a record held in the local store, if any.
func (n *Network) GetLocal(key RecordKey) (Record, bool) {
	return n.store.Get(key)
}

// GetAllAddresses returns every locally held record's address and type.
func (n *Network) GetAllAddresses() map[string]RecordType {
	out := make(map[string]RecordType)
	for _, k := range n.store.Keys() {
		rec, ok := n.store.Get(k)
		if !ok {
			continue
		}
		out[string(k)] = rec.Type
	}
	return out
}

// GetClosestLocalPeers returns the connected peers ordered by ascending
// XOR distance to the local identity, truncated to CloseGroupSize.
func (n *Network) GetClosestLocalPeers() []PeerID {
	self := NewPeerAddress(n.identity.PeerID)
	conns := n.host.Network().Peers()
	addrs := make([]NetworkAddress, len(conns))
	for i, p := range conns {
		addrs[i] = NewPeerAddress(p)
	}
	closest := ClosestTo(self, addrs, n.closeGroupSize)
	out := make([]PeerID, 0, len(closest))
	for _, a := range closest {
		if p, ok := a.Peer(); ok {
			out = append(out, p)
		}
	}
	return out
}

// IsPeerShunned reports whether addr resolves to a peer this node has
// stopped trusting.
func (n *Network) IsPeerShunned(addr NetworkAddress) bool {
	p, ok := addr.Peer()
	if !ok {
		return false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, shunned := n.shunned[p]
	return shunned
}

// RecordNodeIssues attributes a misbehavior to a peer. A peer accumulating
// enough issues of either kind is shunned.
func (n *Network) RecordNodeIssues(p PeerID, issue NodeIssue) {
	n.mu.Lock()
	defer n.mu.Unlock()
	pi, ok := n.issues[p]
	if !ok {
		pi = &peerIssues{counts: make(map[NodeIssue]int)}
		n.issues[p] = pi
	}
	pi.counts[issue]++
	if pi.counts[issue] >= 3 {
		n.shunned[p] = struct{}{}
		n.log.WithField("peer", p.String()).WithField("issue", issue.String()).Warn("peer shunned")
	}
}

// TriggerIrrelevantRecordCleanup drops any locally held record whose
// address is no longer among this node's closest addresses, according to
// keep (the set of addresses the caller has determined are still
// relevant).
func (n *Network) TriggerIrrelevantRecordCleanup(keep map[string]struct{}) int {
	return n.store.RetainOnly(keep)
}

// CleanupIrrelevantRecords drops locally held records that are farther
// from this node's own identity than every currently connected peer — the
// best local signal available, absent full routing-table knowledge, that
// this node has fallen out of a record's close group.
func (n *Network) CleanupIrrelevantRecords() int {
	peers := n.host.Network().Peers()
	if len(peers) == 0 {
		return 0
	}
	self := NewPeerAddress(n.identity.PeerID)
	var maxDist *big.Int
	for _, p := range peers {
		d := self.Distance(NewPeerAddress(p))
		if maxDist == nil || d.Cmp(maxDist) > 0 {
			maxDist = d
		}
	}
	keep := make(map[string]struct{})
	for _, k := range n.store.Keys() {
		if self.Distance(NewRecordAddress(k)).Cmp(maxDist) <= 0 {
			keep[string(k)] = struct{}{}
		}
	}
	return n.store.RetainOnly(keep)
}

// GetLocalStoreCost returns a freshly issued quote for key, derived from
// local pricing metrics.
func (n *Network) GetLocalStoreCost(key RecordKey, cost AttoTokens, metrics QuotingMetrics, badNodes []PeerID, rewardAddr [20]byte) (Quote, error) {
	return n.quoteIssuer.Issue(cost, metrics, badNodes, NewRecordAddress(key), rewardAddr)
}

// TryIntervalReplication announces the local record keys on the
// replication pubsub topic. The announcement reaches every subscriber of
// the topic; it is not addressed to the k-closest peers only.
func (n *Network) TryIntervalReplication() error {
	keys := n.store.Keys()
	if len(keys) == 0 {
		return nil
	}
	// Announce a randomly sampled subset so a single fan-out round never
	// floods the topic with the node's full inventory.
	sample := keys
	const maxAnnounce = 256
	if len(sample) > maxAnnounce {
		rand.Shuffle(len(sample), func(i, j int) { sample[i], sample[j] = sample[j], sample[i] })
		sample = sample[:maxAnnounce]
	}
	payload := encodeKeyAnnouncement(sample)
	if err := n.topic.Publish(n.ctx, payload); err != nil {
		return utils.Wrap(err, "publish replication announcement")
	}
	n.metrics.Record(MarkerReplicationTriggered())
	return nil
}

// consumeReplicationAnnouncements reads every message on the replication
// topic and turns peer-announced inventories into
// EventKeysToFetchForReplication events, skipping the node's own
// announcements. It exits once the topic subscription closes, which
// happens when the host shuts down.
func (n *Network) consumeReplicationAnnouncements(sub *pubsub.Subscription) {
	self := n.host.ID()
	for {
		msg, err := sub.Next(n.ctx)
		if err != nil {
			return
		}
		if msg.ReceivedFrom == self {
			continue
		}
		keys := decodeKeyAnnouncement(msg.Data)
		if len(keys) == 0 {
			continue
		}
		n.sendEvent(NetworkEvent{Kind: EventKeysToFetchForReplication, Keys: keys})
	}
}

// FetchReplicationKeysWithoutWait returns immediately and, in the
// background, logs each announced key this node does not hold. It does not
// fetch any record values and keeps no queue of pending keys.
func (n *Network) FetchReplicationKeysWithoutWait(keys []RecordKey) {
	go func() {
		for _, k := range keys {
			if n.store.Has(k) {
				continue
			}
			// No fetch request is sent and nothing is stored for a later
			// round; the missing key is only logged.
			n.log.WithField("key", RecordKeyHex(k)).Debug("announced replication key not held locally")
		}
	}()
}

func encodeKeyAnnouncement(keys []RecordKey) []byte {
	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(RecordKeyHex(k))
	}
	return []byte(sb.String())
}

func decodeKeyAnnouncement(data []byte) []RecordKey {
	if len(data) == 0 {
		return nil
	}
	parts := strings.Split(string(data), ",")
	keys := make([]RecordKey, 0, len(parts))
	for _, p := range parts {
		k, err := hex.DecodeString(p)
		if err != nil || len(k) == 0 {
			continue
		}
		keys = append(keys, RecordKey(k))
	}
	return keys
}
