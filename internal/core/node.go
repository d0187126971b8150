package core

import (
	"context"
	"math/rand"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/aurumnet/aurum-node/internal/utils"
)

// NodeConfig carries every tunable the node runtime needs to bring up its
// Network handle and ticker set. It is deliberately narrower than the
// application-wide configuration file: cmd/node maps the loaded config
// into this shape, keeping the core package free of a dependency on the
// config-loading machinery.
type NodeConfig struct {
	ListenAddr     string
	BootstrapPeers []string
	DiscoveryTag   string
	Local          bool

	CloseGroupSize         int
	RequestTimeout         time.Duration
	ChallengeSkipThreshold int

	PeriodicReplicationIntervalMax    time.Duration
	StoreChallengeIntervalMax         time.Duration
	UptimeMetricsUpdateInterval       time.Duration
	IrrelevantRecordsCleanupInterval  time.Duration

	QuoteTTL      time.Duration
	RewardAddress common.Address
}

// NodeBuilder assembles a Node's collaborators before the first run.
type NodeBuilder struct {
	cfg      NodeConfig
	log      *logrus.Logger
	identity *Identity
	store    RecordStore
	metrics  MetricsRecorder
	nat      NATManager
	verifier PaymentVerifier
}

// NewNodeBuilder starts a builder with cfg and log; every other
// collaborator has a usable default and can be overridden with the
// With* methods.
func NewNodeBuilder(cfg NodeConfig, log *logrus.Logger) *NodeBuilder {
	return &NodeBuilder{cfg: cfg, log: log}
}

func (b *NodeBuilder) WithIdentity(id *Identity) *NodeBuilder       { b.identity = id; return b }
func (b *NodeBuilder) WithRecordStore(s RecordStore) *NodeBuilder   { b.store = s; return b }
func (b *NodeBuilder) WithMetricsRecorder(m MetricsRecorder) *NodeBuilder {
	b.metrics = m
	return b
}
func (b *NodeBuilder) WithNATManager(n NATManager) *NodeBuilder       { b.nat = n; return b }
func (b *NodeBuilder) WithPaymentVerifier(v PaymentVerifier) *NodeBuilder {
	b.verifier = v
	return b
}

// Build constructs the Node's Network handle, dispatcher and lifecycle
// broadcaster. The node is not yet running; call Run to start its event
// loop.
func (b *NodeBuilder) Build(ctx context.Context) (*Node, error) {
	identity := b.identity
	if identity == nil {
		var err error
		identity, err = NewIdentity()
		if err != nil {
			return nil, utils.Wrap(err, "generate node identity")
		}
	}
	store := b.store
	if store == nil {
		store = NewMemoryRecordStore()
	}

	ttl := b.cfg.QuoteTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	quoteIssuer := NewQuoteIssuer(identity, ttl)

	eventCh := make(chan NetworkEvent, 256)

	netOpts := NetworkOptions{
		ListenAddr:             b.cfg.ListenAddr,
		DiscoveryTag:           b.cfg.DiscoveryTag,
		Local:                  b.cfg.Local,
		BootstrapPeers:         b.cfg.BootstrapPeers,
		CloseGroupSize:         b.cfg.CloseGroupSize,
		RequestTimeout:         b.cfg.RequestTimeout,
		ChallengeSkipThreshold: b.cfg.ChallengeSkipThreshold,
		Metrics:                b.metrics,
		NAT:                    b.nat,
	}
	net, err := NewNetwork(ctx, identity, store, quoteIssuer, netOpts, eventCh, b.log)
	if err != nil {
		return nil, err
	}

	lifecycle := NewLifecycleBroadcaster()
	closeGroupSize := b.cfg.CloseGroupSize
	if closeGroupSize <= 0 {
		closeGroupSize = 5
	}
	dispatcher := NewDispatcher(net, lifecycle, b.verifier, closeGroupSize, b.log)

	return &Node{
		cfg:         b.cfg,
		log:         b.log,
		identity:    identity,
		net:         net,
		dispatcher:  dispatcher,
		lifecycle:   lifecycle,
		eventCh:     eventCh,
		quoteIssuer: quoteIssuer,
	}, nil
}

// Node owns the four periodic tickers and the event receiver that make up
// a running storage node. It is constructed by NodeBuilder, started
// exactly once, and runs until the event stream closes or the caller's
// context is canceled.
type Node struct {
	cfg         NodeConfig
	log         *logrus.Logger
	identity    *Identity
	net         *Network
	dispatcher  *Dispatcher
	lifecycle   *LifecycleBroadcaster
	eventCh     chan NetworkEvent
	quoteIssuer *QuoteIssuer
	startedAt   time.Time
}

// Network returns the node's outbound Network handle.
func (n *Node) Network() *Network { return n.net }

// Lifecycle returns the node's lifecycle event broadcaster.
func (n *Node) Lifecycle() *LifecycleBroadcaster { return n.lifecycle }

// Identity returns the node's libp2p and quote-signing identity.
func (n *Node) Identity() *Identity { return n.identity }

// jitteredInterval draws a duration uniformly from [max/2, max], the
// desynchronization jitter used by both the replication scheduler and the
// storage-challenge verifier.
func jitteredInterval(max time.Duration) time.Duration {
	if max <= 0 {
		return time.Minute
	}
	min := max / 2
	span := int64(max - min)
	if span <= 0 {
		return min
	}
	return min + time.Duration(rand.Int63n(span+1))
}

// positiveOr returns d if it is strictly positive, else fallback. Guards
// tickers built straight from a NodeConfig that was assembled in-process
// without going through config.Default, where a zero-valued field would
// otherwise make time.NewTicker panic.
func positiveOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

// Run starts the node's cooperative event loop. It blocks until the swarm
// driver's event stream closes (ChannelClosed is broadcast) or ctx is
// canceled. Each periodic interval is sampled once here at startup, per
// the replication scheduler's and storage-challenge verifier's jitter
// rule; Go's time.Ticker already defers its first tick until one interval
// has elapsed, so unlike a tokio interval it needs no explicit "discard
// the immediate first tick" step to avoid a t=0 burst.
func (n *Node) Run(ctx context.Context) error {
	n.startedAt = time.Now()

	replicationInterval := jitteredInterval(n.cfg.PeriodicReplicationIntervalMax)
	challengeInterval := jitteredInterval(n.cfg.StoreChallengeIntervalMax)

	replicationTicker := time.NewTicker(replicationInterval)
	defer replicationTicker.Stop()
	uptimeTicker := time.NewTicker(positiveOr(n.cfg.UptimeMetricsUpdateInterval, 10*time.Second))
	defer uptimeTicker.Stop()
	cleanupTicker := time.NewTicker(positiveOr(n.cfg.IrrelevantRecordsCleanupInterval, time.Hour))
	defer cleanupTicker.Stop()
	challengeTicker := time.NewTicker(challengeInterval)
	defer challengeTicker.Stop()

	n.log.WithFields(logrus.Fields{
		"replication_interval": replicationInterval,
		"challenge_interval":   challengeInterval,
	}).Info("node runtime started")

	for {
		select {
		case ev, ok := <-n.eventCh:
			if !ok {
				n.lifecycle.Publish(LifecycleEvent{Kind: ChannelClosed})
				return nil
			}
			n.dispatcher.Handle(ctx, ev)

		case <-replicationTicker.C:
			net := n.net.Clone()
			go func() {
				if err := net.TryIntervalReplication(); err != nil {
					n.log.WithError(err).Debug("periodic replication failed")
				}
			}()

		case <-uptimeTicker.C:
			n.net.metrics.Record(MarkerUptime(int64(time.Since(n.startedAt).Seconds())))

		case <-cleanupTicker.C:
			net := n.net.Clone()
			go func() {
				net.CleanupIrrelevantRecords()
			}()

		case <-challengeTicker.C:
			net := n.net.Clone()
			closeGroupSize, log := n.cfg.CloseGroupSize, n.log
			go func() {
				n.net.metrics.Record(MarkerStoreChallengeTriggered())
				RunStorageChallengeRound(ctx, net, closeGroupSize, log)
			}()

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
