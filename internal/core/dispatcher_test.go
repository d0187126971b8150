package core

import (
	"context"
	"io"
	"testing"
	"time"

	libp2pcrypto "github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
)

func newTestNetwork(t *testing.T, closeGroupSize int) *Network {
	t.Helper()
	identity, err := NewIdentity()
	if err != nil {
		t.Fatalf("new identity: %v", err)
	}
	log := logrus.New()
	log.SetOutput(io.Discard)
	return &Network{
		log:            log,
		identity:       identity,
		store:          NewMemoryRecordStore(),
		metrics:        NoopMetricsRecorder{},
		nat:            NoopNATManager{},
		closeGroupSize: closeGroupSize,
		requestTimeout: time.Second,
		issues:         make(map[PeerID]*peerIssues),
		shunned:        make(map[PeerID]struct{}),
	}
}

func randomTestPeerID(t *testing.T) PeerID {
	t.Helper()
	_, pub, err := libp2pcrypto.GenerateKeyPair(libp2pcrypto.Ed25519, -1)
	if err != nil {
		t.Fatalf("keypair: %v", err)
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		t.Fatalf("peer id: %v", err)
	}
	return id
}

func TestDispatcherConnectedToNetworkFiresOnceAtThreshold(t *testing.T) {
	net := newTestNetwork(t, 3)
	lifecycle := NewLifecycleBroadcaster()
	defer lifecycle.Close()
	sub := lifecycle.Subscribe()
	d := NewDispatcher(net, lifecycle, nil, 3, net.log)

	for i := 0; i < 3; i++ {
		d.Handle(context.Background(), NetworkEvent{Kind: EventPeerAdded, Peer: randomTestPeerID(t)})
	}

	select {
	case ev := <-sub:
		if ev.Kind != ConnectedToNetwork {
			t.Fatalf("expected ConnectedToNetwork, got %v", ev.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("expected ConnectedToNetwork event")
	}

	// A fourth peer crossing further above the threshold must not emit a
	// second ConnectedToNetwork event.
	d.Handle(context.Background(), NetworkEvent{Kind: EventPeerAdded, Peer: randomTestPeerID(t)})
	select {
	case ev := <-sub:
		t.Fatalf("unexpected second lifecycle event %v", ev.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDispatcherFailedToFetchHoldersRecordsIssue(t *testing.T) {
	net := newTestNetwork(t, 3)
	lifecycle := NewLifecycleBroadcaster()
	defer lifecycle.Close()
	d := NewDispatcher(net, lifecycle, nil, 3, net.log)

	bad := randomTestPeerID(t)
	d.Handle(context.Background(), NetworkEvent{Kind: EventFailedToFetchHolders, FailedPeers: []PeerID{bad, bad, bad}})

	addr := NewPeerAddress(bad)
	if !net.IsPeerShunned(addr) {
		t.Fatal("expected peer to be shunned after repeated issues")
	}
}
