package core

// LifecycleEventKind enumerates the node-level events broadcast on the
// lifecycle channel.
type LifecycleEventKind uint8

const (
	// ConnectedToNetwork fires exactly once per node run, the moment the
	// connected-peer count first reaches CloseGroupSize.
	ConnectedToNetwork LifecycleEventKind = iota
	// PeerAdded names a peer-arrival notification. The dispatcher does not
	// publish it; peer arrivals are reported as MetricsRecorder markers.
	PeerAdded
	// PeerRemoved names a peer-departure notification. The dispatcher does
	// not publish it; peer departures are reported as MetricsRecorder
	// markers.
	PeerRemoved
	// ChannelClosed fires when the upstream swarm event stream closes; it
	// is the only event that ends the node's run loop.
	ChannelClosed
	// TerminateNode fires when an explicit shutdown was requested. Per the
	// node's lifecycle, this does not by itself end the run loop.
	TerminateNode
)

func (k LifecycleEventKind) String() string {
	switch k {
	case ConnectedToNetwork:
		return "connected_to_network"
	case PeerAdded:
		return "peer_added"
	case PeerRemoved:
		return "peer_removed"
	case ChannelClosed:
		return "channel_closed"
	case TerminateNode:
		return "terminate_node"
	default:
		return "unknown"
	}
}

// LifecycleEvent is broadcast to every subscriber of the node's lifecycle
// channel.
type LifecycleEvent struct {
	Kind   LifecycleEventKind
	Peer   PeerID // set for PeerAdded/PeerRemoved
	Reason string // set for TerminateNode
}

// LifecycleBroadcaster fans node-level lifecycle events out to any number
// of subscribers. Slow subscribers never block a publish: each gets its
// own buffered channel, and a full buffer drops the oldest event rather
// than stalling the publisher.
type LifecycleBroadcaster struct {
	subscribe   chan chan LifecycleEvent
	unsubscribe chan chan LifecycleEvent
	publish     chan LifecycleEvent
	done        chan struct{}
}

// NewLifecycleBroadcaster starts the broadcaster's dispatch goroutine.
func NewLifecycleBroadcaster() *LifecycleBroadcaster {
	b := &LifecycleBroadcaster{
		subscribe:   make(chan chan LifecycleEvent),
		unsubscribe: make(chan chan LifecycleEvent),
		publish:     make(chan LifecycleEvent, 64),
		done:        make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *LifecycleBroadcaster) run() {
	subs := make(map[chan LifecycleEvent]struct{})
	for {
		select {
		case ch := <-b.subscribe:
			subs[ch] = struct{}{}
		case ch := <-b.unsubscribe:
			delete(subs, ch)
			close(ch)
		case ev := <-b.publish:
			for ch := range subs {
				select {
				case ch <- ev:
				default:
					// Lagging subscriber: drop the oldest buffered event to
					// make room rather than block the publisher.
					select {
					case <-ch:
					default:
					}
					select {
					case ch <- ev:
					default:
					}
				}
			}
		case <-b.done:
			for ch := range subs {
				close(ch)
			}
			return
		}
	}
}

// Subscribe registers a new receiver, buffered to tolerate a slow
// consumer without blocking publishers.
func (b *LifecycleBroadcaster) Subscribe() <-chan LifecycleEvent {
	ch := make(chan LifecycleEvent, 16)
	b.subscribe <- ch
	return ch
}

// Publish broadcasts ev to every current subscriber. It never blocks.
func (b *LifecycleBroadcaster) Publish(ev LifecycleEvent) {
	select {
	case b.publish <- ev:
	case <-b.done:
	}
}

// Close stops the broadcaster and closes every subscriber channel.
func (b *LifecycleBroadcaster) Close() {
	close(b.done)
}
