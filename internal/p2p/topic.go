package p2p

import (
	"context"
	"errors"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"

	"yaprooms/internal/gossip"
)

const topicQueueSize = 256

// topic merges a gossipsub subscription and its peer events into one
// ordered gossip.Event stream.
type topic struct {
	node    *Node
	room    gossip.RoomID
	pt      *pubsub.Topic
	sub     *pubsub.Subscription
	handler *pubsub.TopicEventHandler
	roster  *gossip.Roster
	log     zerolog.Logger

	events chan gossip.Event
	joined chan struct{}

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	joinOnce  sync.Once
	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

func newTopic(n *Node, room gossip.RoomID, pt *pubsub.Topic) (*topic, error) {
	sub, err := pt.Subscribe()
	if err != nil {
		return nil, err
	}
	handler, err := pt.EventHandler()
	if err != nil {
		sub.Cancel()
		return nil, err
	}
	ctx, cancel := context.WithCancel(n.ctx)
	t := &topic{
		node:    n,
		room:    room,
		pt:      pt,
		sub:     sub,
		handler: handler,
		roster:  gossip.NewRoster(n.host.ID()),
		log:     n.log.With().Stringer("room", room).Logger(),
		events:  make(chan gossip.Event, topicQueueSize),
		joined:  make(chan struct{}),
		cancel:  cancel,
		closed:  make(chan struct{}),
	}
	t.wg.Add(2)
	go t.readMessages(ctx)
	go t.readPeerEvents(ctx)
	return t, nil
}

func (t *topic) Room() gossip.RoomID { return t.room }

func (t *topic) Neighbors() []peer.ID { return t.roster.List() }

func (t *topic) Broadcast(ctx context.Context, payload []byte) error {
	select {
	case <-t.closed:
		return gossip.ErrClosed
	default:
	}
	return t.pt.Publish(ctx, payload)
}

func (t *topic) Next(ctx context.Context) (gossip.Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-t.closed:
		return gossip.Event{}, gossip.ErrClosed
	case <-ctx.Done():
		return gossip.Event{}, ctx.Err()
	}
}

func (t *topic) readMessages(ctx context.Context) {
	defer t.wg.Done()
	self := t.node.host.ID()
	for {
		msg, err := t.sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, pubsub.ErrSubscriptionCancelled) {
				t.log.Error().Err(err).Msg("subscription failed")
			}
			return
		}
		if msg.GetFrom() == self {
			continue
		}
		t.push(ctx, gossip.Event{Kind: gossip.Received, Peer: msg.ReceivedFrom, Content: msg.Data})
	}
}

func (t *topic) readPeerEvents(ctx context.Context) {
	defer t.wg.Done()
	for {
		pe, err := t.handler.NextPeerEvent(ctx)
		if err != nil {
			return
		}
		var ev gossip.Event
		switch pe.Type {
		case pubsub.PeerJoin:
			ev = gossip.Event{Kind: gossip.NeighborUp, Peer: pe.Peer}
		case pubsub.PeerLeave:
			ev = gossip.Event{Kind: gossip.NeighborDown, Peer: pe.Peer}
		default:
			continue
		}
		if !t.roster.Apply(ev) {
			continue
		}
		t.log.Debug().Stringer("event", ev.Kind).Str("peer", gossip.ShortID(ev.Peer)).Msg("neighbor change")
		if ev.Kind == gossip.NeighborUp {
			t.joinOnce.Do(func() { close(t.joined) })
		}
		t.push(ctx, ev)
	}
}

func (t *topic) push(ctx context.Context, ev gossip.Event) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *topic) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		t.cancel()
		t.sub.Cancel()
		t.handler.Cancel()
		t.wg.Wait()
		t.closeErr = t.pt.Close()
		t.node.forget(t.room)
	})
	return t.closeErr
}
