package gossip

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
)

var (
	// ErrClosed is returned by Topic operations after Close, and by Next
	// once the underlying stream has ended.
	ErrClosed = errors.New("gossip: topic closed")

	// ErrAlreadySubscribed is returned when a node subscribes to a room it
	// is already subscribed to.
	ErrAlreadySubscribed = errors.New("gossip: already subscribed to room")

	// ErrUnreachable is returned by SubscribeAndJoin when none of the
	// bootstrap peers could be reached.
	ErrUnreachable = errors.New("gossip: no bootstrap peer reachable")

	// ErrUnknownPeer is returned when dialing a peer whose address was
	// never registered.
	ErrUnknownPeer = errors.New("gossip: no address known for peer")
)

// Network is the peer-to-peer substrate a chat node runs on.
type Network interface {
	// ID is the local peer identity.
	ID() peer.ID

	// Addr returns the local peer id together with the addresses other
	// peers can dial it on.
	Addr(ctx context.Context) (PeerAddr, error)

	// AddPeerAddr registers the addresses of a remote peer so later
	// subscriptions can dial it by id.
	AddPeerAddr(addr PeerAddr) error

	// Subscribe joins the room's gossip topic and dials the bootstrap
	// peers in the background. It returns as soon as the local
	// subscription exists.
	Subscribe(ctx context.Context, room RoomID, bootstrap []peer.ID) (Topic, error)

	// SubscribeAndJoin is Subscribe followed by waiting until at least one
	// bootstrap peer is connected and a neighbor has appeared on the
	// topic, or ctx is done.
	SubscribeAndJoin(ctx context.Context, room RoomID, bootstrap []peer.ID) (Topic, error)
}

// Topic is one live room subscription. Broadcast is the outbound handle,
// Next drains the inbound event stream. Next must only be called from a
// single goroutine.
type Topic interface {
	Room() RoomID
	Broadcast(ctx context.Context, payload []byte) error
	Next(ctx context.Context) (Event, error)
	Neighbors() []peer.ID
	Close() error
}

// EventKind discriminates topic events.
type EventKind int

const (
	// Received carries a gossip payload published by another peer.
	Received EventKind = iota + 1
	// NeighborUp reports a peer joining this node's view of the topic.
	NeighborUp
	// NeighborDown reports a peer leaving this node's view of the topic.
	NeighborDown
)

func (k EventKind) String() string {
	switch k {
	case Received:
		return "received"
	case NeighborUp:
		return "neighbor-up"
	case NeighborDown:
		return "neighbor-down"
	default:
		return "unknown"
	}
}

// Event is a single item from a topic's inbound stream. For Received
// events Peer is the peer that delivered the payload, which is not
// necessarily its author.
type Event struct {
	Kind    EventKind
	Peer    peer.ID
	Content []byte
}
