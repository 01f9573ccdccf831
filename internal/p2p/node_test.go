package p2p

import (
	"context"
	"testing"
	"time"

	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaprooms/internal/gossip"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	n, err := NewNode(context.Background(), Config{
		ListenAddrs: []string{"/ip4/127.0.0.1/tcp/0"},
		Logger:      zerolog.Nop(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = n.Close() })
	return n
}

func TestMessageIDDependsOnContent(t *testing.T) {
	assert.NotEqual(t,
		messageID(newPBMessage("a", 1, "x")),
		messageID(newPBMessage("a", 1, "y")),
	)
	assert.Equal(t,
		messageID(newPBMessage("a", 1, "x")),
		messageID(newPBMessage("a", 1, "x")),
	)
}

func TestAddPeerAddrRejectsBadMultiaddr(t *testing.T) {
	if testing.Short() {
		t.Skip("starts a libp2p host")
	}
	a, b := newTestNode(t), newTestNode(t)
	err := a.AddPeerAddr(gossip.PeerAddr{ID: b.ID(), Addrs: []string{"not-a-multiaddr"}})
	require.Error(t, err)
}

func TestNodesExchangeOverGossipsub(t *testing.T) {
	if testing.Short() {
		t.Skip("starts two libp2p hosts")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	a, b := newTestNode(t), newTestNode(t)

	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	ta, err := a.Subscribe(ctx, room, nil)
	require.NoError(t, err)

	_, err = a.Subscribe(ctx, room, nil)
	require.ErrorIs(t, err, gossip.ErrAlreadySubscribed)

	addr, err := a.Addr(ctx)
	require.NoError(t, err)
	require.NoError(t, b.AddPeerAddr(addr))
	tb, err := b.SubscribeAndJoin(ctx, room, []peer.ID{a.ID()})
	require.NoError(t, err)
	assert.Contains(t, tb.Neighbors(), a.ID())

	require.Eventually(t, func() bool {
		return len(ta.Neighbors()) == 1
	}, 10*time.Second, 50*time.Millisecond)

	require.NoError(t, tb.Broadcast(ctx, []byte("hello")))
	for {
		ev, err := ta.Next(ctx)
		require.NoError(t, err)
		if ev.Kind != gossip.Received {
			continue
		}
		assert.Equal(t, []byte("hello"), ev.Content)
		assert.Equal(t, b.ID(), ev.Peer)
		break
	}

	require.NoError(t, tb.Close())
	_, err = tb.Next(ctx)
	require.ErrorIs(t, err, gossip.ErrClosed)
}

func TestSubscribeAndJoinUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("starts two libp2p hosts")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	a := newTestNode(t)
	b := newTestNode(t)
	bID := b.ID()
	require.NoError(t, b.Close())

	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	_, err = a.SubscribeAndJoin(ctx, room, []peer.ID{bID})
	require.ErrorIs(t, err, gossip.ErrUnreachable)

	_, err = a.Subscribe(ctx, room, nil)
	require.NoError(t, err)
}

func newPBMessage(from string, seq byte, data string) *pb.Message {
	return &pb.Message{From: []byte(from), Seqno: []byte{seq}, Data: []byte(data)}
}
