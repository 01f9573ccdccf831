package gossip

import (
	"strings"
	"testing"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoomIDStringRoundTrip(t *testing.T) {
	id, err := NewRoomID()
	require.NoError(t, err)
	require.False(t, id.IsZero())

	parsed, err := ParseRoomID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
	assert.True(t, strings.HasPrefix(id.TopicName(), "/yap/room/"))
}

func TestRoomIDFromBytesLength(t *testing.T) {
	_, err := RoomIDFromBytes(make([]byte, RoomIDSize-1))
	require.Error(t, err)

	_, err = ParseRoomID("not-hex")
	require.Error(t, err)
}

func TestNewRoomIDUnique(t *testing.T) {
	a, err := NewRoomID()
	require.NoError(t, err)
	b, err := NewRoomID()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestShortIDIsSuffix(t *testing.T) {
	hub := NewMemoryHub()
	node, err := hub.NewMemoryNode()
	require.NoError(t, err)

	short := ShortID(node.ID())
	assert.Len(t, short, 10)
	assert.True(t, strings.HasSuffix(node.ID().String(), short))
}

func TestPeerAddrValidate(t *testing.T) {
	require.Error(t, PeerAddr{}.Validate())

	hub := NewMemoryHub()
	node, err := hub.NewMemoryNode()
	require.NoError(t, err)
	require.NoError(t, PeerAddr{ID: node.ID()}.Validate())
	assert.Equal(t, []peer.ID{node.ID()}, PeerIDs([]PeerAddr{{ID: node.ID()}}))
}
