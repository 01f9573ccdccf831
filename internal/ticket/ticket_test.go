package ticket

import (
	"context"
	"strings"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yaprooms/internal/codec"
	"yaprooms/internal/gossip"
)

func seedAddrs(t *testing.T, n int) []gossip.PeerAddr {
	t.Helper()
	hub := gossip.NewMemoryHub()
	out := make([]gossip.PeerAddr, n)
	for i := range out {
		node, err := hub.NewMemoryNode()
		require.NoError(t, err)
		addr, err := node.Addr(context.Background())
		require.NoError(t, err)
		out[i] = addr
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)

	cases := map[string][]gossip.PeerAddr{
		"single seed": seedAddrs(t, 1),
		"many seeds":  seedAddrs(t, 4),
		"no addrs": func() []gossip.PeerAddr {
			seeds := seedAddrs(t, 2)
			for i := range seeds {
				seeds[i].Addrs = nil
			}
			return seeds
		}(),
		"multiaddrs": func() []gossip.PeerAddr {
			seeds := seedAddrs(t, 1)
			seeds[0].Addrs = []string{"/ip4/127.0.0.1/udp/4001/quic-v1", "/ip6/::1/tcp/4001"}
			return seeds
		}(),
	}

	for name, seeds := range cases {
		t.Run(name, func(t *testing.T) {
			in := Ticket{Room: room, Seeds: seeds}
			encoded, err := Encode(in)
			require.NoError(t, err)

			out, err := Decode(encoded)
			require.NoError(t, err)
			assert.Equal(t, in, out)
		})
	}
}

func TestEncodeIsDeterministicAndShareable(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	in := Ticket{Room: room, Seeds: seedAddrs(t, 2)}

	first, err := Encode(in)
	require.NoError(t, err)
	second, err := Encode(in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, first, in.String())

	for _, r := range first {
		assert.True(t, unicode.IsLower(r) || unicode.IsDigit(r), "unexpected rune %q", r)
	}
}

func TestDecodeToleratesWhitespaceAndCase(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	in := Ticket{Room: room, Seeds: seedAddrs(t, 1)}

	out, err := Decode("  " + strings.ToUpper(in.String()) + "\n")
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeEmptyTicket(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)

	encoded, err := Encode(Ticket{Room: room})
	require.NoError(t, err)

	_, err = Decode(encoded)
	require.ErrorIs(t, err, ErrEmptyTicket)
}

func TestDecodeMalformed(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	valid := Ticket{Room: room, Seeds: seedAddrs(t, 1)}.String()

	wrongVersion, err := codec.Marshal(wireTicket{Version: 99, Room: room[:]})
	require.NoError(t, err)
	shortRoom, err := codec.Marshal(wireTicket{Version: wireVersion, Room: []byte{1, 2, 3}})
	require.NoError(t, err)
	badSeed, err := codec.Marshal(wireTicket{
		Version: wireVersion,
		Room:    room[:],
		Seeds:   []wireSeed{{ID: []byte("not a multihash")}},
	})
	require.NoError(t, err)

	cases := map[string]string{
		"empty":         "",
		"blank":         "   ",
		"not base32":    "this is not a ticket!",
		"truncated":     valid[:len(valid)/2],
		"trailing":      valid + "aaaa",
		"wrong version": strings.ToLower(encoding.EncodeToString(wrongVersion)),
		"short room":    strings.ToLower(encoding.EncodeToString(shortRoom)),
		"bad seed id":   strings.ToLower(encoding.EncodeToString(badSeed)),
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			require.ErrorIs(t, err, ErrMalformedTicket)
		})
	}
}

func TestTextMarshaling(t *testing.T) {
	room, err := gossip.NewRoomID()
	require.NoError(t, err)
	in := Ticket{Room: room, Seeds: seedAddrs(t, 1)}

	text, err := in.MarshalText()
	require.NoError(t, err)

	var out Ticket
	require.NoError(t, out.UnmarshalText(text))
	assert.Equal(t, in, out)
}
