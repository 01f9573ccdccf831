// Package gossip defines the contract between the chat core and the
// peer-to-peer messaging substrate: room identifiers, dialable peer
// addresses, the Network/Topic interfaces and the events a topic delivers.
//
// The production substrate lives in internal/p2p. MemoryNetwork in this
// package is an in-process implementation for tests: nodes attached to
// the same hub can subscribe to rooms and gossip without any sockets.
package gossip

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"
)

// RoomIDSize is the length of a RoomID in bytes.
const RoomIDSize = 32

// RoomID identifies a chat room on the substrate.
type RoomID [RoomIDSize]byte

// NewRoomID draws a fresh room identifier from the system CSPRNG.
func NewRoomID() (RoomID, error) {
	var id RoomID
	if _, err := rand.Read(id[:]); err != nil {
		return RoomID{}, fmt.Errorf("generate room id: %w", err)
	}
	return id, nil
}

// RoomIDFromBytes copies b into a RoomID. b must be exactly RoomIDSize long.
func RoomIDFromBytes(b []byte) (RoomID, error) {
	var id RoomID
	if len(b) != RoomIDSize {
		return RoomID{}, fmt.Errorf("room id must be %d bytes, got %d", RoomIDSize, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseRoomID parses the canonical string form produced by String.
func ParseRoomID(s string) (RoomID, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return RoomID{}, fmt.Errorf("parse room id: %w", err)
	}
	return RoomIDFromBytes(raw)
}

// String returns the canonical lowercase hex form of the id.
func (id RoomID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero value.
func (id RoomID) IsZero() bool {
	return id == RoomID{}
}

// TopicName is the pubsub topic a room is published under.
func (id RoomID) TopicName() string {
	return "/yap/room/" + id.String()
}

// PeerAddr bundles a peer id with the multiaddrs it can be dialed on.
type PeerAddr struct {
	ID    peer.ID
	Addrs []string
}

// Validate checks that the address names a well-formed peer id.
func (a PeerAddr) Validate() error {
	if a.ID == "" {
		return errors.New("peer address has no id")
	}
	return a.ID.Validate()
}

// PeerIDs projects the ids out of a list of addresses, preserving order.
func PeerIDs(addrs []PeerAddr) []peer.ID {
	ids := make([]peer.ID, 0, len(addrs))
	for _, addr := range addrs {
		ids = append(ids, addr.ID)
	}
	return ids
}

// ShortID renders a compact, stable label for a peer whose display name is
// not known yet.
func ShortID(id peer.ID) string {
	s := id.String()
	if len(s) <= 10 {
		return s
	}
	return s[len(s)-10:]
}
