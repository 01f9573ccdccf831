// Package ticket encodes room invitations. A ticket names a room and the
// peers a newcomer can dial to reach it, and travels as a single
// lowercase base32 token that survives copy and paste.
package ticket

import (
	"encoding/base32"
	"errors"
	"fmt"
	"strings"

	"github.com/libp2p/go-libp2p/core/peer"

	"yaprooms/internal/codec"
	"yaprooms/internal/gossip"
)

var (
	// ErrMalformedTicket is returned when a string is not a valid ticket
	// encoding.
	ErrMalformedTicket = errors.New("malformed ticket")

	// ErrEmptyTicket is returned when a ticket names no seed peers.
	ErrEmptyTicket = errors.New("ticket has no peers to join through")
)

// wireVersion is bumped on any incompatible change to the wire layout.
const wireVersion = 1

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Ticket is an invitation to a room.
type Ticket struct {
	Room  gossip.RoomID
	Seeds []gossip.PeerAddr
}

type wireTicket struct {
	Version uint       `cbor:"1,keyasint"`
	Room    []byte     `cbor:"2,keyasint"`
	Seeds   []wireSeed `cbor:"3,keyasint"`
}

type wireSeed struct {
	ID    []byte   `cbor:"1,keyasint"`
	Addrs []string `cbor:"2,keyasint,omitempty"`
}

// Encode renders t as a compact token. The output is deterministic and
// contains only the characters [a-z2-7].
func Encode(t Ticket) (string, error) {
	w := wireTicket{
		Version: wireVersion,
		Room:    t.Room[:],
		Seeds:   make([]wireSeed, 0, len(t.Seeds)),
	}
	for _, seed := range t.Seeds {
		w.Seeds = append(w.Seeds, wireSeed{ID: []byte(seed.ID), Addrs: seed.Addrs})
	}
	raw, err := codec.Marshal(w)
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(raw)), nil
}

// String returns the encoded form of t, or an empty string if t cannot be
// encoded.
func (t Ticket) String() string {
	s, err := Encode(t)
	if err != nil {
		return ""
	}
	return s
}

// Decode parses a token produced by Encode. Surrounding whitespace is
// ignored and the token is case-insensitive. Decoding fails with
// ErrMalformedTicket for anything that is not a valid encoding and with
// ErrEmptyTicket for a well-formed ticket without seeds.
func Decode(s string) (Ticket, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Ticket{}, fmt.Errorf("%w: empty input", ErrMalformedTicket)
	}

	raw, err := encoding.DecodeString(strings.ToUpper(trimmed))
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}

	var w wireTicket
	if err := codec.Unmarshal(raw, &w); err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}
	if w.Version != wireVersion {
		return Ticket{}, fmt.Errorf("%w: unsupported version %d", ErrMalformedTicket, w.Version)
	}

	room, err := gossip.RoomIDFromBytes(w.Room)
	if err != nil {
		return Ticket{}, fmt.Errorf("%w: %v", ErrMalformedTicket, err)
	}

	t := Ticket{Room: room}
	for i, seed := range w.Seeds {
		id, err := peer.IDFromBytes(seed.ID)
		if err != nil {
			return Ticket{}, fmt.Errorf("%w: seed %d: %v", ErrMalformedTicket, i, err)
		}
		t.Seeds = append(t.Seeds, gossip.PeerAddr{ID: id, Addrs: seed.Addrs})
	}
	if len(t.Seeds) == 0 {
		return Ticket{}, ErrEmptyTicket
	}
	return t, nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Ticket) MarshalText() ([]byte, error) {
	s, err := Encode(t)
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Ticket) UnmarshalText(text []byte) error {
	decoded, err := Decode(string(text))
	if err != nil {
		return err
	}
	*t = decoded
	return nil
}
