// Package protocol defines the messages peers exchange inside a room and
// their binary encoding.
//
// Message is a closed union: AboutMe and Chat are its only members. Adding
// a variant means a new Kind value and a protocol version bump, never a
// silent fallthrough on the receiving side.
package protocol

import (
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"

	"yaprooms/internal/codec"
)

// ErrMalformedMessage is returned when bytes do not decode to a known
// message.
var ErrMalformedMessage = errors.New("malformed message")

// Kind tags the message variant on the wire.
type Kind uint8

const (
	KindAboutMe Kind = 1
	KindChat    Kind = 2
)

// Message is either AboutMe or Chat.
type Message interface {
	// Author is the peer that created the message.
	Author() peer.ID
	kind() Kind
}

// AboutMe announces or updates the display name of a peer.
type AboutMe struct {
	From peer.ID
	Name string
}

func (m AboutMe) Author() peer.ID { return m.From }
func (AboutMe) kind() Kind        { return KindAboutMe }

// Chat is a line of text posted to the room.
type Chat struct {
	From peer.ID
	Text string
}

func (m Chat) Author() peer.ID { return m.From }
func (Chat) kind() Kind        { return KindChat }

type envelope struct {
	Kind Kind   `cbor:"1,keyasint"`
	From []byte `cbor:"2,keyasint"`
	Body string `cbor:"3,keyasint"`
}

// Marshal encodes m for broadcast.
func Marshal(m Message) []byte {
	env := envelope{Kind: m.kind(), From: []byte(m.Author())}
	switch v := m.(type) {
	case AboutMe:
		env.Body = v.Name
	case Chat:
		env.Body = v.Text
	}
	raw, err := codec.Marshal(env)
	if err != nil {
		// envelope holds only an integer, a byte string and a text
		// string; deterministic encoding of those cannot fail.
		panic(fmt.Sprintf("protocol: encode %T: %v", m, err))
	}
	return raw
}

// Unmarshal decodes a payload produced by Marshal. Any payload that is not
// exactly one well-formed AboutMe or Chat fails with ErrMalformedMessage.
func Unmarshal(data []byte) (Message, error) {
	var env envelope
	if err := codec.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	from, err := peer.IDFromBytes(env.From)
	if err != nil {
		return nil, fmt.Errorf("%w: sender: %v", ErrMalformedMessage, err)
	}
	switch env.Kind {
	case KindAboutMe:
		return AboutMe{From: from, Name: env.Body}, nil
	case KindChat:
		return Chat{From: from, Text: env.Body}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %d", ErrMalformedMessage, env.Kind)
	}
}
