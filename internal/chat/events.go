package chat

import (
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
)

// EventKind names a presentation event.
type EventKind string

const (
	// EventConnected follows every successful create or join.
	EventConnected EventKind = "connected"
	// EventNewTopic announces a newly registered room. Ticket is set so
	// the user can share the invitation.
	EventNewTopic EventKind = "new_topic"
	// EventMessage is a chat line, either received or echoed locally.
	EventMessage EventKind = "message"
	// EventPeerRenamed reports an AboutMe from a peer.
	EventPeerRenamed EventKind = "peer_renamed"
	// EventTopicClosed reports that a room's inbound stream ended on its
	// own, without the service shutting down.
	EventTopicClosed EventKind = "topic_closed"
)

// Event is delivered to the presenter. Topic is the registry key of the
// room the event belongs to.
type Event struct {
	Kind   EventKind
	Topic  string
	Sender string
	Peer   peer.ID
	Text   string
	Ticket string
	Self   bool
	At     time.Time
}

// LocalSender is the display name used for the local echo of sent lines.
const LocalSender = "me"

// Presenter receives presentation events. Present is called from the
// inbound loops and from command handlers, so implementations must be
// safe for concurrent use and must not block for long.
type Presenter interface {
	Present(Event)
}

// PresenterFunc adapts a function to Presenter.
type PresenterFunc func(Event)

func (f PresenterFunc) Present(ev Event) { f(ev) }

type nopPresenter struct{}

func (nopPresenter) Present(Event) {}
