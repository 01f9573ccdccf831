package chat

import (
	"context"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"

	"yaprooms/internal/gossip"
	"yaprooms/internal/protocol"
)

// Session is one room the local node is subscribed to. It owns the
// room's topic handle, the names learned from AboutMe messages and the
// cancel func of the inbound loop reading the topic.
type Session struct {
	key    string
	room   gossip.RoomID
	topic  gossip.Topic
	ticket string

	namesMu sync.RWMutex
	names   map[peer.ID]string

	cancel context.CancelFunc
	done   chan struct{}
}

func newSession(key string, topic gossip.Topic, ticket string) *Session {
	return &Session{
		key:    key,
		room:   topic.Room(),
		topic:  topic,
		ticket: ticket,
		names:  make(map[peer.ID]string),
		done:   make(chan struct{}),
	}
}

// Key is the registry key of the session.
func (s *Session) Key() string { return s.key }

// Room is the room the session is subscribed to.
func (s *Session) Room() gossip.RoomID { return s.room }

// Ticket is an invitation others can use to join this room.
func (s *Session) Ticket() string { return s.ticket }

// Neighbors lists the peers currently connected on the room's topic.
func (s *Session) Neighbors() []peer.ID { return s.topic.Neighbors() }

// Name returns the announced display name of id.
func (s *Session) Name(id peer.ID) (string, bool) {
	s.namesMu.RLock()
	defer s.namesMu.RUnlock()
	name, ok := s.names[id]
	return name, ok
}

// DisplayName returns the announced name of id, or a short rendering of
// the id itself when no AboutMe has arrived yet.
func (s *Session) DisplayName(id peer.ID) string {
	if name, ok := s.Name(id); ok {
		return name
	}
	return gossip.ShortID(id)
}

// Names returns a copy of the known peer names.
func (s *Session) Names() map[peer.ID]string {
	s.namesMu.RLock()
	defer s.namesMu.RUnlock()
	out := make(map[peer.ID]string, len(s.names))
	for id, name := range s.names {
		out[id] = name
	}
	return out
}

func (s *Session) setName(id peer.ID, name string) {
	s.namesMu.Lock()
	s.names[id] = name
	s.namesMu.Unlock()
}

func (s *Session) broadcast(ctx context.Context, msg protocol.Message) error {
	return s.topic.Broadcast(ctx, protocol.Marshal(msg))
}

// start runs loop in its own goroutine under a context derived from
// parent. stop cancels that context and waits for loop to return.
func (s *Session) start(parent context.Context, loop func(context.Context, *Session)) {
	ctx, cancel := context.WithCancel(parent)
	s.cancel = cancel
	go func() {
		defer close(s.done)
		loop(ctx, s)
	}()
}

func (s *Session) stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

// Done is closed once the session's inbound loop has returned.
func (s *Session) Done() <-chan struct{} { return s.done }
