package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	petname "github.com/dustinkirkland/golang-petname"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fctx"
	"github.com/Southclaws/fault/fmsg"

	"yaprooms/internal/gossip"
	"yaprooms/internal/protocol"
	"yaprooms/internal/ticket"
)

const (
	defaultJoinTimeout = 30 * time.Second
	keyAttempts        = 8
	petnameWords       = 7
)

// Options configures a Service. Network is required.
type Options struct {
	Network     gossip.Network
	Presenter   Presenter
	Logger      zerolog.Logger
	Registry    *Registry
	KeyFunc     func() string
	JoinTimeout time.Duration
	Now         func() time.Time
}

// Service is the command surface: it creates and joins rooms, sends to
// the active room and switches between rooms. Each joined room gets its
// own inbound loop.
type Service struct {
	net         gossip.Network
	presenter   Presenter
	log         zerolog.Logger
	registry    *Registry
	keyFunc     func() string
	joinTimeout time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

// Joined describes the room a CreateOrJoin call ended up in.
type Joined struct {
	Key     string
	Room    gossip.RoomID
	Ticket  string
	Created bool
}

// TopicInfo summarizes a registered room.
type TopicInfo struct {
	Key       string `json:"key"`
	Room      string `json:"room"`
	Active    bool   `json:"active"`
	Neighbors int    `json:"neighbors"`
	Ticket    string `json:"ticket"`
}

func NewService(opts Options) *Service {
	if opts.Presenter == nil {
		opts.Presenter = nopPresenter{}
	}
	if opts.Registry == nil {
		opts.Registry = NewRegistry()
	}
	if opts.KeyFunc == nil {
		opts.KeyFunc = func() string { return petname.Generate(petnameWords, ":") }
	}
	if opts.JoinTimeout <= 0 {
		opts.JoinTimeout = defaultJoinTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		net:         opts.Network,
		presenter:   opts.Presenter,
		log:         opts.Logger.With().Str("component", "chat").Logger(),
		registry:    opts.Registry,
		keyFunc:     opts.KeyFunc,
		joinTimeout: opts.JoinTimeout,
		now:         opts.Now,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Registry exposes the session table.
func (s *Service) Registry() *Registry { return s.registry }

// CreateOrJoin creates a new room when rawTicket is blank and joins the
// room named by the ticket otherwise. On success the room is registered,
// made active and its inbound loop is running. On failure the registry
// is left unchanged.
func (s *Service) CreateOrJoin(ctx context.Context, username, rawTicket string) (Joined, error) {
	if err := s.ctx.Err(); err != nil {
		return Joined{}, transportError(ctx, gossip.ErrClosed, "service closed", "The chat service is shutting down.")
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = gossip.ShortID(s.net.ID())
	}
	if strings.TrimSpace(rawTicket) == "" {
		return s.CreateRoom(ctx, username)
	}
	t, err := ticket.Decode(rawTicket)
	if err != nil {
		return Joined{}, fault.Wrap(err, fctx.With(ctx))
	}
	return s.JoinRoom(ctx, username, t)
}

// CreateRoom subscribes to a fresh room with no bootstrap peers and
// returns a ticket that seeds only the local peer.
func (s *Service) CreateRoom(ctx context.Context, username string) (Joined, error) {
	key, err := s.newKey()
	if err != nil {
		return Joined{}, err
	}
	room, err := gossip.NewRoomID()
	if err != nil {
		return Joined{}, fault.Wrap(err, fctx.With(ctx), fmsg.WithDesc("room id", "Could not create a room."))
	}
	log := s.log.With().Str("key", key).Stringer("room", room).Logger()
	log.Debug().Msg("creating room")

	local, err := s.net.Addr(ctx)
	if err != nil {
		return Joined{}, transportError(ctx, err, "local address", "Could not determine this node's address.")
	}
	invite, err := ticket.Encode(ticket.Ticket{Room: room, Seeds: []gossip.PeerAddr{local}})
	if err != nil {
		return Joined{}, fault.Wrap(err, fctx.With(ctx))
	}

	topic, err := s.net.Subscribe(ctx, room, nil)
	if err != nil {
		return Joined{}, transportError(ctx, err, "subscribe", "Could not open the room.")
	}
	sess := newSession(key, topic, invite)
	if err := s.activate(ctx, sess, username); err != nil {
		return Joined{}, err
	}
	log.Info().Msg("room created")
	return Joined{Key: key, Room: room, Ticket: invite, Created: true}, nil
}

// JoinRoom registers every seed address with the network, subscribes to
// the ticket's room through the seeds and waits for a first neighbor.
func (s *Service) JoinRoom(ctx context.Context, username string, t ticket.Ticket) (Joined, error) {
	if len(t.Seeds) == 0 {
		return Joined{}, fault.Wrap(ErrEmptyTicket, fctx.With(ctx))
	}
	key := t.Room.String()
	if s.registry.Contains(key) {
		return Joined{}, fault.Wrap(ErrDuplicateKey, fctx.With(ctx),
			fmsg.WithDesc("join "+key, "You are already in that room."))
	}
	log := s.log.With().Str("key", key).Int("seeds", len(t.Seeds)).Logger()
	log.Debug().Msg("joining room")

	for _, seed := range t.Seeds {
		if seed.ID == s.net.ID() {
			continue
		}
		if err := s.net.AddPeerAddr(seed); err != nil {
			return Joined{}, transportError(ctx, err, "register "+gossip.ShortID(seed.ID), "Could not use a peer address from the ticket.")
		}
	}
	bootstrap := lo.Reject(gossip.PeerIDs(t.Seeds), func(id peer.ID, _ int) bool { return id == s.net.ID() })

	joinCtx, cancel := context.WithTimeout(ctx, s.joinTimeout)
	defer cancel()
	topic, err := s.net.SubscribeAndJoin(joinCtx, t.Room, bootstrap)
	if err != nil {
		return Joined{}, transportError(ctx, err, "join", "Could not reach any peer in the room.")
	}

	invite, err := ticket.Encode(t)
	if err != nil {
		_ = topic.Close()
		return Joined{}, fault.Wrap(err, fctx.With(ctx))
	}
	sess := newSession(key, topic, invite)
	if err := s.activate(ctx, sess, username); err != nil {
		return Joined{}, err
	}
	log.Info().Int("neighbors", len(topic.Neighbors())).Msg("room joined")
	return Joined{Key: key, Room: t.Room, Ticket: invite}, nil
}

// activate announces the local name, registers sess as active and starts
// its inbound loop. The topic is closed on any failure.
func (s *Service) activate(ctx context.Context, sess *Session, username string) error {
	about := protocol.AboutMe{From: s.net.ID(), Name: username}
	if err := sess.broadcast(ctx, about); err != nil {
		_ = sess.topic.Close()
		return transportError(ctx, err, "announce", "Could not announce you to the room.")
	}
	if err := s.registry.insertActive(sess.key, sess); err != nil {
		_ = sess.topic.Close()
		return fault.Wrap(err, fctx.With(ctx))
	}
	sess.start(s.ctx, s.receive)

	at := s.now()
	s.presenter.Present(Event{Kind: EventConnected, Topic: sess.key, At: at})
	s.presenter.Present(Event{Kind: EventNewTopic, Topic: sess.key, Ticket: sess.ticket, At: at})
	return nil
}

func (s *Service) newKey() (string, error) {
	for range keyAttempts {
		key := s.keyFunc()
		if !s.registry.Contains(key) {
			return key, nil
		}
	}
	return "", fault.Wrap(ErrDuplicateKey,
		fmsg.WithDesc("generate key", "Could not pick a unique room name, try again."))
}

// Send broadcasts text as a chat line to the active room and echoes it
// locally once the broadcast succeeded.
func (s *Service) Send(ctx context.Context, text string) error {
	sess, err := s.registry.Active()
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if err := sess.broadcast(ctx, protocol.Chat{From: s.net.ID(), Text: text}); err != nil {
		s.log.Warn().Err(err).Str("key", sess.key).Msg("broadcast failed")
		return transportError(ctx, err, "broadcast", "Message not sent, the network is unavailable.")
	}
	s.presenter.Present(Event{
		Kind:   EventMessage,
		Topic:  sess.key,
		Sender: LocalSender,
		Peer:   s.net.ID(),
		Text:   text,
		Self:   true,
		At:     s.now(),
	})
	return nil
}

// SelectTopic makes key the active room.
func (s *Service) SelectTopic(key string) (*Session, error) {
	if err := s.registry.SetActive(key); err != nil {
		return nil, err
	}
	return s.registry.Get(key)
}

// Active returns the active session.
func (s *Service) Active() (*Session, error) { return s.registry.Active() }

// Topics summarizes every registered room, sorted by key.
func (s *Service) Topics() []TopicInfo {
	active := s.registry.ActiveKey()
	keys := s.registry.Keys()
	out := make([]TopicInfo, 0, len(keys))
	for _, key := range keys {
		sess, err := s.registry.Get(key)
		if err != nil {
			continue
		}
		out = append(out, TopicInfo{
			Key:       key,
			Room:      sess.room.String(),
			Active:    key == active,
			Neighbors: len(sess.Neighbors()),
			Ticket:    sess.ticket,
		})
	}
	return out
}

// Close stops every inbound loop, closes every topic and empties the
// registry.
func (s *Service) Close() error {
	s.cancel()
	var firstErr error
	for _, sess := range s.registry.drain() {
		sess.stop()
		if err := sess.topic.Close(); err != nil && !errors.Is(err, gossip.ErrClosed) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
