package p2p

import (
	"context"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/zeebo/blake3"

	"yaprooms/internal/gossip"
)

var _ gossip.Network = (*Node)(nil)

// Config controls how a Node is started.
type Config struct {
	// ListenAddrs are multiaddrs to listen on. Empty means libp2p's
	// defaults.
	ListenAddrs []string
	// KeyFile holds the node identity. Empty means an ephemeral identity.
	KeyFile string
	Logger  zerolog.Logger
}

// Node is a libp2p host running gossipsub. Every room maps to one
// gossipsub topic.
type Node struct {
	host host.Host
	ps   *pubsub.PubSub
	log  zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	topics map[gossip.RoomID]*topic
}

// NewNode starts a libp2p host with the configured identity and listen
// addresses and attaches a gossipsub router to it.
func NewNode(ctx context.Context, cfg Config) (*Node, error) {
	key, err := LoadOrCreateKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	opts := []libp2p.Option{libp2p.Identity(key)}
	if len(cfg.ListenAddrs) > 0 {
		opts = append(opts, libp2p.ListenAddrStrings(cfg.ListenAddrs...))
	}
	h, err := libp2p.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("start host: %w", err)
	}

	nctx, cancel := context.WithCancel(ctx)
	ps, err := pubsub.NewGossipSub(nctx, h, pubsub.WithMessageIdFn(messageID))
	if err != nil {
		cancel()
		_ = h.Close()
		return nil, fmt.Errorf("start gossipsub: %w", err)
	}

	n := &Node{
		host:   h,
		ps:     ps,
		log:    cfg.Logger.With().Str("component", "p2p").Logger(),
		ctx:    nctx,
		cancel: cancel,
		topics: make(map[gossip.RoomID]*topic),
	}
	n.log.Info().
		Str("peer", h.ID().String()).
		Strs("addrs", multiaddrStrings(h.Addrs())).
		Msg("node started")
	return n, nil
}

// messageID derives gossipsub message ids from the author, sequence
// number and payload.
func messageID(m *pb.Message) string {
	h := blake3.New()
	_, _ = h.Write(m.GetFrom())
	_, _ = h.Write(m.GetSeqno())
	_, _ = h.Write(m.GetData())
	return string(h.Sum(nil))
}

func multiaddrStrings(addrs []ma.Multiaddr) []string {
	return lo.Map(addrs, func(a ma.Multiaddr, _ int) string { return a.String() })
}

func (n *Node) ID() peer.ID {
	return n.host.ID()
}

func (n *Node) Addr(ctx context.Context) (gossip.PeerAddr, error) {
	if err := ctx.Err(); err != nil {
		return gossip.PeerAddr{}, err
	}
	addrs := n.host.Addrs()
	if len(addrs) == 0 {
		return gossip.PeerAddr{}, fmt.Errorf("node has no listen addresses")
	}
	return gossip.PeerAddr{ID: n.host.ID(), Addrs: multiaddrStrings(addrs)}, nil
}

func (n *Node) AddPeerAddr(addr gossip.PeerAddr) error {
	if err := addr.Validate(); err != nil {
		return err
	}
	if addr.ID == n.host.ID() {
		return nil
	}
	mas := make([]ma.Multiaddr, 0, len(addr.Addrs))
	for _, s := range addr.Addrs {
		m, err := ma.NewMultiaddr(s)
		if err != nil {
			return fmt.Errorf("parse address %q: %w", s, err)
		}
		mas = append(mas, m)
	}
	n.host.Peerstore().AddAddrs(addr.ID, mas, peerstore.PermanentAddrTTL)
	return nil
}

func (n *Node) Subscribe(ctx context.Context, room gossip.RoomID, bootstrap []peer.ID) (gossip.Topic, error) {
	t, err := n.join(room)
	if err != nil {
		return nil, err
	}
	go func() {
		if connected := n.dial(n.ctx, bootstrap); connected < len(bootstrap) {
			n.log.Debug().Stringer("room", room).
				Int("connected", connected).Int("bootstrap", len(bootstrap)).
				Msg("some bootstrap peers unreachable")
		}
	}()
	return t, nil
}

func (n *Node) SubscribeAndJoin(ctx context.Context, room gossip.RoomID, bootstrap []peer.ID) (gossip.Topic, error) {
	t, err := n.join(room)
	if err != nil {
		return nil, err
	}
	if n.dial(ctx, bootstrap) == 0 {
		_ = t.Close()
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, gossip.ErrUnreachable
	}
	select {
	case <-t.joined:
		return t, nil
	case <-ctx.Done():
		_ = t.Close()
		return nil, ctx.Err()
	}
}

// dial connects to every bootstrap peer concurrently and returns how many
// connections succeeded.
func (n *Node) dial(ctx context.Context, bootstrap []peer.ID) int {
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		connected int
	)
	for _, id := range bootstrap {
		if id == n.host.ID() {
			continue
		}
		wg.Add(1)
		go func(id peer.ID) {
			defer wg.Done()
			err := n.host.Connect(ctx, peer.AddrInfo{ID: id})
			if err != nil {
				n.log.Debug().Err(err).Str("peer", gossip.ShortID(id)).Msg("dial failed")
				return
			}
			mu.Lock()
			connected++
			mu.Unlock()
		}(id)
	}
	wg.Wait()
	return connected
}

func (n *Node) join(room gossip.RoomID) (*topic, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.topics[room]; exists {
		return nil, gossip.ErrAlreadySubscribed
	}
	pt, err := n.ps.Join(room.TopicName())
	if err != nil {
		return nil, fmt.Errorf("join topic: %w", err)
	}
	t, err := newTopic(n, room, pt)
	if err != nil {
		_ = pt.Close()
		return nil, err
	}
	n.topics[room] = t
	return t, nil
}

func (n *Node) forget(room gossip.RoomID) {
	n.mu.Lock()
	delete(n.topics, room)
	n.mu.Unlock()
}

// Close leaves every topic and shuts the host down.
func (n *Node) Close() error {
	n.mu.Lock()
	topics := lo.Values(n.topics)
	n.mu.Unlock()
	for _, t := range topics {
		_ = t.Close()
	}
	n.cancel()
	return n.host.Close()
}
