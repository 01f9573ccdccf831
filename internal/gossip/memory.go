package gossip

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dboslee/lru"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/zeebo/blake3"
)

const (
	memoryQueueSize = 256
	memorySeenSize  = 4096
)

// Compile-time interface checks.
var (
	_ Network = (*MemoryNode)(nil)
	_ Topic   = (*memoryTopic)(nil)
)

// MemoryHub is the shared medium for MemoryNodes. Nodes attached to the
// same hub can reach each other once their addresses are registered.
// Payloads flood across neighbor links and every topic drops messages it
// has already seen, so delivery behaves like a gossip mesh.
type MemoryHub struct {
	mu    sync.Mutex
	nodes map[peer.ID]*MemoryNode
	rooms map[RoomID]map[peer.ID]*memoryTopic
}

func NewMemoryHub() *MemoryHub {
	return &MemoryHub{
		nodes: make(map[peer.ID]*MemoryNode),
		rooms: make(map[RoomID]map[peer.ID]*memoryTopic),
	}
}

// MemoryFaults injects failures into a MemoryNode. A nil field means the
// operation behaves normally.
type MemoryFaults struct {
	Addr        error
	AddPeerAddr error
	Subscribe   error
	Broadcast   error
}

// MemoryNode is an in-process Network attached to a MemoryHub.
type MemoryNode struct {
	hub *MemoryHub
	id  peer.ID

	mu     sync.Mutex
	known  map[peer.ID]PeerAddr
	faults MemoryFaults
}

// NewMemoryNode creates a node with a fresh Ed25519 identity and attaches
// it to hub.
func (h *MemoryHub) NewMemoryNode() (*MemoryNode, error) {
	_, pub, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	id, err := peer.IDFromPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("derive peer id: %w", err)
	}
	node := &MemoryNode{
		hub:   h,
		id:    id,
		known: make(map[peer.ID]PeerAddr),
	}
	h.mu.Lock()
	h.nodes[id] = node
	h.mu.Unlock()
	return node, nil
}

// SetFaults replaces the node's injected failures.
func (n *MemoryNode) SetFaults(f MemoryFaults) {
	n.mu.Lock()
	n.faults = f
	n.mu.Unlock()
}

func (n *MemoryNode) currentFaults() MemoryFaults {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.faults
}

func (n *MemoryNode) ID() peer.ID {
	return n.id
}

func (n *MemoryNode) Addr(context.Context) (PeerAddr, error) {
	if err := n.currentFaults().Addr; err != nil {
		return PeerAddr{}, err
	}
	return PeerAddr{ID: n.id, Addrs: []string{"/memory/" + n.id.String()}}, nil
}

func (n *MemoryNode) AddPeerAddr(addr PeerAddr) error {
	if err := n.currentFaults().AddPeerAddr; err != nil {
		return err
	}
	if err := addr.Validate(); err != nil {
		return err
	}
	if addr.ID == n.id {
		return nil
	}
	n.mu.Lock()
	n.known[addr.ID] = addr
	n.mu.Unlock()
	return nil
}

// KnownPeers reports which peer addresses have been registered.
func (n *MemoryNode) KnownPeers() []peer.ID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]peer.ID, 0, len(n.known))
	for id := range n.known {
		out = append(out, id)
	}
	return out
}

func (n *MemoryNode) isKnown(id peer.ID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.known[id]
	return ok
}

func (n *MemoryNode) Subscribe(ctx context.Context, room RoomID, bootstrap []peer.ID) (Topic, error) {
	t, _, err := n.subscribe(ctx, room, bootstrap)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (n *MemoryNode) SubscribeAndJoin(ctx context.Context, room RoomID, bootstrap []peer.ID) (Topic, error) {
	t, linked, err := n.subscribe(ctx, room, bootstrap)
	if err != nil {
		return nil, err
	}
	if linked == 0 {
		_ = t.Close()
		return nil, ErrUnreachable
	}
	return t, nil
}

func (n *MemoryNode) subscribe(ctx context.Context, room RoomID, bootstrap []peer.ID) (*memoryTopic, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := n.currentFaults().Subscribe; err != nil {
		return nil, 0, err
	}

	t := &memoryTopic{
		node:   n,
		room:   room,
		roster: NewRoster(n.id),
		seen:   lru.New[string, struct{}](lru.WithCapacity(memorySeenSize)),
		events: make(chan Event, memoryQueueSize),
		closed: make(chan struct{}),
	}

	h := n.hub
	h.mu.Lock()
	members := h.rooms[room]
	if members == nil {
		members = make(map[peer.ID]*memoryTopic)
		h.rooms[room] = members
	}
	if _, exists := members[n.id]; exists {
		h.mu.Unlock()
		return nil, 0, ErrAlreadySubscribed
	}
	members[n.id] = t

	var peers []*memoryTopic
	for _, id := range bootstrap {
		if id == n.id || !n.isKnown(id) {
			continue
		}
		if other, ok := members[id]; ok {
			peers = append(peers, other)
		}
	}
	h.mu.Unlock()

	linked := 0
	for _, other := range peers {
		if t.roster.Up(other.node.id) {
			t.push(Event{Kind: NeighborUp, Peer: other.node.id})
		}
		if other.roster.Up(n.id) {
			other.push(Event{Kind: NeighborUp, Peer: n.id})
		}
		linked++
	}
	return t, linked, nil
}

type memoryTopic struct {
	node   *MemoryNode
	room   RoomID
	roster *Roster
	events chan Event
	seq    atomic.Uint64

	seenMu sync.Mutex
	seen   *lru.Cache[string, struct{}]

	closeOnce sync.Once
	closed    chan struct{}
}

func (t *memoryTopic) Room() RoomID {
	return t.room
}

func (t *memoryTopic) Neighbors() []peer.ID {
	return t.roster.List()
}

func (t *memoryTopic) Broadcast(ctx context.Context, payload []byte) error {
	select {
	case <-t.closed:
		return ErrClosed
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := t.node.currentFaults().Broadcast; err != nil {
		return err
	}

	id := t.messageID(payload)
	t.markSeen(id)
	data := append([]byte(nil), payload...)
	t.forward(id, data, "")
	return nil
}

// messageID derives a unique id for an outbound payload from the author,
// a per-topic sequence number and the content.
func (t *memoryTopic) messageID(payload []byte) string {
	var seq [8]byte
	binary.BigEndian.PutUint64(seq[:], t.seq.Add(1))
	h := blake3.New()
	_, _ = h.Write([]byte(t.node.id))
	_, _ = h.Write(seq[:])
	_, _ = h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// forward relays a payload to every neighbor except the one it came from.
func (t *memoryTopic) forward(id string, payload []byte, from peer.ID) {
	for _, target := range t.neighborTopics(from) {
		target.receive(id, payload, t.node.id)
	}
}

func (t *memoryTopic) neighborTopics(exclude peer.ID) []*memoryTopic {
	h := t.node.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.rooms[t.room]
	var out []*memoryTopic
	for _, id := range t.roster.List() {
		if id == exclude {
			continue
		}
		if other, ok := members[id]; ok {
			out = append(out, other)
		}
	}
	return out
}

func (t *memoryTopic) receive(id string, payload []byte, from peer.ID) {
	if !t.markSeen(id) {
		return
	}
	if !t.push(Event{Kind: Received, Peer: from, Content: payload}) {
		return
	}
	t.forward(id, payload, from)
}

// markSeen records id and reports whether it was new.
func (t *memoryTopic) markSeen(id string) bool {
	t.seenMu.Lock()
	defer t.seenMu.Unlock()
	if _, ok := t.seen.Get(id); ok {
		return false
	}
	t.seen.Set(id, struct{}{})
	return true
}

// push queues an event for Next. It reports false once the topic is closed.
func (t *memoryTopic) push(ev Event) bool {
	select {
	case <-t.closed:
		return false
	default:
	}
	select {
	case t.events <- ev:
		return true
	case <-t.closed:
		return false
	}
}

func (t *memoryTopic) Next(ctx context.Context) (Event, error) {
	select {
	case ev := <-t.events:
		return ev, nil
	case <-t.closed:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (t *memoryTopic) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)

		h := t.node.hub
		h.mu.Lock()
		members := h.rooms[t.room]
		if members[t.node.id] == t {
			delete(members, t.node.id)
		}
		if len(members) == 0 {
			delete(h.rooms, t.room)
		}
		var neighbors []*memoryTopic
		for _, id := range t.roster.List() {
			if other, ok := members[id]; ok {
				neighbors = append(neighbors, other)
			}
		}
		h.mu.Unlock()

		for _, other := range neighbors {
			if other.roster.Down(t.node.id) {
				other.push(Event{Kind: NeighborDown, Peer: t.node.id})
			}
		}
	})
	return nil
}
