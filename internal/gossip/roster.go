package gossip

import (
	"sort"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/puzpuzpuz/xsync/v4"
)

// Neighbor is a peer currently in the local view of a topic.
type Neighbor struct {
	ID    peer.ID
	Since time.Time
}

// Roster tracks the neighbors of one topic as reported by NeighborUp and
// NeighborDown events. The local peer is never recorded.
type Roster struct {
	local   peer.ID
	members *xsync.Map[peer.ID, Neighbor]
	now     func() time.Time
}

func NewRoster(local peer.ID) *Roster {
	return &Roster{
		local:   local,
		members: xsync.NewMap[peer.ID, Neighbor](),
		now:     time.Now,
	}
}

// Up records id as a neighbor. It reports whether id was newly added.
func (r *Roster) Up(id peer.ID) bool {
	if id == "" || id == r.local {
		return false
	}
	_, loaded := r.members.LoadOrStore(id, Neighbor{ID: id, Since: r.now()})
	return !loaded
}

// Down forgets id. It reports whether id was a neighbor.
func (r *Roster) Down(id peer.ID) bool {
	if id == "" || id == r.local {
		return false
	}
	_, existed := r.members.LoadAndDelete(id)
	return existed
}

// Apply updates the roster from a topic event and reports whether it
// changed. Received events leave the roster untouched.
func (r *Roster) Apply(ev Event) bool {
	switch ev.Kind {
	case NeighborUp:
		return r.Up(ev.Peer)
	case NeighborDown:
		return r.Down(ev.Peer)
	default:
		return false
	}
}

// Has reports whether id is a current neighbor.
func (r *Roster) Has(id peer.ID) bool {
	_, ok := r.members.Load(id)
	return ok
}

// Len returns the number of current neighbors.
func (r *Roster) Len() int {
	return r.members.Size()
}

// List returns the current neighbor ids sorted for stable display.
func (r *Roster) List() []peer.ID {
	out := make([]peer.ID, 0, r.members.Size())
	r.members.Range(func(id peer.ID, _ Neighbor) bool {
		out = append(out, id)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Snapshot returns the current neighbors with the time they came up,
// oldest first.
func (r *Roster) Snapshot() []Neighbor {
	out := make([]Neighbor, 0, r.members.Size())
	r.members.Range(func(_ peer.ID, n Neighbor) bool {
		out = append(out, n)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Since.Equal(out[j].Since) {
			return out[i].ID < out[j].ID
		}
		return out[i].Since.Before(out[j].Since)
	})
	return out
}
