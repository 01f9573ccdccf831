package chat

import (
	"sort"
	"sync"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
)

// Registry is the table of joined rooms and the one that is active. All
// access goes through a single mutex; callers must not hold it across
// network operations, which is why every method returns after a map
// lookup or update.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	active   string
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Insert registers s under key. An existing entry is never replaced.
func (r *Registry) Insert(key string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(key, s)
}

func (r *Registry) insertLocked(key string, s *Session) error {
	if _, exists := r.sessions[key]; exists {
		return fault.Wrap(ErrDuplicateKey,
			fmsg.WithDesc("insert "+key, "You are already in that room."))
	}
	r.sessions[key] = s
	return nil
}

// insertActive registers s and makes it the active session in one step.
func (r *Registry) insertActive(key string, s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertLocked(key, s); err != nil {
		return err
	}
	r.active = key
	return nil
}

// SetActive makes key the session that receives sends.
func (r *Registry) SetActive(key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[key]; !ok {
		return fault.Wrap(ErrUnknownKey,
			fmsg.WithDesc("select "+key, "No room named "+key+"."))
	}
	r.active = key
	return nil
}

// Active returns the active session.
func (r *Registry) Active() (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[r.active]
	if !ok {
		return nil, fault.Wrap(ErrNoActiveSession,
			fmsg.WithDesc("no active session", "Create or join a room first."))
	}
	return s, nil
}

// ActiveKey returns the key of the active session, or "" if there is none.
func (r *Registry) ActiveKey() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[r.active]; !ok {
		return ""
	}
	return r.active
}

// Get returns the session registered under key.
func (r *Registry) Get(key string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[key]
	if !ok {
		return nil, fault.Wrap(ErrUnknownKey,
			fmsg.WithDesc("get "+key, "No room named "+key+"."))
	}
	return s, nil
}

// Contains reports whether key is registered.
func (r *Registry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[key]
	return ok
}

// Keys returns every registered key in sorted order.
func (r *Registry) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.sessions))
	for key := range r.sessions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// drain removes and returns every session.
func (r *Registry) drain() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	r.sessions = make(map[string]*Session)
	r.active = ""
	return out
}
