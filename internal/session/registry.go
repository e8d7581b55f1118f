package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
)

var (
	ErrNotFound  = errors.New("session not found")
	ErrFinalized = errors.New("session already finalized")
)

// Registry owns every session in the process. It is the only state shared
// across sessions; its lock covers just the id lookups so a slow session
// never blocks another.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*State
	byBot    map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: map[string]*State{},
		byBot:    map[string]string{},
	}
}

// Create initializes a fresh session (empty log, facts, intents, summary)
// before it becomes visible to any lookup.
func (r *Registry) Create() *State {
	st := newState(newSessionID())

	r.mu.Lock()
	r.sessions[st.ID()] = st
	r.mu.Unlock()

	return st
}

func (r *Registry) Get(id string) (*State, error) {
	r.mu.RLock()
	st, ok := r.sessions[strings.TrimSpace(id)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

// BindBot maps a platform bot id to a session so webhook events that carry
// only a bot id can be routed.
func (r *Registry) BindBot(botID string, st *State) {
	botID = strings.TrimSpace(botID)
	if botID == "" || st == nil {
		return
	}

	r.mu.Lock()
	r.byBot[botID] = st.ID()
	r.mu.Unlock()

	st.Lock()
	st.SetBotID(botID)
	st.Unlock()
}

func (r *Registry) ResolveBot(botID string) (*State, error) {
	r.mu.RLock()
	id, ok := r.byBot[strings.TrimSpace(botID)]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return r.Get(id)
}

// Count reports the number of live sessions (finalized sessions included;
// they stay readable until shutdown).
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func newSessionID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; keep the id
		// non-empty anyway.
		return "ms-00000000"
	}
	return "ms-" + hex.EncodeToString(b[:])
}
