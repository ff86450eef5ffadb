package services

import (
	"sort"
	"sync"
)

const presenceShardCount = 16

// presenceShard guards a slice of the presentation space so that unrelated
// presentations never contend on the same lock
type presenceShard struct {
	mu      sync.RWMutex
	entries map[int]map[string]string // presentationID -> username -> connectionID
}

// PresenceRegistry tracks which users are currently connected to which
// presentation. Entries are ephemeral: they exist only for the lifetime of
// a connection and are removed on explicit leave or detected disconnect,
// never by staleness.
type PresenceRegistry struct {
	shards [presenceShardCount]*presenceShard
}

// NewPresenceRegistry creates an empty registry
func NewPresenceRegistry() *PresenceRegistry {
	r := &PresenceRegistry{}
	for i := range r.shards {
		r.shards[i] = &presenceShard{
			entries: make(map[int]map[string]string),
		}
	}
	return r
}

func (r *PresenceRegistry) shard(presentationID int) *presenceShard {
	if presentationID < 0 {
		presentationID = -presentationID
	}
	return r.shards[presentationID%presenceShardCount]
}

// Join registers a user on a presentation. It returns true if the user was
// newly added and false if the username was already present; a duplicate
// join makes no change (idempotent registration).
func (r *PresenceRegistry) Join(presentationID int, username, connectionID string) bool {
	s := r.shard(presentationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.entries[presentationID]
	if !ok {
		users = make(map[string]string)
		s.entries[presentationID] = users
	}

	if _, exists := users[username]; exists {
		return false
	}

	users[username] = connectionID
	return true
}

// Leave removes a user's presence entry if it exists; no-op otherwise
func (r *PresenceRegistry) Leave(presentationID int, username string) {
	s := r.shard(presentationID)
	s.mu.Lock()
	defer s.mu.Unlock()

	users, ok := s.entries[presentationID]
	if !ok {
		return
	}

	delete(users, username)
	if len(users) == 0 {
		delete(s.entries, presentationID)
	}
}

// List returns the usernames currently present on a presentation, sorted
// for a deterministic snapshot order
func (r *PresenceRegistry) List(presentationID int) []string {
	s := r.shard(presentationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.entries[presentationID]
	names := make([]string, 0, len(users))
	for username := range users {
		names = append(names, username)
	}
	sort.Strings(names)
	return names
}

// ConnectionID returns the connection currently registered for a user on a
// presentation, if any
func (r *PresenceRegistry) ConnectionID(presentationID int, username string) (string, bool) {
	s := r.shard(presentationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, ok := s.entries[presentationID]
	if !ok {
		return "", false
	}
	connID, ok := users[username]
	return connID, ok
}

// Count returns the number of users present on a presentation
func (r *PresenceRegistry) Count(presentationID int) int {
	s := r.shard(presentationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries[presentationID])
}
