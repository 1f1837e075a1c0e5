// Package session tracks who each (user, channel) pair is talking to and the
// per-session usage metrics. The active-agent index is the single source of
// truth for routing; sessions themselves are the history log.
package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a session.
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// Session records one conversation between a user and an agent in a channel.
// Overrides shadow the agent template for this session only; the template is
// never written back.
type Session struct {
	ID              string
	AgentID         string
	UserID          string
	ChannelID       string
	StartTime       time.Time
	LastActivity    time.Time
	MessageCount    int
	AccumulatedCost float64
	Status          Status

	ModelOverride     string
	ProviderOverride  string
	RoleOverride      string
	WorkspaceOverride string
}

// Overrides carries optional per-session settings captured at start time.
type Overrides struct {
	Model     string
	Provider  string
	Role      string
	Workspace string
}

// Archiver receives sessions as they complete, for persistence. Archiving is
// best-effort: failures are logged and never block registry operations.
type Archiver interface {
	Archive(s Session) error
}

// routeKey identifies one (user, channel) routing slot.
type routeKey struct {
	UserID    string
	ChannelID string
}

// Registry owns the active-agent index and all session records. Every
// operation takes the registry lock, so reads and writes for a key can never
// interleave; concurrent switches for the same key land on exactly one agent.
type Registry struct {
	mu       sync.Mutex
	index    map[routeKey]string // (user, channel) -> agent ID
	sessions map[string]*Session // by session ID
	byKey    map[routeKey][]*Session

	archiver Archiver
	now      func() time.Time
}

// RegistryOpts holds parameters for creating a Registry.
type RegistryOpts struct {
	Archiver Archiver         // optional: receives completed sessions
	Now      func() time.Time // optional: clock override for tests
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts RegistryOpts) *Registry {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Registry{
		index:    make(map[routeKey]string),
		sessions: make(map[string]*Session),
		byKey:    make(map[routeKey][]*Session),
		archiver: opts.Archiver,
		now:      now,
	}
}

// newSessionID returns a time-ordered opaque ID (timestamp + randomness).
func newSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

// Start creates a new active session for the key and points the index at its
// agent, overwriting any previous entry. Pre-existing sessions for the key
// are left untouched; use Switch when the old conversation should be retired.
// The caller validates agentID against the agent table; the registry does not.
func (r *Registry) Start(userID, channelID, agentID string, ov Overrides) Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.startLocked(userID, channelID, agentID, ov)
}

// Switch retires every active session for the key, then starts a fresh one.
// Superseded sessions are completed regardless of which agent they belonged
// to, so switching never leaks unresolved history.
func (r *Registry) Switch(userID, channelID, agentID string, ov Overrides) Session {
	r.mu.Lock()
	completed := r.completeAllLocked(routeKey{userID, channelID})
	s := r.startLocked(userID, channelID, agentID, ov)
	r.mu.Unlock()

	r.archive(completed)
	return s
}

// End removes the index entry for the key and completes every active session
// recorded under it. Returns false if the key had no active agent.
func (r *Registry) End(userID, channelID string) bool {
	k := routeKey{userID, channelID}

	r.mu.Lock()
	_, ok := r.index[k]
	delete(r.index, k)
	completed := r.completeAllLocked(k)
	r.mu.Unlock()

	r.archive(completed)
	return ok
}

// Active returns the current session for the key, if the index has an entry
// and a matching active session exists.
func (r *Registry) Active(userID, channelID string) (Session, bool) {
	k := routeKey{userID, channelID}

	r.mu.Lock()
	defer r.mu.Unlock()

	agentID, ok := r.index[k]
	if !ok {
		return Session{}, false
	}
	// Most recent active session for this key and agent.
	list := r.byKey[k]
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Status == StatusActive && list[i].AgentID == agentID {
			return *list[i], true
		}
	}
	return Session{}, false
}

// RecordTurn bumps the usage counters for one completed chat turn. It must be
// called exactly once per turn, including turns whose output was truncated.
func (r *Registry) RecordTurn(sessionID string, costDelta float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return fmt.Errorf("session: record turn: unknown session %s", sessionID)
	}
	s.MessageCount++
	s.AccumulatedCost += costDelta
	s.LastActivity = r.now()
	return nil
}

// CloseIdle completes every active session whose last activity is older than
// maxIdle, clearing index entries that pointed at them. Returns the number of
// sessions closed.
func (r *Registry) CloseIdle(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	r.mu.Lock()
	var completed []Session
	for k, list := range r.byKey {
		for _, s := range list {
			if s.Status != StatusActive || !s.LastActivity.Before(cutoff) {
				continue
			}
			s.Status = StatusCompleted
			completed = append(completed, *s)
			if r.index[k] == s.AgentID {
				delete(r.index, k)
			}
		}
	}
	r.mu.Unlock()

	r.archive(completed)
	return len(completed)
}

// Snapshot returns copies of all sessions, newest first within each key.
// Used by status commands and the HTTP API.
func (r *Registry) Snapshot() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, *s)
	}
	return out
}

func (r *Registry) startLocked(userID, channelID, agentID string, ov Overrides) Session {
	k := routeKey{userID, channelID}
	now := r.now()
	s := &Session{
		ID:                newSessionID(),
		AgentID:           agentID,
		UserID:            userID,
		ChannelID:         channelID,
		StartTime:         now,
		LastActivity:      now,
		Status:            StatusActive,
		ModelOverride:     ov.Model,
		ProviderOverride:  ov.Provider,
		RoleOverride:      ov.Role,
		WorkspaceOverride: ov.Workspace,
	}
	r.sessions[s.ID] = s
	r.byKey[k] = append(r.byKey[k], s)
	r.index[k] = agentID
	return *s
}

// completeAllLocked transitions every active session for the key to completed
// and returns copies for archiving. Caller holds the lock.
func (r *Registry) completeAllLocked(k routeKey) []Session {
	var completed []Session
	for _, s := range r.byKey[k] {
		if s.Status != StatusActive {
			continue
		}
		s.Status = StatusCompleted
		completed = append(completed, *s)
	}
	return completed
}

// archive hands completed sessions to the archiver outside the lock.
func (r *Registry) archive(sessions []Session) {
	if r.archiver == nil {
		return
	}
	for _, s := range sessions {
		if err := r.archiver.Archive(s); err != nil {
			log.Printf("session: archive %s: %v", s.ID, err)
		}
	}
}
