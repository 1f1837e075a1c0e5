package session

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// Start / Active
// ---------------------------------------------------------------------------

func TestStartThenActive(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	started := r.Start("u1", "c1", "general", Overrides{Workspace: "/srv/work"})

	got, ok := r.Active("u1", "c1")
	if !ok {
		t.Fatal("expected an active session")
	}
	if got.ID != started.ID {
		t.Errorf("got session %s, want %s", got.ID, started.ID)
	}
	if got.AgentID != "general" {
		t.Errorf("got agent %q, want %q", got.AgentID, "general")
	}
	if got.WorkspaceOverride != "/srv/work" {
		t.Errorf("got workspace override %q, want %q", got.WorkspaceOverride, "/srv/work")
	}
	if got.Status != StatusActive {
		t.Errorf("got status %q, want active", got.Status)
	}
}

func TestActive_UnknownKey(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	if _, ok := r.Active("nobody", "nowhere"); ok {
		t.Fatal("expected no active session")
	}
}

func TestStart_KeysAreIndependent(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	r.Start("u1", "c1", "alpha", Overrides{})
	r.Start("u1", "c2", "beta", Overrides{})
	r.Start("u2", "c1", "gamma", Overrides{})

	for _, tc := range []struct{ user, channel, agent string }{
		{"u1", "c1", "alpha"},
		{"u1", "c2", "beta"},
		{"u2", "c1", "gamma"},
	} {
		s, ok := r.Active(tc.user, tc.channel)
		if !ok || s.AgentID != tc.agent {
			t.Errorf("(%s,%s): got (%v, %q), want agent %q", tc.user, tc.channel, ok, s.AgentID, tc.agent)
		}
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		s := r.Start("u", fmt.Sprintf("c%d", i), "a", Overrides{})
		if seen[s.ID] {
			t.Fatalf("duplicate session ID %s", s.ID)
		}
		seen[s.ID] = true
	}
}

// ---------------------------------------------------------------------------
// Switch / End
// ---------------------------------------------------------------------------

func TestSwitch_CompletesAllPriorSessions(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	first := r.Start("u1", "c1", "alpha", Overrides{})
	// A plain Start over an existing key leaves the old session active;
	// this is the superseded-session case Switch must clean up.
	second := r.Start("u1", "c1", "beta", Overrides{})

	r.Switch("u1", "c1", "gamma", Overrides{})

	for _, s := range r.Snapshot() {
		switch s.ID {
		case first.ID, second.ID:
			if s.Status != StatusCompleted {
				t.Errorf("session %s (agent %s): got status %q, want completed", s.ID, s.AgentID, s.Status)
			}
		}
	}

	active, ok := r.Active("u1", "c1")
	if !ok || active.AgentID != "gamma" {
		t.Fatalf("got (%v, %q), want active gamma session", ok, active.AgentID)
	}
}

func TestEnd_CompletesAndClearsIndex(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	s := r.Start("u1", "c1", "alpha", Overrides{})

	if !r.End("u1", "c1") {
		t.Fatal("End should report an entry was removed")
	}
	if _, ok := r.Active("u1", "c1"); ok {
		t.Fatal("no session should be active after End")
	}
	for _, got := range r.Snapshot() {
		if got.ID == s.ID && got.Status != StatusCompleted {
			t.Errorf("got status %q, want completed", got.Status)
		}
	}
}

func TestEnd_NoActiveEntry(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	if r.End("u1", "c1") {
		t.Fatal("End on empty key should report false")
	}
}

func TestEnd_AlsoCompletesSupersededAgents(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	old := r.Start("u1", "c1", "alpha", Overrides{})
	r.Start("u1", "c1", "beta", Overrides{}) // index now points at beta

	r.End("u1", "c1")

	for _, s := range r.Snapshot() {
		if s.ID == old.ID && s.Status != StatusCompleted {
			t.Errorf("superseded session left %q, want completed", s.Status)
		}
	}
}

// ---------------------------------------------------------------------------
// RecordTurn
// ---------------------------------------------------------------------------

func TestRecordTurn(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(RegistryOpts{Now: func() time.Time { return clock }})
	s := r.Start("u1", "c1", "alpha", Overrides{})

	clock = clock.Add(time.Minute)
	if err := r.RecordTurn(s.ID, 0.25); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}
	if err := r.RecordTurn(s.ID, 0.50); err != nil {
		t.Fatalf("RecordTurn: %v", err)
	}

	got, _ := r.Active("u1", "c1")
	if got.MessageCount != 2 {
		t.Errorf("got message count %d, want 2", got.MessageCount)
	}
	if got.AccumulatedCost != 0.75 {
		t.Errorf("got cost %v, want 0.75", got.AccumulatedCost)
	}
	if !got.LastActivity.Equal(clock) {
		t.Errorf("got last activity %v, want %v", got.LastActivity, clock)
	}
}

func TestRecordTurn_UnknownSession(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	if err := r.RecordTurn("no-such-id", 1); err == nil {
		t.Fatal("expected error for unknown session")
	}
}

// ---------------------------------------------------------------------------
// Idle sweep
// ---------------------------------------------------------------------------

func TestCloseIdle(t *testing.T) {
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	r := NewRegistry(RegistryOpts{Now: func() time.Time { return clock }})

	stale := r.Start("u1", "c1", "alpha", Overrides{})
	clock = clock.Add(2 * time.Hour)
	fresh := r.Start("u2", "c2", "beta", Overrides{})

	closed := r.CloseIdle(time.Hour)
	if closed != 1 {
		t.Fatalf("got %d closed, want 1", closed)
	}
	if _, ok := r.Active("u1", "c1"); ok {
		t.Error("stale session should no longer be active")
	}
	if _, ok := r.Active("u2", "c2"); !ok {
		t.Error("fresh session should still be active")
	}
	for _, s := range r.Snapshot() {
		if s.ID == stale.ID && s.Status != StatusCompleted {
			t.Errorf("stale session: got status %q, want completed", s.Status)
		}
		if s.ID == fresh.ID && s.Status != StatusActive {
			t.Errorf("fresh session: got status %q, want active", s.Status)
		}
	}
}

// ---------------------------------------------------------------------------
// Archiver hook
// ---------------------------------------------------------------------------

type recordingArchiver struct {
	mu       sync.Mutex
	archived []Session
}

func (a *recordingArchiver) Archive(s Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.archived = append(a.archived, s)
	return nil
}

func TestEnd_ArchivesCompletedSessions(t *testing.T) {
	arch := &recordingArchiver{}
	r := NewRegistry(RegistryOpts{Archiver: arch})
	s := r.Start("u1", "c1", "alpha", Overrides{})
	r.End("u1", "c1")

	arch.mu.Lock()
	defer arch.mu.Unlock()
	if len(arch.archived) != 1 {
		t.Fatalf("got %d archived sessions, want 1", len(arch.archived))
	}
	if arch.archived[0].ID != s.ID || arch.archived[0].Status != StatusCompleted {
		t.Errorf("archived %+v, want completed session %s", arch.archived[0], s.ID)
	}
}

func TestArchiverError_DoesNotBlock(t *testing.T) {
	r := NewRegistry(RegistryOpts{Archiver: failingArchiver{}})
	r.Start("u1", "c1", "alpha", Overrides{})
	if !r.End("u1", "c1") {
		t.Fatal("End should succeed despite archiver failure")
	}
}

type failingArchiver struct{}

func (failingArchiver) Archive(Session) error { return fmt.Errorf("disk full") }

// ---------------------------------------------------------------------------
// Concurrency
// ---------------------------------------------------------------------------

func TestConcurrentSwitch_SameKey(t *testing.T) {
	r := NewRegistry(RegistryOpts{})
	r.Start("u1", "c1", "origin", Overrides{})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		agent := "alpha"
		if i%2 == 1 {
			agent = "beta"
		}
		wg.Add(1)
		go func(agent string) {
			defer wg.Done()
			r.Switch("u1", "c1", agent, Overrides{})
		}(agent)
	}
	wg.Wait()

	got, ok := r.Active("u1", "c1")
	if !ok {
		t.Fatal("expected an active session after concurrent switches")
	}
	if got.AgentID != "alpha" && got.AgentID != "beta" {
		t.Fatalf("index torn: got agent %q", got.AgentID)
	}

	// Exactly one session may remain active for the key.
	active := 0
	for _, s := range r.Snapshot() {
		if s.UserID == "u1" && s.ChannelID == "c1" && s.Status == StatusActive {
			active++
		}
	}
	if active != 1 {
		t.Errorf("got %d active sessions for the key, want 1", active)
	}
}
