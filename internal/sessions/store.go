// Package sessions holds per-call conversation state for the lifetime of
// a call leg. Sessions are keyed by the telephony provider's call id,
// created lazily on the first per-turn webhook, and removed when the
// terminal webhook completes. A TTL sweep bounds leakage from calls that
// end without a terminal webhook.
package sessions

import (
	"sync"
	"time"
)

// Speaker identifies who produced a transcript line.
const (
	SpeakerUser = "user"
	SpeakerBot  = "bot"
)

// Entry is a single utterance in a session's history.
type Entry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Session is the conversation state for one call leg.
//
// Turn starts at 0 and is incremented exactly once per processed
// utterance. History is append-only; insertion order is significant
// because it is replayed to the intent classifier.
type Session struct {
	CallID    string
	LeadID    int64
	Turn      int
	History   []Entry
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is a process-wide map from call id to session. All access is
// atomic with respect to other accesses for the same key; callers never
// see the underlying map or shared Session pointers.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

// DefaultTTL bounds how long an abandoned session may live before the
// sweep removes it.
const DefaultTTL = 30 * time.Minute

// NewStore creates a session store. A non-positive ttl falls back to
// DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetNowFunc overrides the clock for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Update atomically applies fn to the session for callID, creating the
// session (turn 0, empty history) if it does not exist yet. It returns a
// copy of the session after mutation.
func (s *Store) Update(callID string, leadID int64, fn func(*Session)) Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[callID]
	if !ok {
		session = &Session{
			CallID:    callID,
			LeadID:    leadID,
			CreatedAt: s.now(),
		}
		s.sessions[callID] = session
	}
	if fn != nil {
		fn(session)
	}
	session.UpdatedAt = s.now()
	return snapshot(session)
}

// Get returns a copy of the session for callID, if present.
func (s *Store) Get(callID string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[callID]
	if !ok {
		return Session{}, false
	}
	return snapshot(session), true
}

// Delete removes the session for callID. It is safe to call for ids that
// are not present.
func (s *Store) Delete(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, callID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions that have not been touched within the TTL and
// returns how many were removed. Abandoned calls (ended without a
// terminal webhook) are reclaimed here.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, session := range s.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func snapshot(session *Session) Session {
	copied := *session
	copied.History = make([]Entry, len(session.History))
	copy(copied.History, session.History)
	return copied
}
