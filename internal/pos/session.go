package pos

import (
	"errors"
	"sync"
	"time"
)

// Session carries the credentials every outbound request uses. The token is
// a bearer credential issued by the auth service; the role gates which
// counter actions the UI offers.
type Session struct {
	ID        string
	UserID    string
	Name      string
	Role      string
	Token     string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ErrNoSession reports that no terminal is signed in. Background work that
// needs a credential skips its tick instead of going out unauthenticated.
var ErrNoSession = errors.New("no active session")

// SessionStore holds terminal sessions. Invalidation is a single operation
// that clears credentials and notifies subscribers; nothing else in the code
// clears auth state piecemeal.
type SessionStore struct {
	sessions      map[string]*Session
	mu            sync.RWMutex
	ttl           time.Duration
	onInvalidate  []func(reason string)
	subscribersMu sync.RWMutex
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	store := &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
	}

	go store.cleanup()

	return store
}

func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func (s *SessionStore) Save(session *Session) error {
	if session == nil {
		return errors.New("session is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.ID] = session
	return nil
}

func (s *SessionStore) Get(sessionID string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, errors.New("session not found")
	}

	if time.Now().After(session.ExpiresAt) {
		return nil, errors.New("session expired")
	}

	return session, nil
}

// ActiveToken returns a bearer token from any live session, for requests
// issued outside a request context (background polls). All sessions share
// the same upstream credential class, so any live one serves.
func (s *SessionStore) ActiveToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	for _, session := range s.sessions {
		if session.Token == "" || now.After(session.ExpiresAt) {
			continue
		}
		return session.Token, true
	}
	return "", false
}

func (s *SessionStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// OnInvalidate registers a callback run whenever credentials are invalidated.
func (s *SessionStore) OnInvalidate(fn func(reason string)) {
	if fn == nil {
		return
	}
	s.subscribersMu.Lock()
	defer s.subscribersMu.Unlock()
	s.onInvalidate = append(s.onInvalidate, fn)
}

// Invalidate drops every stored session and notifies subscribers. Called on
// explicit sign-out and whenever any service answers 401: a rejected bearer
// token means every session sharing it is dead.
func (s *SessionStore) Invalidate(reason string) {
	s.mu.Lock()
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()

	s.subscribersMu.RLock()
	subscribers := make([]func(string), len(s.onInvalidate))
	copy(subscribers, s.onInvalidate)
	s.subscribersMu.RUnlock()

	for _, fn := range subscribers {
		fn(reason)
	}
}

func (s *SessionStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := time.Now()
		for id, session := range s.sessions {
			if now.After(session.ExpiresAt) {
				delete(s.sessions, id)
			}
		}
		s.mu.Unlock()
	}
}
