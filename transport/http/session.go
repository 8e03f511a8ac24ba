package http

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionManager tracks MCP sessions created by initialize over HTTP.
type SessionManager struct {
	sessions map[string]*Session
	mu       sync.RWMutex
	now      func() time.Time
}

// Session represents an MCP session
type Session struct {
	ID              string
	ProtocolVersion string
	LastSeen        time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager() *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// CreateSession starts a session bound to the negotiated protocol version
// and returns its id.
func (sm *SessionManager) CreateSession(protocolVersion string) string {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := uuid.NewString()
	sm.sessions[id] = &Session{
		ID:              id,
		ProtocolVersion: protocolVersion,
		LastSeen:        sm.now(),
	}
	return id
}

// TouchSession marks a session as used and returns a copy of it.
func (sm *SessionManager) TouchSession(sessionID string) (Session, bool) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return Session{}, false
	}
	session.LastSeen = sm.now()
	return *session, true
}

// HasSession reports whether a session exists without touching it.
func (sm *SessionManager) HasSession(sessionID string) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	_, exists := sm.sessions[sessionID]
	return exists
}

// RemoveSession removes a session and reports whether it existed.
func (sm *SessionManager) RemoveSession(sessionID string) bool {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	_, exists := sm.sessions[sessionID]
	delete(sm.sessions, sessionID)
	return exists
}

// CleanupSessions removes sessions idle for longer than timeout and returns
// how many were removed.
func (sm *SessionManager) CleanupSessions(timeout time.Duration) int {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := sm.now()
	removed := 0
	for sessionID, session := range sm.sessions {
		if now.Sub(session.LastSeen) > timeout {
			delete(sm.sessions, sessionID)
			removed++
		}
	}
	return removed
}

// Count returns the number of live sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}
