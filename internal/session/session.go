// Package session keeps per-conversation message history in memory.
package session

import (
	"sync"

	"github.com/lunardrift/lunardrift/internal/schema"
)

// Session is the durable history of one conversation. Tool-call traffic is
// per-turn state and never lands here; only user and assistant text does.
type Session struct {
	key string

	mu       sync.Mutex
	messages []schema.Message
}

// Key returns the session identifier.
func (s *Session) Key() string { return s.key }

// AddUser appends a user message to the history.
func (s *Session) AddUser(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, schema.Message{Role: "user", Content: content})
}

// AddAssistant appends an assistant reply to the history.
func (s *Session) AddAssistant(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, schema.Message{Role: "assistant", Content: &content})
}

// History returns up to window most recent messages (all when window <= 0).
func (s *Session) History(window int) []schema.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages
	if window > 0 && len(msgs) > window {
		msgs = msgs[len(msgs)-window:]
	}
	out := make([]schema.Message, len(msgs))
	copy(out, msgs)
	return out
}

// Clear empties the history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}

// Manager hands out sessions by key. Conversations on different keys run
// concurrently; each session locks its own history.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: map[string]*Session{}}
}

// GetOrCreate returns the session for key, creating it on first use.
func (m *Manager) GetOrCreate(key string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok {
		return s
	}
	s := &Session{key: key}
	m.sessions[key] = s
	return s
}
