package history

import (
	"sync"
	"time"

	"portfolio-chatter/internal/llm"
)

// maxSessions caps memory for anonymous visitors; the least recently active session goes first.
const maxSessions = 1000

type session struct {
	msgs     []llm.Message
	lastSeen time.Time
}

// Manager keeps the last few chat messages of every visitor session.
type Manager struct {
	mu       sync.RWMutex
	limit    int
	sessions map[string]*session
	now      func() time.Time
}

// NewManager keeps at most limit messages per session; limit <= 0 disables history.
func NewManager(limit int) *Manager {
	return &Manager{limit: limit, sessions: make(map[string]*session), now: time.Now}
}

func (m *Manager) Reset(sessionKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionKey)
}

func (m *Manager) AppendUser(sessionKey, content string) {
	m.append(sessionKey, llm.Message{Role: "user", Content: content})
}

func (m *Manager) AppendAssistant(sessionKey, content string) {
	m.append(sessionKey, llm.Message{Role: "assistant", Content: content})
}

func (m *Manager) append(sessionKey string, msg llm.Message) {
	if m.limit <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionKey]
	if !ok {
		if len(m.sessions) >= maxSessions {
			m.evictOldestLocked()
		}
		s = &session{}
		m.sessions[sessionKey] = s
	}
	s.msgs = append(s.msgs, msg)
	if over := len(s.msgs) - m.limit; over > 0 {
		s.msgs = append([]llm.Message(nil), s.msgs[over:]...)
	}
	s.lastSeen = m.now()
}

// Get returns a copy of the remembered messages, oldest first.
func (m *Manager) Get(sessionKey string) []llm.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionKey]
	if !ok {
		return nil
	}
	out := make([]llm.Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (m *Manager) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for k, s := range m.sessions {
		if oldestKey == "" || s.lastSeen.Before(oldest) {
			oldestKey, oldest = k, s.lastSeen
		}
	}
	delete(m.sessions, oldestKey)
}
