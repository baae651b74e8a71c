package conversation

import (
	"context"
	"sync"
	"time"

	"backtestgpt/internal/domain"
)

// Session is one user's accumulation state. Callers must hold the session
// lock while reading or mutating the draft so concurrent turns on the same
// key serialize.
type Session struct {
	mu sync.Mutex

	Key       string
	Draft     Draft
	History   []domain.ConversationMessage
	UpdatedAt time.Time
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch stamps the session as recently active.
func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now
}

// Record appends a message to the in-session transcript.
func (s *Session) Record(role, content string, at time.Time) {
	s.History = append(s.History, domain.ConversationMessage{Role: role, Content: content, CreatedAt: at})
}

// Store holds sessions keyed by an opaque session identifier.
type Store interface {
	// Get returns the session for key, creating an empty one when absent.
	Get(ctx context.Context, key string) (*Session, error)
	// Put makes the session visible under its key.
	Put(ctx context.Context, session *Session) error
	// EvictOlderThan drops sessions idle longer than age and reports how
	// many were removed.
	EvictOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session, ok := m.sessions[key]; ok {
		return session, nil
	}
	session := &Session{Key: key, Draft: Draft{Stage: StageEmpty}, UpdatedAt: m.now()}
	m.sessions[key] = session
	return session, nil
}

func (m *MemoryStore) Put(_ context.Context, session *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.Key] = session
	return nil
}

func (m *MemoryStore) EvictOlderThan(_ context.Context, age time.Duration) (int, error) {
	cutoff := m.now().Add(-age)
	m.mu.Lock()
	defer m.mu.Unlock()
	evicted := 0
	for key, session := range m.sessions {
		if session.UpdatedAt.Before(cutoff) {
			delete(m.sessions, key)
			evicted++
		}
	}
	return evicted, nil
}
