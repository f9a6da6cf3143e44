// Package inmemory is a volatile session store backed by a process-local
// map. Safe for concurrent access; suited to single-instance deployments
// and tests.
package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carebridge-ai/companion/internal/session"
	"github.com/carebridge-ai/companion/models"
)

type record struct {
	createdAt  time.Time
	lastActive time.Time
	messages   []models.ChatMessage
}

// Store holds all sessions behind one RWMutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// New creates an empty in-memory session store.
func New() *Store {
	return &Store{sessions: make(map[string]*record)}
}

func (s *Store) GetOrCreate(_ context.Context, sessionID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sessionID != "" {
		if rec, ok := s.sessions[sessionID]; ok {
			rec.lastActive = time.Now().UTC()
			return sessionID, nil
		}
	}
	id := sessionID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	s.sessions[id] = &record{createdAt: now, lastActive: now}
	return id, nil
}

func (s *Store) Append(_ context.Context, sessionID string, role models.MessageRole, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil
	}
	rec.messages = append(rec.messages, models.ChatMessage{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().UTC(),
	})
	if n := len(rec.messages); n > session.MaxHistory {
		rec.messages = rec.messages[n-session.MaxHistory:]
	}
	rec.lastActive = time.Now().UTC()
	return nil
}

func (s *Store) History(_ context.Context, sessionID string, max int) ([]models.ChatMessage, error) {
	if max <= 0 {
		max = session.DefaultHistoryWindow
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	msgs := rec.messages
	if len(msgs) > max {
		msgs = msgs[len(msgs)-max:]
	}
	out := make([]models.ChatMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *Store) Clear(_ context.Context, sessionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	return ok, nil
}
