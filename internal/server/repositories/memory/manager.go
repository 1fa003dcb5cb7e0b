// Package memory is an in-process RepositoryManager used by service and API
// tests. It enforces the same uniqueness and cascade rules as the PostgreSQL
// schema. Writes are applied immediately and are not rolled back with the
// surrounding transaction.
package memory

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/nazarriya/chatrelay/internal/dbx"
	"github.com/nazarriya/chatrelay/internal/server/models"
	"github.com/nazarriya/chatrelay/internal/server/repositories/messages"
	"github.com/nazarriya/chatrelay/internal/server/repositories/sessions"
	"github.com/nazarriya/chatrelay/internal/server/repositories/users"
)

type sessionRow struct {
	session models.ChatSession
	data    models.SessionData
}

type store struct {
	mu       sync.Mutex
	users    map[string]models.User
	sessions map[string]*sessionRow
	messages map[string][]models.ChatMessage
	seq      int64
	last     time.Time
}

// tick returns a strictly increasing timestamp. Callers hold mu.
func (s *store) tick() time.Time {
	t := time.Now().UTC()
	if !t.After(s.last) {
		t = s.last.Add(time.Microsecond)
	}
	s.last = t
	return t
}

type InMemoryRepositoryManager struct {
	st *store
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{st: &store{
		users:    map[string]models.User{},
		sessions: map[string]*sessionRow{},
		messages: map[string][]models.ChatMessage{},
	}}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Users(dbx.DBTX) users.Repository {
	return &userRepo{st: m.st}
}

func (m *InMemoryRepositoryManager) Sessions(dbx.DBTX) sessions.Repository {
	return &sessionRepo{st: m.st}
}

func (m *InMemoryRepositoryManager) Messages(dbx.DBTX) messages.Repository {
	return &messageRepo{st: m.st}
}

// SetActive flips a user's is_active flag.
func (m *InMemoryRepositoryManager) SetActive(userID string, active bool) {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	if u, ok := m.st.users[userID]; ok {
		u.IsActive = active
		m.st.users[userID] = u
	}
}

// MessageCount returns how many messages exist across all sessions.
func (m *InMemoryRepositoryManager) MessageCount() int {
	m.st.mu.Lock()
	defer m.st.mu.Unlock()
	n := 0
	for _, msgs := range m.st.messages {
		n += len(msgs)
	}
	return n
}
