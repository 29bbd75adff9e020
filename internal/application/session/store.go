package session

import (
	"context"
	"sync"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

// Session is one user's in-flight intake.
type Session struct {
	UserID    string      `json:"user_id"`
	Step      Step        `json:"step"`
	Draft     asset.Draft `json:"draft"`
	StartedAt time.Time   `json:"started_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (s *Session) clone() *Session {
	c := *s
	if s.Draft.Tags != nil {
		c.Draft.Tags = append([]string(nil), s.Draft.Tags...)
	}
	return &c
}

// Store holds at most one session per user.
type Store interface {
	Get(userID string) (*Session, bool)
	Put(s *Session)
	Delete(userID string) bool
	Len() int
}

// MemoryStore is a mutex guarded Store that drops sessions left idle for
// longer than its idle timeout.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	now      func() time.Time
	logger   logging.Logger
}

// DefaultIdleTimeout applies when NewMemoryStore gets a non-positive value.
const DefaultIdleTimeout = 30 * time.Minute

// NewMemoryStore builds an empty store.
func NewMemoryStore(idle time.Duration, logger logging.Logger) *MemoryStore {
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &MemoryStore{
		sessions: make(map[string]*Session),
		idle:     idle,
		now:      time.Now,
		logger:   logger,
	}
}

// Get returns a copy of the user's session. Expired sessions are reported
// as absent.
func (m *MemoryStore) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return nil, false
	}
	if m.expired(s, m.now()) {
		delete(m.sessions, userID)
		return nil, false
	}
	return s.clone(), true
}

// Put stores a copy of s, replacing any session of the same user.
func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.UserID] = s.clone()
}

// Delete removes the user's session and reports whether one existed.
func (m *MemoryStore) Delete(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// Len returns the number of stored sessions, expired ones included until the
// next sweep.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops idle sessions and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	removed := 0
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx is done.
func (m *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = m.idle / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("dropped idle sessions", logging.Int("count", n))
			}
		}
	}
}

func (m *MemoryStore) expired(s *Session, now time.Time) bool {
	return now.Sub(s.UpdatedAt) > m.idle
}
