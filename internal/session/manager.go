package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidToken    = errors.New("invalid reconnect token")
	ErrSessionExpired  = errors.New("session expired")
)

const tokenBytes = 24

// Session tracks a player's seat in a match so a dropped connection can be
// resumed.
type Session struct {
	UserID         string
	GameID         string
	tokenHash      []byte
	LastActionAt   time.Time
	DisconnectedAt time.Time
	Connected      bool
	Snapshot       []byte
	Checksum       string
}

// Manager holds one session per user.
type Manager struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	leasePeriod time.Duration
	now         func() time.Time
	cost        int
	logger      *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBcryptCost sets the token hashing cost.
func WithBcryptCost(cost int) Option {
	return func(m *Manager) { m.cost = cost }
}

// NewManager creates a manager whose disconnected sessions expire after
// leasePeriod.
func NewManager(leasePeriod time.Duration, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		sessions:    make(map[string]*Session),
		leasePeriod: leasePeriod,
		now:         time.Now,
		cost:        bcrypt.DefaultCost,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates or replaces the session for userID and returns the plain
// reconnect token. Only its hash is kept.
func (m *Manager) Issue(userID, gameID string) (string, error) {
	raw := make([]byte, tokenBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(raw)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), m.cost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = &Session{
		UserID:       userID,
		GameID:       gameID,
		tokenHash:    hash,
		LastActionAt: m.now(),
		Connected:    true,
	}
	m.logger.Debug("session issued",
		zap.String("user_id", userID),
		zap.String("game_id", gameID),
	)
	return token, nil
}

// Validate checks a reconnect token and returns a copy of the session.
func (m *Manager) Validate(userID, token string) (Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[userID]
	var hash []byte
	if ok {
		hash = s.tokenHash
	}
	m.mu.RUnlock()

	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(token)); err != nil {
		return Session{}, ErrInvalidToken
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.expiredLocked(s) {
		return Session{}, ErrSessionExpired
	}
	return *s, nil
}

// Get returns a copy of the session for userID.
func (m *Manager) Get(userID string) (Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// UpdateSnapshot stores the latest match snapshot for userID.
func (m *Manager) UpdateSnapshot(userID string, snapshot []byte, checksum string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	s.Snapshot = snapshot
	s.Checksum = checksum
	s.LastActionAt = m.now()
	return nil
}

// MarkDisconnected starts the lease countdown for userID.
func (m *Manager) MarkDisconnected(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[userID]; ok && s.Connected {
		s.Connected = false
		s.DisconnectedAt = m.now()
		m.logger.Info("session disconnected", zap.String("user_id", userID), zap.String("game_id", s.GameID))
	}
}

// MarkReconnected resumes a disconnected session.
func (m *Manager) MarkReconnected(userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok {
		return ErrSessionNotFound
	}
	if m.expiredLocked(s) {
		return ErrSessionExpired
	}
	s.Connected = true
	s.DisconnectedAt = time.Time{}
	s.LastActionAt = m.now()
	return nil
}

// Remove deletes the session for userID.
func (m *Manager) Remove(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[userID]
	delete(m.sessions, userID)
	return ok
}

// RemoveGame deletes every session bound to gameID.
func (m *Manager) RemoveGame(gameID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.GameID == gameID {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Count returns the number of sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expiredLocked(s *Session) bool {
	return !s.Connected && m.now().Sub(s.DisconnectedAt) > m.leasePeriod
}

// ExpireSessions removes disconnected sessions whose lease has run out and
// returns them.
func (m *Manager) ExpireSessions() []Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expired []Session
	for id, s := range m.sessions {
		if m.expiredLocked(s) {
			expired = append(expired, *s)
			delete(m.sessions, id)
		}
	}
	return expired
}

// CleanupExpiredSessions runs ExpireSessions every interval until ctx is
// done. onExpire, if set, is called for each expired session.
func (m *Manager) CleanupExpiredSessions(ctx context.Context, interval time.Duration, onExpire func(Session)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, s := range m.ExpireSessions() {
				m.logger.Info("session expired",
					zap.String("user_id", s.UserID),
					zap.String("game_id", s.GameID),
				)
				if onExpire != nil {
					onExpire(s)
				}
			}
		}
	}
}

// CloseAll drops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = make(map[string]*Session)
}
