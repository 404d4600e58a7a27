package store

import (
	"context"
	"sync"
	"time"

	"vendry/internal/identity/models"
	id "vendry/pkg/domain"
	"vendry/pkg/platform/sentinel"
)

// In-memory stores keep the default deployment and unit tests lightweight.
// They intentionally favor clarity over performance.

type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[id.UserID]models.AuthProfile
}

func NewMemoryProfileStore() *MemoryProfileStore {
	return &MemoryProfileStore{profiles: make(map[id.UserID]models.AuthProfile)}
}

func (s *MemoryProfileStore) Load(_ context.Context, userID id.UserID) (models.AuthProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[userID]; ok {
		return p.Clone(), nil
	}
	return models.AuthProfile{}, sentinel.ErrNotFound
}

func (s *MemoryProfileStore) Save(_ context.Context, profile models.AuthProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[profile.ID] = profile.Clone()
	return nil
}

func (s *MemoryProfileStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, userID)
	return nil
}

func (s *MemoryProfileStore) FindByContact(_ context.Context, contact string) (models.AuthProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if (p.Email != "" && p.Email == contact) || (p.Phone != "" && p.Phone == contact) {
			return p.Clone(), nil
		}
	}
	return models.AuthProfile{}, sentinel.ErrNotFound
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[id.SessionID]models.Session
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[id.SessionID]models.Session)}
}

func (s *MemorySessionStore) Save(_ context.Context, session models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *MemorySessionStore) FindByID(_ context.Context, sessionID id.SessionID) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[sessionID]; ok {
		return session, nil
	}
	return models.Session{}, sentinel.ErrNotFound
}

func (s *MemorySessionStore) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

type MemoryActiveModeStore struct {
	mu    sync.RWMutex
	modes map[id.UserID]models.ActiveMode
}

func NewMemoryActiveModeStore() *MemoryActiveModeStore {
	return &MemoryActiveModeStore{modes: make(map[id.UserID]models.ActiveMode)}
}

func (s *MemoryActiveModeStore) Save(_ context.Context, userID id.UserID, mode models.ActiveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes[userID] = mode
	return nil
}

func (s *MemoryActiveModeStore) Load(_ context.Context, userID id.UserID) (models.ActiveMode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if mode, ok := s.modes[userID]; ok {
		return mode, nil
	}
	return "", sentinel.ErrNotFound
}

func (s *MemoryActiveModeStore) Delete(_ context.Context, userID id.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.modes, userID)
	return nil
}

type MemoryOTPStore struct {
	mu      sync.RWMutex
	pending map[string]models.OTPPending
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{pending: make(map[string]models.OTPPending)}
}

func (s *MemoryOTPStore) Save(_ context.Context, pending models.OTPPending) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[pending.Value] = pending
	return nil
}

func (s *MemoryOTPStore) Find(_ context.Context, contact string) (models.OTPPending, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pending[contact]
	if !ok {
		return models.OTPPending{}, sentinel.ErrNotFound
	}
	if time.Now().After(p.ExpiresAt) {
		return models.OTPPending{}, sentinel.ErrExpired
	}
	return p, nil
}

func (s *MemoryOTPStore) Delete(_ context.Context, contact string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, contact)
	return nil
}
