package repository

import (
	"context"
	"sync"
	"time"

	"voice-banking/internal/domain/entities"
	Irepository "voice-banking/internal/domain/interfaces/repository"
)

type expiring[T any] struct {
	value     T
	expiresAt time.Time
}

func (e expiring[T]) live(now time.Time) bool {
	return e.expiresAt.IsZero() || now.Before(e.expiresAt)
}

// MemorySessionStore is the single-process SessionStore used when no Redis address is configured.
type MemorySessionStore struct {
	mu       sync.Mutex
	pending  map[string]map[string]expiring[entities.PendingAction]
	latest   map[string]expiring[string]
	velocity map[string]expiring[int64]
	Now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		pending:  make(map[string]map[string]expiring[entities.PendingAction]),
		latest:   make(map[string]expiring[string]),
		velocity: make(map[string]expiring[int64]),
		Now:      time.Now,
	}
}

func deadline(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}

func (s *MemorySessionStore) SetPending(_ context.Context, action entities.PendingAction, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	session, ok := s.pending[action.SessionID]
	if !ok {
		session = make(map[string]expiring[entities.PendingAction])
		s.pending[action.SessionID] = session
	}
	session[action.ProposalID] = expiring[entities.PendingAction]{value: action, expiresAt: deadline(now, ttl)}
	s.latest[action.SessionID] = expiring[string]{value: action.ProposalID, expiresAt: deadline(now, ttl)}
	return nil
}

func (s *MemorySessionStore) GetPending(_ context.Context, sessionID, proposalID string) (entities.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getLocked(sessionID, proposalID)
}

func (s *MemorySessionStore) getLocked(sessionID, proposalID string) (entities.PendingAction, error) {
	entry, ok := s.pending[sessionID][proposalID]
	if !ok || !entry.live(s.Now()) {
		return entities.PendingAction{}, Irepository.ErrNotFound
	}
	return entry.value, nil
}

func (s *MemorySessionStore) LatestPending(_ context.Context, sessionID string) (entities.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest, ok := s.latest[sessionID]
	if !ok || !latest.live(s.Now()) {
		return entities.PendingAction{}, Irepository.ErrNotFound
	}
	return s.getLocked(sessionID, latest.value)
}

func (s *MemorySessionStore) TakePending(_ context.Context, sessionID, proposalID string) (entities.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, err := s.getLocked(sessionID, proposalID)
	if err != nil {
		return action, err
	}
	s.clearLocked(sessionID, proposalID)
	return action, nil
}

func (s *MemorySessionStore) ClearPending(_ context.Context, sessionID, proposalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked(sessionID, proposalID)
	return nil
}

func (s *MemorySessionStore) clearLocked(sessionID, proposalID string) {
	if session, ok := s.pending[sessionID]; ok {
		delete(session, proposalID)
		if len(session) == 0 {
			delete(s.pending, sessionID)
		}
	}
	if latest, ok := s.latest[sessionID]; ok && latest.value == proposalID {
		delete(s.latest, sessionID)
	}
}

func (s *MemorySessionStore) RecordOutgoing(_ context.Context, accountID string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.Now()
	entry, ok := s.velocity[accountID]
	if !ok || !entry.live(now) {
		entry = expiring[int64]{expiresAt: deadline(now, window)}
	}
	entry.value++
	s.velocity[accountID] = entry
	return entry.value, nil
}

func (s *MemorySessionStore) RecentOutgoing(_ context.Context, accountID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.velocity[accountID]
	if !ok || !entry.live(s.Now()) {
		return 0, nil
	}
	return entry.value, nil
}
