package calls

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local runs.
// It keeps every attempt per session id and enforces the same conditional
// write and direct-pair rules as the Postgres store.
type MemoryStore struct {
	mu       sync.Mutex
	attempts map[string][]CallSession // session_id -> attempts, oldest first
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{attempts: map[string][]CallSession{}}
}

func (m *MemoryStore) Get(ctx context.Context, sessionID string) (CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.attempts[sessionID]
	if len(list) == 0 {
		return CallSession{}, ErrSessionNotFound
	}
	return list[len(list)-1].Clone(), nil
}

func (m *MemoryStore) Create(ctx context.Context, s CallSession) error {
	if s.SessionID == "" {
		return errors.New("calls: session_id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if key := s.DirectPairKey(); key != "" {
		for _, list := range m.attempts {
			cur := list[len(list)-1]
			if !cur.Status.Terminal() && cur.DirectPairKey() == key {
				return ErrCallInProgress
			}
		}
	}
	for _, a := range m.attempts[s.SessionID] {
		if a.CreatedAt.Equal(s.CreatedAt) {
			return ErrVersionConflict
		}
	}
	m.attempts[s.SessionID] = append(m.attempts[s.SessionID], s.Clone())
	return nil
}

func (m *MemoryStore) ConditionalPut(ctx context.Context, s CallSession, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.attempts[s.SessionID]
	if len(list) == 0 {
		return ErrSessionNotFound
	}
	cur := list[len(list)-1]
	if !cur.CreatedAt.Equal(s.CreatedAt) || cur.Version != expectedVersion {
		return ErrVersionConflict
	}
	list[len(list)-1] = s.Clone()
	return nil
}

func (m *MemoryStore) History(ctx context.Context, sessionID string) ([]CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.attempts[sessionID]
	if len(list) == 0 {
		return nil, ErrSessionNotFound
	}
	out := make([]CallSession, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i].Clone())
	}
	return out, nil
}

func (m *MemoryStore) ListRinging(ctx context.Context, createdBefore time.Time, limit int) ([]CallSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallSession, 0)
	for _, list := range m.attempts {
		cur := list[len(list)-1]
		if cur.Status == SessionStatusRinging && cur.CreatedAt.Before(createdBefore) {
			out = append(out, cur.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, workspaceID string, from, to time.Time) ([]CallSession, error) {
	if workspaceID == "" {
		return nil, errors.New("workspace_id required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallSession, 0)
	for _, list := range m.attempts {
		for _, a := range list {
			if a.WorkspaceID != workspaceID {
				continue
			}
			if a.CreatedAt.Before(from) || !a.CreatedAt.Before(to) {
				continue
			}
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
