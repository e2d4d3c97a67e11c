package media

import (
	"context"
	"sync"
)

// MemoryProvider is a fake Provider for tests and local runs.
type MemoryProvider struct {
	mu        sync.Mutex
	creates   map[string]int
	destroys  map[string]int
	live      map[string]bool
	CreateErr error
	IssueErr  error
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		creates:  map[string]int{},
		destroys: map[string]int{},
		live:     map[string]bool{},
	}
}

func (m *MemoryProvider) CreateSession(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return "", m.CreateErr
	}
	id := "media-" + sessionID
	if !m.live[id] {
		m.creates[sessionID]++
		m.live[id] = true
	}
	return id, nil
}

func (m *MemoryProvider) DestroySession(ctx context.Context, mediaSessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.live[mediaSessionID] {
		m.destroys[mediaSessionID]++
		delete(m.live, mediaSessionID)
	}
	return nil
}

func (m *MemoryProvider) IssueJoinCredential(ctx context.Context, mediaSessionID, userID string) (Credential, error) {
	if mediaSessionID == "" || userID == "" {
		return Credential{}, ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.IssueErr != nil {
		return Credential{}, m.IssueErr
	}
	return Credential{AttendeeID: "att-" + userID, Token: "tok-" + mediaSessionID + "-" + userID}, nil
}

// Creates counts actual media session creations for a call session.
func (m *MemoryProvider) Creates(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates[sessionID]
}

// Destroys counts actual teardowns of a media session.
func (m *MemoryProvider) Destroys(mediaSessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroys[mediaSessionID]
}

func (m *MemoryProvider) Live(mediaSessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live[mediaSessionID]
}
