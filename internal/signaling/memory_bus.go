package signaling

import (
	"context"
	"sync"
)

// MemoryBus is an in-process Bus for tests and single-node local runs.
// It records every published envelope per user and fans out to live
// subscribers without blocking publishers.
type MemoryBus struct {
	mu        sync.Mutex
	published map[string][]Envelope
	subs      map[string]map[*memorySubscription]struct{}

	// FailFor makes Publish fail for the listed users.
	FailFor map[string]error
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		published: map[string][]Envelope{},
		subs:      map[string]map[*memorySubscription]struct{}{},
		FailFor:   map[string]error{},
	}
}

func (b *MemoryBus) Publish(ctx context.Context, userID string, env Envelope) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.FailFor[userID]; err != nil {
		return err
	}
	b.published[userID] = append(b.published[userID], env)
	for s := range b.subs[userID] {
		select {
		case s.out <- env:
		default:
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, userID string) (Subscription, error) {
	s := &memorySubscription{bus: b, userID: userID, out: make(chan Envelope, 256)}
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = map[*memorySubscription]struct{}{}
	}
	b.subs[userID][s] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()
	return s, nil
}

// Published returns a copy of what userID's channel received.
func (b *MemoryBus) Published(userID string) []Envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Envelope, len(b.published[userID]))
	copy(out, b.published[userID])
	return out
}

// Types lists the event types userID received, in publish order.
func (b *MemoryBus) Types(userID string) []Type {
	envs := b.Published(userID)
	out := make([]Type, 0, len(envs))
	for _, e := range envs {
		out = append(out, e.Type)
	}
	return out
}

func (b *MemoryBus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = map[string][]Envelope{}
}

type memorySubscription struct {
	bus    *MemoryBus
	userID string
	out    chan Envelope
	once   sync.Once
}

func (s *memorySubscription) C() <-chan Envelope { return s.out }

func (s *memorySubscription) Close() error {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs[s.userID], s)
		close(s.out)
		s.bus.mu.Unlock()
	})
	return nil
}
