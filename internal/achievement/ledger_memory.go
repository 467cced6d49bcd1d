package achievement

import (
	"context"
	"sync"

	domain "refward/pkg/domain"
)

// InMemoryLedger keeps reward grants in process memory.
type InMemoryLedger struct {
	mu     sync.RWMutex
	grants map[domain.UserID]map[string]Grant
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{grants: make(map[domain.UserID]map[string]Grant)}
}

func (l *InMemoryLedger) Credit(_ context.Context, g Grant) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	held, ok := l.grants[g.UserID]
	if !ok {
		held = make(map[string]Grant)
		l.grants[g.UserID] = held
	}
	if _, exists := held[g.Key]; exists {
		return nil
	}
	held[g.Key] = g
	return nil
}

// GrantsByUser returns the user's recorded grants keyed by achievement.
func (l *InMemoryLedger) GrantsByUser(userID domain.UserID) map[string]Grant {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Grant, len(l.grants[userID]))
	for key, g := range l.grants[userID] {
		out[key] = g
	}
	return out
}
